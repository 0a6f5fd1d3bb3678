package sheets

import (
	"context"
	"fmt"
	"log/slog"

	drive "google.golang.org/api/drive/v3"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/instrumentation"
	"github.com/teemow/sheetsgate/internal/logging"
)

// rootFolder is reported as the folder of spreadsheets created outside a
// configured Drive folder.
const rootFolder = "root"

// CreateSpreadsheet creates a spreadsheet, inside the configured Drive folder
// when there is one.
func (c *Client) CreateSpreadsheet(ctx context.Context, p backend.CreateSpreadsheetParams) (*backend.SpreadsheetInfo, error) {
	if c.folderID != "" {
		f, err := observe(ctx, c, instrumentation.ServiceDrive, "files.create", "",
			func(ctx context.Context) (*drive.File, error) {
				return c.drive.Files.Create(&drive.File{
					Name:     p.Title,
					MimeType: SpreadsheetMimeType,
					Parents:  []string{c.folderID},
				}).
					SupportsAllDrives(true).
					Fields("id, name, parents").
					Context(ctx).
					Do()
			})
		if err != nil {
			return nil, fmt.Errorf("create spreadsheet: %w", err)
		}
		c.logger.InfoContext(ctx, "Created spreadsheet in folder", logging.SpreadsheetID(f.Id), slog.String("folder", c.folderID))
		return &backend.SpreadsheetInfo{SpreadsheetID: f.Id, Title: f.Name, Folder: c.folderID}, nil
	}

	ss, err := observe(ctx, c, instrumentation.ServiceSheets, "spreadsheets.create", "",
		func(ctx context.Context) (*sheets.Spreadsheet, error) {
			return c.sheets.Spreadsheets.Create(&sheets.Spreadsheet{
				Properties: &sheets.SpreadsheetProperties{Title: p.Title},
			}).
				Fields("spreadsheetId", "properties.title").
				Context(ctx).
				Do()
		})
	if err != nil {
		return nil, fmt.Errorf("create spreadsheet: %w", err)
	}

	title := p.Title
	if ss.Properties != nil && ss.Properties.Title != "" {
		title = ss.Properties.Title
	}
	return &backend.SpreadsheetInfo{SpreadsheetID: ss.SpreadsheetId, Title: title, Folder: rootFolder}, nil
}

// CreateSheet adds a sheet to an existing spreadsheet.
func (c *Client) CreateSheet(ctx context.Context, p backend.CreateSheetParams) (*backend.SheetInfo, error) {
	resp, err := c.batchUpdate(ctx, p.SpreadsheetID, &sheets.Request{
		AddSheet: &sheets.AddSheetRequest{
			Properties: &sheets.SheetProperties{Title: p.Title},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil || resp.Replies[0].AddSheet.Properties == nil {
		return nil, fmt.Errorf("create sheet: response carried no sheet properties")
	}

	props := resp.Replies[0].AddSheet.Properties
	return &backend.SheetInfo{
		SheetID:       props.SheetId,
		Title:         props.Title,
		Index:         props.Index,
		SpreadsheetID: p.SpreadsheetID,
	}, nil
}

// listQuery returns the Drive search query for spreadsheets visible to the gateway.
func (c *Client) listQuery() string {
	q := fmt.Sprintf("mimeType='%s' and trashed=false", SpreadsheetMimeType)
	if c.folderID != "" {
		q = fmt.Sprintf("'%s' in parents and %s", c.folderID, q)
	}
	return q
}

// ListSpreadsheets lists spreadsheets in the configured folder, or all
// spreadsheets the credentials can see.
func (c *Client) ListSpreadsheets(ctx context.Context) ([]backend.SpreadsheetSummary, error) {
	out := []backend.SpreadsheetSummary{}

	_, err := observe(ctx, c, instrumentation.ServiceDrive, "files.list", "",
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.drive.Files.List().
				Q(c.listQuery()).
				Fields("nextPageToken, files(id, name)").
				PageSize(1000).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Pages(ctx, func(page *drive.FileList) error {
					for _, f := range page.Files {
						out = append(out, backend.SpreadsheetSummary{ID: f.Id, Title: f.Name})
					}
					return nil
				})
		})
	if err != nil {
		return nil, fmt.Errorf("list spreadsheets: %w", err)
	}
	return out, nil
}

// ListSheets returns the sheet titles of a spreadsheet in tab order.
func (c *Client) ListSheets(ctx context.Context, p backend.ListSheetsParams) ([]string, error) {
	ss, err := observe(ctx, c, instrumentation.ServiceSheets, "spreadsheets.get", p.SpreadsheetID,
		func(ctx context.Context) (*sheets.Spreadsheet, error) {
			return c.sheets.Spreadsheets.Get(p.SpreadsheetID).
				Fields("sheets.properties.title").
				Context(ctx).
				Do()
		})
	if err != nil {
		return nil, fmt.Errorf("list sheets: %w", err)
	}

	titles := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

// RenameSheet changes a sheet's title.
func (c *Client) RenameSheet(ctx context.Context, p backend.RenameSheetParams) (any, error) {
	sheetID, err := c.sheetID(ctx, p.SpreadsheetID, p.OldName)
	if err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	resp, err := c.batchUpdate(ctx, p.SpreadsheetID, renameRequest(sheetID, p.NewName))
	if err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	return resp, nil
}

// CopySheet copies a sheet into another (or the same) spreadsheet and, when
// DstSheet is set, renames the copy.
func (c *Client) CopySheet(ctx context.Context, p backend.CopySheetParams) (*backend.CopyResult, error) {
	sheetID, err := c.sheetID(ctx, p.SrcSpreadsheet, p.SrcSheet)
	if err != nil {
		return nil, fmt.Errorf("copy sheet: %w", err)
	}

	props, err := observe(ctx, c, instrumentation.ServiceSheets, "sheets.copyTo", p.SrcSpreadsheet,
		func(ctx context.Context) (*sheets.SheetProperties, error) {
			return c.sheets.Spreadsheets.Sheets.CopyTo(p.SrcSpreadsheet, sheetID, &sheets.CopySheetToAnotherSpreadsheetRequest{
				DestinationSpreadsheetId: p.DstSpreadsheet,
			}).Context(ctx).Do()
		})
	if err != nil {
		return nil, fmt.Errorf("copy sheet: %w", err)
	}

	result := &backend.CopyResult{Copy: props}
	if dst := optional(p.DstSheet); dst != "" && dst != props.Title {
		rename, err := c.batchUpdate(ctx, p.DstSpreadsheet, renameRequest(props.SheetId, dst))
		if err != nil {
			return nil, fmt.Errorf("rename copied sheet: %w", err)
		}
		result.Rename = rename
	}
	return result, nil
}
