package sheets

import (
	"context"
	"fmt"

	sheets "google.golang.org/api/sheets/v4"

	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/instrumentation"
)

// GetSheetData returns the values of a sheet or range as a ValueRange, or,
// with IncludeGridData, the Spreadsheet resource including cell formatting.
func (c *Client) GetSheetData(ctx context.Context, p backend.GetSheetDataParams) (any, error) {
	rng := a1Range(p.Sheet, optional(p.Range))

	if p.IncludeGridData {
		ss, err := observe(ctx, c, instrumentation.ServiceSheets, "spreadsheets.get", p.SpreadsheetID,
			func(ctx context.Context) (*sheets.Spreadsheet, error) {
				return c.sheets.Spreadsheets.Get(p.SpreadsheetID).
					Ranges(rng).
					IncludeGridData(true).
					Context(ctx).
					Do()
			})
		if err != nil {
			return nil, fmt.Errorf("get sheet data: %w", err)
		}
		return ss, nil
	}

	vr, err := observe(ctx, c, instrumentation.ServiceSheets, "values.get", p.SpreadsheetID,
		func(ctx context.Context) (*sheets.ValueRange, error) {
			return c.sheets.Spreadsheets.Values.Get(p.SpreadsheetID, rng).Context(ctx).Do()
		})
	if err != nil {
		return nil, fmt.Errorf("get sheet data: %w", err)
	}
	return vr, nil
}

// GetSheetFormulas returns the formulas of a sheet or range. Cells without a
// formula hold their literal value.
func (c *Client) GetSheetFormulas(ctx context.Context, p backend.GetSheetFormulasParams) ([][]any, error) {
	rng := a1Range(p.Sheet, optional(p.Range))

	vr, err := observe(ctx, c, instrumentation.ServiceSheets, "values.get", p.SpreadsheetID,
		func(ctx context.Context) (*sheets.ValueRange, error) {
			return c.sheets.Spreadsheets.Values.Get(p.SpreadsheetID, rng).
				ValueRenderOption(valueRenderFormula).
				Context(ctx).
				Do()
		})
	if err != nil {
		return nil, fmt.Errorf("get sheet formulas: %w", err)
	}
	if vr.Values == nil {
		return [][]any{}, nil
	}
	return vr.Values, nil
}

// UpdateCells writes a grid of values starting at Range.
func (c *Client) UpdateCells(ctx context.Context, p backend.UpdateCellsParams) (any, error) {
	rng := a1Range(p.Sheet, p.Range)

	resp, err := observe(ctx, c, instrumentation.ServiceSheets, "values.update", p.SpreadsheetID,
		func(ctx context.Context) (*sheets.UpdateValuesResponse, error) {
			return c.sheets.Spreadsheets.Values.Update(p.SpreadsheetID, rng, &sheets.ValueRange{Values: p.Data}).
				ValueInputOption(valueInputUserEntered).
				Context(ctx).
				Do()
		})
	if err != nil {
		return nil, fmt.Errorf("update cells: %w", err)
	}
	return resp, nil
}

// BatchUpdateCells writes several ranges in one request.
func (c *Client) BatchUpdateCells(ctx context.Context, p backend.BatchUpdateCellsParams) (any, error) {
	data := make([]*sheets.ValueRange, 0, len(p.Updates))
	for _, u := range p.Updates {
		rng := u.Range
		if u.Sheet != "" {
			rng = a1Range(u.Sheet, u.Range)
		}
		data = append(data, &sheets.ValueRange{Range: rng, Values: u.Values})
	}

	resp, err := observe(ctx, c, instrumentation.ServiceSheets, "values.batchUpdate", p.SpreadsheetID,
		func(ctx context.Context) (*sheets.BatchUpdateValuesResponse, error) {
			return c.sheets.Spreadsheets.Values.BatchUpdate(p.SpreadsheetID, &sheets.BatchUpdateValuesRequest{
				ValueInputOption: valueInputUserEntered,
				Data:             data,
			}).Context(ctx).Do()
		})
	if err != nil {
		return nil, fmt.Errorf("batch update cells: %w", err)
	}
	return resp, nil
}

// AddRows appends rows after the last row with data, or, when Append is
// false, inserts them above the first row.
func (c *Client) AddRows(ctx context.Context, p backend.AddRowsParams) (any, error) {
	if p.ShouldAppend() {
		resp, err := observe(ctx, c, instrumentation.ServiceSheets, "values.append", p.SpreadsheetID,
			func(ctx context.Context) (*sheets.AppendValuesResponse, error) {
				return c.sheets.Spreadsheets.Values.Append(p.SpreadsheetID, quoteSheet(p.Sheet), &sheets.ValueRange{Values: p.Rows}).
					ValueInputOption(valueInputUserEntered).
					InsertDataOption(insertRows).
					Context(ctx).
					Do()
			})
		if err != nil {
			return nil, fmt.Errorf("append rows: %w", err)
		}
		return resp, nil
	}

	if len(p.Rows) > 0 {
		sheetID, err := c.sheetID(ctx, p.SpreadsheetID, p.Sheet)
		if err != nil {
			return nil, fmt.Errorf("insert rows: %w", err)
		}
		insert := &sheets.Request{
			InsertDimension: &sheets.InsertDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:         sheetID,
					Dimension:       "ROWS",
					StartIndex:      0,
					EndIndex:        int64(len(p.Rows)),
					ForceSendFields: []string{"SheetId", "StartIndex"},
				},
			},
		}
		if _, err := c.batchUpdate(ctx, p.SpreadsheetID, insert); err != nil {
			return nil, fmt.Errorf("insert rows: %w", err)
		}
	}

	resp, err := observe(ctx, c, instrumentation.ServiceSheets, "values.update", p.SpreadsheetID,
		func(ctx context.Context) (*sheets.UpdateValuesResponse, error) {
			return c.sheets.Spreadsheets.Values.Update(p.SpreadsheetID, a1Range(p.Sheet, "A1"), &sheets.ValueRange{Values: p.Rows}).
				ValueInputOption(valueInputUserEntered).
				Context(ctx).
				Do()
		})
	if err != nil {
		return nil, fmt.Errorf("insert rows: %w", err)
	}
	return resp, nil
}
