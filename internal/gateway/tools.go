package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/teemow/sheetsgate/internal/backend"
)

// ParamType is the JSON shape of a tool parameter.
type ParamType int

const (
	ParamString ParamType = iota
	ParamBoolean
	// ParamGrid is a list of rows, each a list of cell values.
	ParamGrid
	ParamStringList
	// ParamObjectList is a list of objects, used by batch_update_cells.
	ParamObjectList
)

// Param describes one tool parameter for transports that publish a schema.
type Param struct {
	Name        string
	Type        ParamType
	Required    bool
	Description string
	// Default is documented only; defaults are applied by the parameter types.
	Default any
}

// Tool is one gateway operation.
type Tool struct {
	Name        string
	Description string

	// Method and Path route the tool over HTTP. Path parameters are decoded
	// as body fields of the same name.
	Method     string
	Path       string
	PathParams []string

	// ResultField names the envelope field holding the backend result.
	ResultField string
	Params      []Param
	ReadOnly    bool

	decode func(data []byte) (*Call, error)
}

// Decode parses and validates the JSON arguments of a tool call. An empty
// body is treated as an empty object so that missing fields are reported
// individually.
func (t Tool) Decode(data []byte) (*Call, error) {
	return t.decode(data)
}

// Call is a decoded and validated tool call, ready to run against a Backend.
type Call struct {
	Tool          string
	SpreadsheetID string
	Recipients    []string

	run func(ctx context.Context, b backend.Backend) (any, error)
}

// Run performs the call's single backend operation.
func (c *Call) Run(ctx context.Context, b backend.Backend) (any, error) {
	return c.run(ctx, b)
}

// validator is implemented by pointers to the backend parameter types.
type validator[P any] interface {
	*P
	Validate() error
}

// target is what a call is about, for tracing and audit.
type target struct {
	spreadsheetID string
	recipients    []string
}

func newTool[P any, PP validator[P]](t Tool, describe func(p *P) target, run func(ctx context.Context, b backend.Backend, p P) (any, error)) Tool {
	t.decode = func(data []byte) (*Call, error) {
		var p P
		if len(bytes.TrimSpace(data)) > 0 {
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, fmt.Errorf("invalid request body: %w", err)
			}
		}
		if err := PP(&p).Validate(); err != nil {
			return nil, err
		}

		call := &Call{
			Tool: t.Name,
			run: func(ctx context.Context, b backend.Backend) (any, error) {
				return run(ctx, b, p)
			},
		}
		if describe != nil {
			tg := describe(&p)
			call.SpreadsheetID = tg.spreadsheetID
			call.Recipients = tg.recipients
		}
		return call, nil
	}
	return t
}

// noParams is the parameter type of tools without inputs.
type noParams struct{}

func (noParams) Validate() error { return nil }

var (
	paramSpreadsheetID = Param{Name: "spreadsheet_id", Type: ParamString, Required: true, Description: "The ID of the spreadsheet (found in the URL)"}
	paramSheet         = Param{Name: "sheet", Type: ParamString, Required: true, Description: "The name of the sheet"}
	paramOptionalRange = Param{Name: "range", Type: ParamString, Description: "Cell range in A1 notation (e.g. 'A1:C10'); defaults to the whole sheet"}
)

// Tools returns the gateway's tool table in a fixed order.
func Tools() []Tool {
	return []Tool{
		newTool(Tool{
			Name:        "get_sheet_data",
			Description: "Get data from a specific sheet in a Google Spreadsheet",
			Method:      http.MethodPost,
			Path:        "/tools/get_sheet_data",
			ResultField: "data",
			ReadOnly:    true,
			Params: []Param{
				paramSpreadsheetID,
				paramSheet,
				paramOptionalRange,
				{Name: "include_grid_data", Type: ParamBoolean, Description: "Include cell formatting and other metadata", Default: false},
			},
		}, func(p *backend.GetSheetDataParams) target {
			return target{spreadsheetID: p.SpreadsheetID}
		}, func(ctx context.Context, b backend.Backend, p backend.GetSheetDataParams) (any, error) {
			return b.GetSheetData(ctx, p)
		}),

		newTool(Tool{
			Name:        "get_sheet_formulas",
			Description: "Get formulas from a specific sheet in a Google Spreadsheet",
			Method:      http.MethodPost,
			Path:        "/tools/get_sheet_formulas",
			ResultField: "formulas",
			ReadOnly:    true,
			Params:      []Param{paramSpreadsheetID, paramSheet, paramOptionalRange},
		}, func(p *backend.GetSheetFormulasParams) target {
			return target{spreadsheetID: p.SpreadsheetID}
		}, func(ctx context.Context, b backend.Backend, p backend.GetSheetFormulasParams) (any, error) {
			return b.GetSheetFormulas(ctx, p)
		}),

		newTool(Tool{
			Name:        "update_cells",
			Description: "Update cells in a Google Spreadsheet",
			Method:      http.MethodPost,
			Path:        "/tools/update_cells",
			ResultField: "result",
			Params: []Param{
				paramSpreadsheetID,
				paramSheet,
				{Name: "range", Type: ParamString, Required: true, Description: "Cell range in A1 notation (e.g. 'A1:C10')"},
				{Name: "data", Type: ParamGrid, Required: true, Description: "2D array of values to write"},
			},
		}, func(p *backend.UpdateCellsParams) target {
			return target{spreadsheetID: p.SpreadsheetID}
		}, func(ctx context.Context, b backend.Backend, p backend.UpdateCellsParams) (any, error) {
			return b.UpdateCells(ctx, p)
		}),

		newTool(Tool{
			Name:        "batch_update_cells",
			Description: "Update multiple ranges in a Google Spreadsheet in one request",
			Method:      http.MethodPost,
			Path:        "/tools/batch_update_cells",
			ResultField: "result",
			Params: []Param{
				paramSpreadsheetID,
				{Name: "updates", Type: ParamObjectList, Required: true, Description: "List of {range, values, sheet?} updates"},
			},
		}, func(p *backend.BatchUpdateCellsParams) target {
			return target{spreadsheetID: p.SpreadsheetID}
		}, func(ctx context.Context, b backend.Backend, p backend.BatchUpdateCellsParams) (any, error) {
			return b.BatchUpdateCells(ctx, p)
		}),

		newTool(Tool{
			Name:        "add_rows",
			Description: "Add rows to a sheet, appended after the data or inserted at the top",
			Method:      http.MethodPost,
			Path:        "/tools/add_rows",
			ResultField: "result",
			Params: []Param{
				paramSpreadsheetID,
				paramSheet,
				{Name: "rows", Type: ParamGrid, Required: true, Description: "Rows of values to add"},
				{Name: "append", Type: ParamBoolean, Description: "Append after the last row (true) or insert at the beginning (false)", Default: true},
			},
		}, func(p *backend.AddRowsParams) target {
			return target{spreadsheetID: p.SpreadsheetID}
		}, func(ctx context.Context, b backend.Backend, p backend.AddRowsParams) (any, error) {
			return b.AddRows(ctx, p)
		}),

		newTool(Tool{
			Name:        "create_spreadsheet",
			Description: "Create a new Google Spreadsheet",
			Method:      http.MethodPost,
			Path:        "/tools/create_spreadsheet",
			ResultField: "spreadsheet",
			Params: []Param{
				{Name: "title", Type: ParamString, Required: true, Description: "Title of the new spreadsheet"},
			},
		}, nil, func(ctx context.Context, b backend.Backend, p backend.CreateSpreadsheetParams) (any, error) {
			return b.CreateSpreadsheet(ctx, p)
		}),

		newTool(Tool{
			Name:        "create_sheet",
			Description: "Add a new sheet to an existing spreadsheet",
			Method:      http.MethodPost,
			Path:        "/tools/create_sheet",
			ResultField: "result",
			Params: []Param{
				paramSpreadsheetID,
				{Name: "title", Type: ParamString, Required: true, Description: "Title of the new sheet"},
			},
		}, func(p *backend.CreateSheetParams) target {
			return target{spreadsheetID: p.SpreadsheetID}
		}, func(ctx context.Context, b backend.Backend, p backend.CreateSheetParams) (any, error) {
			return b.CreateSheet(ctx, p)
		}),

		newTool(Tool{
			Name:        "list_spreadsheets",
			Description: "List spreadsheets in the configured Drive folder",
			Method:      http.MethodGet,
			Path:        "/tools/list_spreadsheets",
			ResultField: "spreadsheets",
			ReadOnly:    true,
		}, nil, func(ctx context.Context, b backend.Backend, _ noParams) (any, error) {
			return b.ListSpreadsheets(ctx)
		}),

		newTool(Tool{
			Name:        "list_sheets",
			Description: "List the sheet titles of a spreadsheet",
			Method:      http.MethodGet,
			Path:        "/tools/list_sheets/{spreadsheet_id}",
			PathParams:  []string{"spreadsheet_id"},
			ResultField: "sheets",
			ReadOnly:    true,
			Params:      []Param{paramSpreadsheetID},
		}, func(p *backend.ListSheetsParams) target {
			return target{spreadsheetID: p.SpreadsheetID}
		}, func(ctx context.Context, b backend.Backend, p backend.ListSheetsParams) (any, error) {
			return b.ListSheets(ctx, p)
		}),

		newTool(Tool{
			Name:        "share_spreadsheet",
			Description: "Share a spreadsheet with one or more users",
			Method:      http.MethodPost,
			Path:        "/tools/share_spreadsheet",
			ResultField: "result",
			Params: []Param{
				paramSpreadsheetID,
				{Name: "email_addresses", Type: ParamStringList, Required: true, Description: "Email addresses to share with"},
				{Name: "role", Type: ParamString, Description: "Permission role: reader, writer, commenter or owner", Default: backend.RoleReader},
				{Name: "send_notification", Type: ParamBoolean, Description: "Send a notification email", Default: true},
			},
		}, func(p *backend.ShareSpreadsheetParams) target {
			return target{spreadsheetID: p.SpreadsheetID, recipients: p.EmailAddresses}
		}, func(ctx context.Context, b backend.Backend, p backend.ShareSpreadsheetParams) (any, error) {
			return b.ShareSpreadsheet(ctx, p)
		}),

		newTool(Tool{
			Name:        "rename_sheet",
			Description: "Rename a sheet in a spreadsheet",
			Method:      http.MethodPost,
			Path:        "/tools/rename_sheet",
			ResultField: "result",
			Params: []Param{
				paramSpreadsheetID,
				{Name: "old_name", Type: ParamString, Required: true, Description: "Current name of the sheet"},
				{Name: "new_name", Type: ParamString, Required: true, Description: "New name for the sheet"},
			},
		}, func(p *backend.RenameSheetParams) target {
			return target{spreadsheetID: p.SpreadsheetID}
		}, func(ctx context.Context, b backend.Backend, p backend.RenameSheetParams) (any, error) {
			return b.RenameSheet(ctx, p)
		}),

		newTool(Tool{
			Name:        "copy_sheet",
			Description: "Copy a sheet to another (or the same) spreadsheet",
			Method:      http.MethodPost,
			Path:        "/tools/copy_sheet",
			ResultField: "result",
			Params: []Param{
				{Name: "src_spreadsheet", Type: ParamString, Required: true, Description: "Source spreadsheet ID"},
				{Name: "src_sheet", Type: ParamString, Required: true, Description: "Source sheet name"},
				{Name: "dst_spreadsheet", Type: ParamString, Required: true, Description: "Destination spreadsheet ID"},
				{Name: "dst_sheet", Type: ParamString, Description: "Name for the copied sheet"},
			},
		}, func(p *backend.CopySheetParams) target {
			return target{spreadsheetID: p.SrcSpreadsheet}
		}, func(ctx context.Context, b backend.Backend, p backend.CopySheetParams) (any, error) {
			return b.CopySheet(ctx, p)
		}),
	}
}
