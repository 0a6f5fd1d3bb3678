package backend

import (
	"context"
	"errors"
)

// ErrInvalidInput marks backend errors caused by the caller's input, such as
// an unknown sheet name or an unsupported share role.
var ErrInvalidInput = errors.New("invalid input")

// Backend is the set of spreadsheet operations. Each method performs the
// remote calls for exactly one tool.
//
// Results that are Google API responses are returned as-is and serialized
// verbatim by the gateway.
type Backend interface {
	GetSheetData(ctx context.Context, p GetSheetDataParams) (any, error)
	GetSheetFormulas(ctx context.Context, p GetSheetFormulasParams) ([][]any, error)
	UpdateCells(ctx context.Context, p UpdateCellsParams) (any, error)
	BatchUpdateCells(ctx context.Context, p BatchUpdateCellsParams) (any, error)
	AddRows(ctx context.Context, p AddRowsParams) (any, error)
	CreateSpreadsheet(ctx context.Context, p CreateSpreadsheetParams) (*SpreadsheetInfo, error)
	CreateSheet(ctx context.Context, p CreateSheetParams) (*SheetInfo, error)
	ListSpreadsheets(ctx context.Context) ([]SpreadsheetSummary, error)
	ListSheets(ctx context.Context, p ListSheetsParams) ([]string, error)
	ShareSpreadsheet(ctx context.Context, p ShareSpreadsheetParams) (*ShareResult, error)
	RenameSheet(ctx context.Context, p RenameSheetParams) (any, error)
	CopySheet(ctx context.Context, p CopySheetParams) (*CopyResult, error)
}

// SpreadsheetInfo describes a newly created spreadsheet.
type SpreadsheetInfo struct {
	SpreadsheetID string `json:"spreadsheetId"`
	Title         string `json:"title"`
	// Folder is the Drive folder id, or "root" when none is configured.
	Folder string `json:"folder"`
}

// SheetInfo describes a newly created sheet.
type SheetInfo struct {
	SheetID       int64  `json:"sheetId"`
	Title         string `json:"title"`
	Index         int64  `json:"index"`
	SpreadsheetID string `json:"spreadsheetId"`
}

// SpreadsheetSummary is one entry of ListSpreadsheets.
type SpreadsheetSummary struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// ShareSuccess is a permission granted to one address.
type ShareSuccess struct {
	EmailAddress string `json:"email_address"`
	PermissionID string `json:"permission_id"`
	Role         string `json:"role"`
}

// ShareFailure is an address that could not be granted access.
type ShareFailure struct {
	EmailAddress string `json:"email_address"`
	Error        string `json:"error"`
}

// ShareResult groups per-address outcomes. Both lists are always present.
type ShareResult struct {
	Successes []ShareSuccess `json:"successes"`
	Failures  []ShareFailure `json:"failures"`
}

// CopyResult is the copied sheet's properties and, when the copy was renamed,
// the rename response.
type CopyResult struct {
	Copy   any `json:"copy"`
	Rename any `json:"rename,omitempty"`
}
