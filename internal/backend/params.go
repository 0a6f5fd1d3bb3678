package backend

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Share roles accepted by ShareSpreadsheet.
const (
	RoleReader    = "reader"
	RoleWriter    = "writer"
	RoleCommenter = "commenter"
	RoleOwner     = "owner"
)

// Roles lists the accepted share roles.
var Roles = []string{RoleReader, RoleWriter, RoleCommenter, RoleOwner}

// ValidationError reports a structurally invalid request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "field required"}
	}
	return nil
}

func requiredGrid(field string, grid [][]any) error {
	if grid == nil {
		return &ValidationError{Field: field, Message: "field required"}
	}
	for i, row := range grid {
		if row == nil {
			return &ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "must be a list"}
		}
	}
	return nil
}

type GetSheetDataParams struct {
	SpreadsheetID   string  `json:"spreadsheet_id"`
	Sheet           string  `json:"sheet"`
	Range           *string `json:"range,omitempty"`
	IncludeGridData bool    `json:"include_grid_data"`
}

func (p *GetSheetDataParams) Validate() error {
	return errors.Join(required("spreadsheet_id", p.SpreadsheetID), required("sheet", p.Sheet))
}

type GetSheetFormulasParams struct {
	SpreadsheetID string  `json:"spreadsheet_id"`
	Sheet         string  `json:"sheet"`
	Range         *string `json:"range,omitempty"`
}

func (p *GetSheetFormulasParams) Validate() error {
	return errors.Join(required("spreadsheet_id", p.SpreadsheetID), required("sheet", p.Sheet))
}

type UpdateCellsParams struct {
	SpreadsheetID string  `json:"spreadsheet_id"`
	Sheet         string  `json:"sheet"`
	Range         string  `json:"range"`
	Data          [][]any `json:"data"`
}

func (p *UpdateCellsParams) Validate() error {
	return errors.Join(
		required("spreadsheet_id", p.SpreadsheetID),
		required("sheet", p.Sheet),
		required("range", p.Range),
		requiredGrid("data", p.Data),
	)
}

// CellUpdate is one entry of a batch update. When Sheet is set, Range is
// relative to that sheet.
type CellUpdate struct {
	Range  string  `json:"range"`
	Values [][]any `json:"values"`
	Sheet  string  `json:"sheet,omitempty"`
}

type BatchUpdateCellsParams struct {
	SpreadsheetID string       `json:"spreadsheet_id"`
	Updates       []CellUpdate `json:"updates"`
}

func (p *BatchUpdateCellsParams) Validate() error {
	errs := []error{required("spreadsheet_id", p.SpreadsheetID)}
	if p.Updates == nil {
		errs = append(errs, &ValidationError{Field: "updates", Message: "field required"})
	}
	for i, u := range p.Updates {
		errs = append(errs,
			required(fmt.Sprintf("updates[%d].range", i), u.Range),
			requiredGrid(fmt.Sprintf("updates[%d].values", i), u.Values),
		)
	}
	return errors.Join(errs...)
}

type AddRowsParams struct {
	SpreadsheetID string  `json:"spreadsheet_id"`
	Sheet         string  `json:"sheet"`
	Rows          [][]any `json:"rows"`
	// Append defaults to true. When false the rows are inserted at the top.
	Append *bool `json:"append,omitempty"`
}

// ShouldAppend resolves the Append default.
func (p *AddRowsParams) ShouldAppend() bool {
	return p.Append == nil || *p.Append
}

func (p *AddRowsParams) Validate() error {
	return errors.Join(
		required("spreadsheet_id", p.SpreadsheetID),
		required("sheet", p.Sheet),
		requiredGrid("rows", p.Rows),
	)
}

type CreateSpreadsheetParams struct {
	Title string `json:"title"`
}

func (p *CreateSpreadsheetParams) Validate() error {
	return required("title", p.Title)
}

type CreateSheetParams struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	Title         string `json:"title"`
}

func (p *CreateSheetParams) Validate() error {
	return errors.Join(required("spreadsheet_id", p.SpreadsheetID), required("title", p.Title))
}

type ListSheetsParams struct {
	SpreadsheetID string `json:"spreadsheet_id"`
}

func (p *ListSheetsParams) Validate() error {
	return required("spreadsheet_id", p.SpreadsheetID)
}

type ShareSpreadsheetParams struct {
	SpreadsheetID  string   `json:"spreadsheet_id"`
	EmailAddresses []string `json:"email_addresses"`
	// Role defaults to RoleReader.
	Role string `json:"role,omitempty"`
	// SendNotification defaults to true.
	SendNotification *bool `json:"send_notification,omitempty"`
}

// EffectiveRole resolves the Role default.
func (p *ShareSpreadsheetParams) EffectiveRole() string {
	if p.Role == "" {
		return RoleReader
	}
	return p.Role
}

// ShouldNotify resolves the SendNotification default.
func (p *ShareSpreadsheetParams) ShouldNotify() bool {
	return p.SendNotification == nil || *p.SendNotification
}

// ValidRole reports whether role is an accepted share role.
func ValidRole(role string) bool {
	return slices.Contains(Roles, role)
}

func (p *ShareSpreadsheetParams) Validate() error {
	errs := []error{required("spreadsheet_id", p.SpreadsheetID)}
	if p.EmailAddresses == nil {
		errs = append(errs, &ValidationError{Field: "email_addresses", Message: "field required"})
	}
	for i, addr := range p.EmailAddresses {
		errs = append(errs, required(fmt.Sprintf("email_addresses[%d]", i), addr))
	}
	return errors.Join(errs...)
}

type RenameSheetParams struct {
	SpreadsheetID string `json:"spreadsheet_id"`
	OldName       string `json:"old_name"`
	NewName       string `json:"new_name"`
}

func (p *RenameSheetParams) Validate() error {
	return errors.Join(
		required("spreadsheet_id", p.SpreadsheetID),
		required("old_name", p.OldName),
		required("new_name", p.NewName),
	)
}

type CopySheetParams struct {
	SrcSpreadsheet string  `json:"src_spreadsheet"`
	SrcSheet       string  `json:"src_sheet"`
	DstSpreadsheet string  `json:"dst_spreadsheet"`
	DstSheet       *string `json:"dst_sheet,omitempty"`
}

func (p *CopySheetParams) Validate() error {
	return errors.Join(
		required("src_spreadsheet", p.SrcSpreadsheet),
		required("src_sheet", p.SrcSheet),
		required("dst_spreadsheet", p.DstSpreadsheet),
	)
}
