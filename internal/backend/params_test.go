package backend

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

type validator interface{ Validate() error }

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name      string
		params    validator
		wantField string
	}{
		{name: "get_sheet_data ok", params: &GetSheetDataParams{SpreadsheetID: "s", Sheet: "Sheet1"}},
		{name: "get_sheet_data missing sheet", params: &GetSheetDataParams{SpreadsheetID: "s"}, wantField: "sheet"},
		{name: "get_sheet_formulas missing id", params: &GetSheetFormulasParams{Sheet: "Sheet1"}, wantField: "spreadsheet_id"},
		{
			name:   "update_cells ok",
			params: &UpdateCellsParams{SpreadsheetID: "s", Sheet: "Sheet1", Range: "A1:B2", Data: [][]any{{1, 2}, {3, 4}}},
		},
		{
			name:      "update_cells missing range",
			params:    &UpdateCellsParams{SpreadsheetID: "s", Sheet: "Sheet1", Data: [][]any{{1}}},
			wantField: "range",
		},
		{
			name:      "update_cells missing data",
			params:    &UpdateCellsParams{SpreadsheetID: "s", Sheet: "Sheet1", Range: "A1"},
			wantField: "data",
		},
		{
			name:      "update_cells null row",
			params:    &UpdateCellsParams{SpreadsheetID: "s", Sheet: "Sheet1", Range: "A1", Data: [][]any{nil}},
			wantField: "data[0]",
		},
		{
			name:   "update_cells empty grid",
			params: &UpdateCellsParams{SpreadsheetID: "s", Sheet: "Sheet1", Range: "A1", Data: [][]any{}},
		},
		{
			name:      "batch_update missing updates",
			params:    &BatchUpdateCellsParams{SpreadsheetID: "s"},
			wantField: "updates",
		},
		{
			name: "batch_update entry missing range",
			params: &BatchUpdateCellsParams{SpreadsheetID: "s", Updates: []CellUpdate{
				{Range: "A1", Values: [][]any{{1}}},
				{Values: [][]any{{2}}},
			}},
			wantField: "updates[1].range",
		},
		{name: "add_rows missing rows", params: &AddRowsParams{SpreadsheetID: "s", Sheet: "Sheet1"}, wantField: "rows"},
		{name: "create_spreadsheet blank title", params: &CreateSpreadsheetParams{Title: "  "}, wantField: "title"},
		{name: "create_sheet ok", params: &CreateSheetParams{SpreadsheetID: "s", Title: "New"}},
		{name: "list_sheets missing id", params: &ListSheetsParams{}, wantField: "spreadsheet_id"},
		{name: "share missing emails", params: &ShareSpreadsheetParams{SpreadsheetID: "s"}, wantField: "email_addresses"},
		{
			name:      "share empty email",
			params:    &ShareSpreadsheetParams{SpreadsheetID: "s", EmailAddresses: []string{"a@example.com", ""}},
			wantField: "email_addresses[1]",
		},
		{name: "rename missing new name", params: &RenameSheetParams{SpreadsheetID: "s", OldName: "a"}, wantField: "new_name"},
		{name: "copy ok without dst sheet", params: &CopySheetParams{SrcSpreadsheet: "a", SrcSheet: "S", DstSpreadsheet: "b"}},
		{name: "copy missing src sheet", params: &CopySheetParams{SrcSpreadsheet: "a", DstSpreadsheet: "b"}, wantField: "src_sheet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.params.Validate()
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			if assert.True(t, errors.As(err, &ve), "expected a ValidationError, got %v", err) {
				assert.Equal(t, tt.wantField, ve.Field)
			}
		})
	}
}

func TestAddRowsParams_ShouldAppend(t *testing.T) {
	assert.True(t, (&AddRowsParams{}).ShouldAppend())
	assert.True(t, (&AddRowsParams{Append: ptr(true)}).ShouldAppend())
	assert.False(t, (&AddRowsParams{Append: ptr(false)}).ShouldAppend())
}

func TestShareSpreadsheetParams_Defaults(t *testing.T) {
	p := &ShareSpreadsheetParams{}
	assert.Equal(t, RoleReader, p.EffectiveRole())
	assert.True(t, p.ShouldNotify())

	p = &ShareSpreadsheetParams{Role: RoleWriter, SendNotification: ptr(false)}
	assert.Equal(t, RoleWriter, p.EffectiveRole())
	assert.False(t, p.ShouldNotify())
}

func TestValidRole(t *testing.T) {
	for _, role := range []string{"reader", "writer", "commenter", "owner"} {
		assert.True(t, ValidRole(role), role)
	}
	assert.False(t, ValidRole("editor"))
	assert.False(t, ValidRole(""))
}
