package common

import (
	"github.com/teemow/sheetsgate/internal/tools/batch"
)

// SpreadsheetFromArgs extracts the spreadsheet a tool call targets.
// copy_sheet names its source spreadsheet src_spreadsheet.
func SpreadsheetFromArgs(args map[string]any) string {
	for _, key := range []string{"spreadsheet_id", "src_spreadsheet"} {
		if id, ok := args[key].(string); ok && id != "" {
			return id
		}
	}
	return ""
}

// RecipientsFromArgs extracts share recipients. It returns nil when the
// arguments carry none or they are malformed.
func RecipientsFromArgs(args map[string]any) []string {
	if args["email_addresses"] == nil {
		return nil
	}
	emails, err := batch.ParseStringOrArray(args["email_addresses"], "email_addresses")
	if err != nil {
		return nil
	}
	return emails
}
