package google

import (
	drive "google.golang.org/api/drive/v3"
	sheets "google.golang.org/api/sheets/v4"
)

// DefaultScopes are the OAuth scopes requested for every credential source.
// Drive access is needed to create spreadsheets in a folder, list them, and
// share them.
var DefaultScopes = []string{
	sheets.SpreadsheetsScope,
	drive.DriveScope,
}
