// Package sheets implements the spreadsheet backend on top of the Google
// Sheets v4 and Drive v3 APIs.
//
// Every Client method maps to one gateway tool. Values are written with the
// USER_ENTERED input option, so strings such as "=SUM(A1:A3)" or "2024-01-01"
// are parsed the way the Sheets UI would parse them.
package sheets
