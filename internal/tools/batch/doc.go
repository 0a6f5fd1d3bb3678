// Package batch runs one operation per item and collects per-item outcomes,
// so that a partial failure does not hide the items that succeeded.
//
// It also parses tool arguments that accept either a single string or a list
// of strings.
package batch
