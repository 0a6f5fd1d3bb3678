// Package backend defines the spreadsheet operations the gateway exposes and
// the process-wide Context that owns the backend client.
//
// The Context moves through Uninitialized, Initializing, Ready and
// ShuttingDown. Only a Ready context hands out its Backend; every other state
// fails fast with ErrNotReady.
package backend
