// Package gateway exposes the spreadsheet tools over HTTP.
//
// Every tool follows the same template: decode and validate the JSON body,
// authenticate the X-API-Key header, check that the backend context is ready,
// call exactly one backend operation and wrap its result in an envelope
// holding the caller's client id:
//
//	{"client_id": "default", "result": {...}}
//
// Failures are returned as {"detail": "...", "status_code": 400}. Input errors
// and backend rejections of the caller's input map to 400, authentication
// failures to 401, an uninitialized backend to 503 and backend-side failures
// to 502.
//
// The tool table returned by Tools is static and shared with the MCP
// transport.
package gateway
