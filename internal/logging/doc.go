// Package logging holds the slog conventions shared by sheetsgate.
//
// NewLogger builds the process logger (text or JSON, optional debug level).
// The attribute helpers keep key names stable across the gateway, the
// backend and the audit log:
//
//	logger.Info("cells updated",
//	    logging.ClientID(clientID),
//	    logging.SpreadsheetID(id))
//
// Share recipients are logged with UserHash or Domain, never verbatim, and
// API keys only through SanitizeKey.
//
// WithFields and AddField let handlers attach values, such as the
// authenticated client id, to the request log line written by the server
// middleware.
package logging
