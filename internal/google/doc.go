// Package google obtains OAuth2 credentials for the Google Sheets and Drive
// APIs and builds the authenticated HTTP client shared by both services.
//
// Credentials are resolved in order: a service account key file, a base64
// encoded service account key, a stored OAuth token plus OAuth client file,
// and finally Application Default Credentials.
package google
