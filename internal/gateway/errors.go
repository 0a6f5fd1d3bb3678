package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"

	"github.com/teemow/sheetsgate/internal/auth"
	"github.com/teemow/sheetsgate/internal/backend"
)

// Error is an error with the HTTP status it is reported with.
type Error struct {
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// BadRequest reports malformed input or a backend rejection of the caller's input.
func BadRequest(err error) *Error {
	return &Error{Status: http.StatusBadRequest, Detail: err.Error(), Err: err}
}

// Unauthorized reports a missing or unknown API key.
func Unauthorized(err error) *Error {
	return &Error{Status: http.StatusUnauthorized, Detail: err.Error(), Err: err}
}

// ServiceUnavailable reports a backend context that is not ready.
func ServiceUnavailable(err error) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Detail: err.Error(), Err: err}
}

// BadGateway reports a failure on the backend side.
func BadGateway(err error) *Error {
	return &Error{Status: http.StatusBadGateway, Detail: err.Error(), Err: err}
}

// FromBackend classifies err. Google API errors with a 4xx status other than
// 429 are caused by the request and become 400; 429, 5xx and transport
// errors become 502. The backend error text is kept as the detail.
func FromBackend(err error) *Error {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr
	}

	var validationErr *backend.ValidationError
	switch {
	case errors.Is(err, backend.ErrNotReady):
		return ServiceUnavailable(err)
	case errors.Is(err, auth.ErrMissingKey), errors.Is(err, auth.ErrInvalidKey):
		return Unauthorized(err)
	case errors.As(err, &validationErr), errors.Is(err, backend.ErrInvalidInput):
		return BadRequest(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != http.StatusTooManyRequests {
		return BadRequest(err)
	}
	return BadGateway(err)
}

// errorBody is the JSON body of every failed request.
type errorBody struct {
	Detail     string `json:"detail"`
	StatusCode int    `json:"status_code"`
}

func writeError(w http.ResponseWriter, err *Error) {
	writeJSON(w, err.Status, errorBody{Detail: err.Detail, StatusCode: err.Status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
