package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/teemow/sheetsgate/internal/auth"
	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/backend/backendtest"
	"github.com/teemow/sheetsgate/internal/logging"
)

const (
	testKey    = "sk-test-key"
	testClient = "test_client"
)

// validBodies holds a well-formed request for every protected tool.
var validBodies = map[string]string{
	"get_sheet_data":     `{"spreadsheet_id":"ss1","sheet":"Sheet1"}`,
	"get_sheet_formulas": `{"spreadsheet_id":"ss1","sheet":"Sheet1","range":"A1:B2"}`,
	"update_cells":       `{"spreadsheet_id":"ss1","sheet":"Sheet1","range":"A1","data":[[1,2],[3,4]]}`,
	"batch_update_cells": `{"spreadsheet_id":"ss1","updates":[{"range":"A1","values":[["x"]]}]}`,
	"add_rows":           `{"spreadsheet_id":"ss1","sheet":"Sheet1","rows":[["a","b"]]}`,
	"create_spreadsheet": `{"title":"Budget"}`,
	"create_sheet":       `{"spreadsheet_id":"ss1","title":"Q3"}`,
	"list_spreadsheets":  ``,
	"list_sheets":        ``,
	"share_spreadsheet":  `{"spreadsheet_id":"ss1","email_addresses":["a@example.com"]}`,
	"rename_sheet":       `{"spreadsheet_id":"ss1","old_name":"Old","new_name":"New"}`,
	"copy_sheet":         `{"src_spreadsheet":"src","src_sheet":"Sheet1","dst_spreadsheet":"dst"}`,
}

func newTestServer(t *testing.T, bc *backend.Context) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	New(bc, auth.New(auth.StaticKeys{testClient: testKey, "other": "sk-other"}, nil)).Mount(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newReadyServer(t *testing.T, stub *backendtest.Stub) *httptest.Server {
	t.Helper()
	return newTestServer(t, backend.NewReadyContext(stub, backend.WithLogger(logging.Discard().Logger())))
}

// toolRequest builds the request for tool with body; list_sheets takes its
// spreadsheet id from the path.
func toolRequest(t *testing.T, srvURL string, tool Tool, body, key string) *http.Request {
	t.Helper()
	path := strings.ReplaceAll(tool.Path, "{spreadsheet_id}", "ss1")
	req, err := http.NewRequest(tool.Method, srvURL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set(auth.HeaderName, key)
	}
	return req
}

func do(t *testing.T, req *http.Request) (int, map[string]any) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestTools_Table(t *testing.T) {
	tools := Tools()
	require.Len(t, tools, 12)

	seen := map[string]bool{}
	for _, tool := range tools {
		assert.False(t, seen[tool.Name], "duplicate tool %s", tool.Name)
		seen[tool.Name] = true
		assert.NotEmpty(t, tool.ResultField, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
		assert.True(t, strings.HasPrefix(tool.Path, "/tools/"+tool.Name), tool.Name)
		_, ok := validBodies[tool.Name]
		assert.True(t, ok, "no test body for %s", tool.Name)
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name  string
		ready bool
	}{
		{name: "initialized", ready: true},
		{name: "not initialized", ready: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bc := backend.NewContext(func(context.Context) (backend.Backend, error) {
				return &backendtest.Stub{}, nil
			}, backend.WithLogger(logging.Discard().Logger()))
			if tt.ready {
				require.NoError(t, bc.Start(context.Background()))
			}
			srv := newTestServer(t, bc)

			req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
			require.NoError(t, err)
			status, body := do(t, req)

			assert.Equal(t, http.StatusOK, status)
			want := map[string]any{"status": "healthy", "service": ServiceName, "context_initialized": tt.ready}
			if diff := cmp.Diff(want, body); diff != "" {
				t.Errorf("health body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestProtectedEndpoints_Unauthorized(t *testing.T) {
	keys := []struct {
		name   string
		key    string
		detail string
	}{
		{name: "missing key", key: "", detail: "API Key required"},
		{name: "unknown key", key: "sk-nope", detail: "Invalid API Key"},
	}

	for _, tool := range Tools() {
		for _, k := range keys {
			t.Run(tool.Name+"/"+k.name, func(t *testing.T) {
				stub := &backendtest.Stub{}
				srv := newReadyServer(t, stub)

				status, body := do(t, toolRequest(t, srv.URL, tool, validBodies[tool.Name], k.key))

				assert.Equal(t, http.StatusUnauthorized, status)
				assert.Equal(t, k.detail, body["detail"])
				assert.Equal(t, float64(http.StatusUnauthorized), body["status_code"])
				assert.Zero(t, stub.CallCount())
			})
		}
	}
}

func TestProtectedEndpoints_ClientID(t *testing.T) {
	for _, tool := range Tools() {
		t.Run(tool.Name, func(t *testing.T) {
			stub := &backendtest.Stub{Result: map[string]any{"ok": true}}
			srv := newReadyServer(t, stub)

			status, body := do(t, toolRequest(t, srv.URL, tool, validBodies[tool.Name], testKey))

			require.Equal(t, http.StatusOK, status, body)
			assert.Equal(t, testClient, body["client_id"])
			assert.Contains(t, body, tool.ResultField)
			assert.Len(t, body, 2)
			assert.Equal(t, 1, stub.CallCount())
		})
	}
}

func TestProtectedEndpoints_NotReady(t *testing.T) {
	for _, tool := range Tools() {
		t.Run(tool.Name, func(t *testing.T) {
			stub := &backendtest.Stub{}
			bc := backend.NewContext(func(context.Context) (backend.Backend, error) {
				return stub, nil
			}, backend.WithLogger(logging.Discard().Logger()))
			srv := newTestServer(t, bc)

			status, body := do(t, toolRequest(t, srv.URL, tool, validBodies[tool.Name], testKey))

			assert.Equal(t, http.StatusServiceUnavailable, status)
			assert.Equal(t, "Service not initialized", body["detail"])
			assert.Zero(t, stub.CallCount())
		})
	}
}

func TestUpdateCells_PassesResultThrough(t *testing.T) {
	result := map[string]any{
		"spreadsheetId":  "ss1",
		"updatedRange":   "Sheet1!A1:B2",
		"updatedCells":   float64(4),
		"updatedColumns": float64(2),
	}
	stub := &backendtest.Stub{Result: result}
	srv := newReadyServer(t, stub)
	tool := toolByName(t, "update_cells")

	status, body := do(t, toolRequest(t, srv.URL, tool, validBodies["update_cells"], testKey))

	require.Equal(t, http.StatusOK, status)
	want := map[string]any{"client_id": testClient, "result": result}
	if diff := cmp.Diff(want, body); diff != "" {
		t.Errorf("envelope mismatch (-want +got):\n%s", diff)
	}

	call, ok := stub.LastCall()
	require.True(t, ok)
	params := call.Params.(backend.UpdateCellsParams)
	assert.Equal(t, "ss1", params.SpreadsheetID)
	assert.Equal(t, "Sheet1", params.Sheet)
	assert.Equal(t, "A1", params.Range)
	assert.Equal(t, [][]any{{float64(1), float64(2)}, {float64(3), float64(4)}}, params.Data)
}

func TestValidation_BadRequest(t *testing.T) {
	tests := []struct {
		tool   string
		body   string
		detail string
	}{
		{tool: "update_cells", body: `{"spreadsheet_id":"ss1","sheet":"Sheet1","data":[[1,2],[3,4]]}`, detail: "range"},
		{tool: "update_cells", body: `{"spreadsheet_id":"ss1","sheet":"Sheet1","range":"A1","data":[1,2]}`, detail: "invalid request body"},
		{tool: "update_cells", body: `{"spreadsheet_id":"ss1","sheet":"Sheet1","range":"A1"}`, detail: "data"},
		{tool: "get_sheet_data", body: `{"sheet":"Sheet1"}`, detail: "spreadsheet_id"},
		{tool: "get_sheet_data", body: `{`, detail: "invalid request body"},
		{tool: "get_sheet_data", body: ``, detail: "spreadsheet_id"},
		{tool: "add_rows", body: `{"spreadsheet_id":"ss1","sheet":"Sheet1","rows":[["a"]],"append":"yes"}`, detail: "invalid request body"},
		{tool: "share_spreadsheet", body: `{"spreadsheet_id":"ss1"}`, detail: "email_addresses"},
		{tool: "copy_sheet", body: `{"src_spreadsheet":"src","src_sheet":"Sheet1"}`, detail: "dst_spreadsheet"},
		{tool: "create_spreadsheet", body: `{"title":42}`, detail: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s %s", tt.tool, tt.body), func(t *testing.T) {
			stub := &backendtest.Stub{}
			srv := newReadyServer(t, stub)

			status, body := do(t, toolRequest(t, srv.URL, toolByName(t, tt.tool), tt.body, testKey))

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Contains(t, body["detail"], tt.detail)
			assert.Equal(t, float64(http.StatusBadRequest), body["status_code"])
			assert.Zero(t, stub.CallCount())
		})
	}
}

func TestValidation_AfterAuthentication(t *testing.T) {
	tests := []struct {
		name   string
		tool   string
		body   string
		status int
		detail string
	}{
		{name: "missing field", tool: "update_cells", body: `{"spreadsheet_id":"ss1","sheet":"Sheet1"}`, status: http.StatusUnauthorized, detail: "API Key required"},
		{name: "wrong field type", tool: "create_spreadsheet", body: `{"title":42}`, status: http.StatusUnauthorized, detail: "API Key required"},
		{name: "empty body", tool: "get_sheet_data", body: ``, status: http.StatusUnauthorized, detail: "API Key required"},
		{name: "malformed json", tool: "get_sheet_data", body: `{"spreadsheet_id":`, status: http.StatusBadRequest, detail: "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &backendtest.Stub{}
			srv := newReadyServer(t, stub)

			status, body := do(t, toolRequest(t, srv.URL, toolByName(t, tt.tool), tt.body, ""))

			assert.Equal(t, tt.status, status)
			assert.Contains(t, body["detail"], tt.detail)
			assert.Equal(t, float64(tt.status), body["status_code"])
			assert.Zero(t, stub.CallCount())
		})
	}
}

func TestUnknownRoutes(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		status int
		detail string
	}{
		{name: "unknown tool", method: http.MethodPost, path: "/tools/delete_spreadsheet", status: http.StatusNotFound, detail: "Not Found"},
		{name: "unknown root", method: http.MethodGet, path: "/", status: http.StatusNotFound, detail: "Not Found"},
		{name: "get on post tool", method: http.MethodGet, path: "/tools/update_cells", status: http.StatusMethodNotAllowed, detail: "Method Not Allowed"},
		{name: "post on get tool", method: http.MethodPost, path: "/tools/list_sheets/ss1", status: http.StatusMethodNotAllowed, detail: "Method Not Allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newReadyServer(t, &backendtest.Stub{})

			req, err := http.NewRequest(tt.method, srv.URL+tt.path, nil)
			require.NoError(t, err)
			req.Header.Set(auth.HeaderName, testKey)
			status, body := do(t, req)

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.detail, body["detail"])
			assert.Equal(t, float64(tt.status), body["status_code"])
		})
	}
}

func TestListSheets_Idempotent(t *testing.T) {
	stub := &backendtest.Stub{
		ListSheetsFunc: func(_ context.Context, p backend.ListSheetsParams) ([]string, error) {
			return []string{"Sheet1", "Data"}, nil
		},
	}
	srv := newReadyServer(t, stub)
	tool := toolByName(t, "list_sheets")

	_, first := do(t, toolRequest(t, srv.URL, tool, "", testKey))
	_, second := do(t, toolRequest(t, srv.URL, tool, "", testKey))

	assert.Equal(t, first, second)
	assert.Equal(t, []any{"Sheet1", "Data"}, first["sheets"])

	call, ok := stub.LastCall()
	require.True(t, ok)
	assert.Equal(t, backend.ListSheetsParams{SpreadsheetID: "ss1"}, call.Params)
}

func TestBackendErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not found", err: &googleapi.Error{Code: 404, Message: "Requested entity was not found."}, status: http.StatusBadRequest},
		{name: "bad range", err: fmt.Errorf("get sheet data: %w", &googleapi.Error{Code: 400, Message: "Unable to parse range"}), status: http.StatusBadRequest},
		{name: "permission denied", err: &googleapi.Error{Code: 403, Message: "The caller does not have permission"}, status: http.StatusBadRequest},
		{name: "rate limited", err: &googleapi.Error{Code: 429, Message: "Quota exceeded"}, status: http.StatusBadGateway},
		{name: "server error", err: &googleapi.Error{Code: 503, Message: "Backend Error"}, status: http.StatusBadGateway},
		{name: "transport", err: errors.New("dial tcp: connection refused"), status: http.StatusBadGateway},
		{name: "invalid input", err: fmt.Errorf("%w: sheet not found", backend.ErrInvalidInput), status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &backendtest.Stub{Err: tt.err}
			srv := newReadyServer(t, stub)

			status, body := do(t, toolRequest(t, srv.URL, toolByName(t, "get_sheet_data"), validBodies["get_sheet_data"], testKey))

			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.err.Error(), body["detail"])
			assert.Equal(t, float64(tt.status), body["status_code"])
		})
	}
}

func TestFromBackend(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{name: "not ready", err: backend.ErrNotReady, status: http.StatusServiceUnavailable},
		{name: "missing key", err: auth.ErrMissingKey, status: http.StatusUnauthorized},
		{name: "validation", err: &backend.ValidationError{Field: "range", Message: "field required"}, status: http.StatusBadRequest},
		{name: "already classified", err: ServiceUnavailable(errors.New("draining")), status: http.StatusServiceUnavailable},
		{name: "google 401", err: &googleapi.Error{Code: 401}, status: http.StatusBadRequest},
		{name: "google 500", err: &googleapi.Error{Code: 500}, status: http.StatusBadGateway},
		{name: "canceled", err: context.Canceled, status: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromBackend(tt.err)
			assert.Equal(t, tt.status, got.Status)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestDecode_AppliesDefaults(t *testing.T) {
	call, err := toolByName(t, "share_spreadsheet").Decode([]byte(`{"spreadsheet_id":"ss1","email_addresses":["a@example.com","b@example.com"]}`))
	require.NoError(t, err)
	assert.Equal(t, "ss1", call.SpreadsheetID)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, call.Recipients)

	stub := &backendtest.Stub{}
	_, err = call.Run(context.Background(), stub)
	require.NoError(t, err)

	last, _ := stub.LastCall()
	params := last.Params.(backend.ShareSpreadsheetParams)
	assert.Equal(t, backend.RoleReader, params.EffectiveRole())
	assert.True(t, params.ShouldNotify())
}

func toolByName(t *testing.T, name string) Tool {
	t.Helper()
	for _, tool := range Tools() {
		if tool.Name == name {
			return tool
		}
	}
	t.Fatalf("unknown tool %s", name)
	return Tool{}
}
