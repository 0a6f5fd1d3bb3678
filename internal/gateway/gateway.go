package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/teemow/sheetsgate/internal/auth"
	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/instrumentation"
	"github.com/teemow/sheetsgate/internal/logging"
	"github.com/teemow/sheetsgate/internal/tools/common"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "sheetsgate"

// MaxBodyBytes limits tool request bodies.
const MaxBodyBytes = 10 << 20

// Gateway serves the tool endpoints.
type Gateway struct {
	backend *backend.Context
	auth    *auth.Authenticator
	tools   []Tool
	logger  *slog.Logger
}

// New returns a Gateway dispatching to bc and authenticating with authn.
func New(bc *backend.Context, authn *auth.Authenticator) *Gateway {
	return &Gateway{
		backend: bc,
		auth:    authn,
		tools:   Tools(),
		logger:  logging.WithService(bc.Logger(), "gateway"),
	}
}

// Mount registers /health and every tool route on r. Unknown paths and
// methods are answered with the JSON error body.
func (g *Gateway) Mount(r chi.Router) {
	r.Get("/health", g.handleHealth)
	for _, t := range g.tools {
		r.Method(t.Method, t.Path, g.toolHandler(t))
	}
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, &Error{Status: http.StatusNotFound, Detail: "Not Found"})
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, &Error{Status: http.StatusMethodNotAllowed, Detail: "Method Not Allowed"})
}

// healthResponse is the body of GET /health.
type healthResponse struct {
	Status             string `json:"status"`
	Service            string `json:"service"`
	ContextInitialized bool   `json:"context_initialized"`
}

// handleHealth reports liveness and whether the backend context is ready. It
// requires no API key.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "healthy",
		Service:            ServiceName,
		ContextInitialized: g.backend.Ready(),
	})
}

func (g *Gateway) toolHandler(t Tool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Only an unreadable or syntactically broken body is reported before
		// authentication; field validation needs a valid key.
		data, err := requestArgs(w, r, t)
		if err != nil {
			writeError(w, BadRequest(err))
			return
		}

		clientID, err := g.auth.AuthenticateRequest(r)
		if err != nil {
			logging.WithTool(g.logger, t.Name).DebugContext(r.Context(), "Authentication failed",
				slog.String("api_key", logging.SanitizeKey(r.Header.Get(auth.HeaderName))),
				logging.RequestID(middleware.GetReqID(r.Context())),
				logging.Err(err))
			writeError(w, Unauthorized(err))
			return
		}

		logging.AddField(r.Context(), logging.ClientID(clientID))
		logging.AddField(r.Context(), logging.Tool(t.Name))

		call, err := t.Decode(data)
		if err != nil {
			writeError(w, BadRequest(err))
			return
		}

		b, err := g.backend.Acquire()
		if err != nil {
			writeError(w, ServiceUnavailable(err))
			return
		}

		ctx := auth.WithClientID(r.Context(), clientID)
		ctx, inv := common.StartInvocation(ctx, g.backend, t.Name, instrumentation.TransportHTTP,
			call.SpreadsheetID, call.Recipients)

		result, err := call.Run(ctx, b)
		if err != nil {
			gwErr := FromBackend(err)
			inv.End(ctx, gwErr.Status, err)
			logging.WithClient(logging.WithTool(g.logger, t.Name), clientID).WarnContext(ctx, "Tool call failed",
				logging.RequestID(middleware.GetReqID(ctx)),
				slog.Int("status_code", gwErr.Status),
				logging.Err(err))
			writeError(w, gwErr)
			return
		}
		inv.End(ctx, http.StatusOK, nil)

		writeJSON(w, http.StatusOK, map[string]any{
			"client_id":   clientID,
			t.ResultField: result,
		})
	}
}

// requestArgs returns the JSON arguments of a tool request: the body for
// POST routes, or an object built from the path parameters otherwise.
func requestArgs(w http.ResponseWriter, r *http.Request, t Tool) ([]byte, error) {
	if r.Method != http.MethodGet {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		if len(bytes.TrimSpace(data)) > 0 {
			var raw json.RawMessage
			if err := json.Unmarshal(data, &raw); err != nil {
				return nil, fmt.Errorf("invalid request body: %w", err)
			}
		}
		return data, nil
	}

	if len(t.PathParams) == 0 {
		return nil, nil
	}
	args := make(map[string]string, len(t.PathParams))
	for _, name := range t.PathParams {
		args[name] = chi.URLParam(r, name)
	}
	return json.Marshal(args)
}
