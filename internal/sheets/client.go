package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"

	"github.com/teemow/sheetsgate/internal/backend"
	"github.com/teemow/sheetsgate/internal/instrumentation"
	"github.com/teemow/sheetsgate/internal/logging"
)

const (
	// SpreadsheetMimeType is the Drive MIME type of Google spreadsheets.
	SpreadsheetMimeType = "application/vnd.google-apps.spreadsheet"

	valueInputUserEntered = "USER_ENTERED"
	valueRenderFormula    = "FORMULA"
	insertRows            = "INSERT_ROWS"
)

var (
	// ErrSheetNotFound is returned when a sheet title does not exist in the spreadsheet.
	ErrSheetNotFound = fmt.Errorf("%w: sheet not found", backend.ErrInvalidInput)

	// ErrInvalidRole is returned for share roles other than reader, writer, commenter and owner.
	ErrInvalidRole = fmt.Errorf("%w: invalid role", backend.ErrInvalidInput)
)

// Client is a backend.Backend backed by the Google APIs.
type Client struct {
	sheets   *sheets.Service
	drive    *drive.Service
	folderID string
	metrics  *instrumentation.Metrics
	logger   *slog.Logger
}

var _ backend.Backend = (*Client)(nil)

// Options configures a Client.
type Options struct {
	// DriveFolderID scopes create_spreadsheet and list_spreadsheets to a folder.
	DriveFolderID string
	Metrics       *instrumentation.Metrics
	Logger        *slog.Logger

	// SheetsOptions and DriveOptions are applied after the shared options
	// passed to NewClient, e.g. to point a service at a test endpoint.
	SheetsOptions []option.ClientOption
	DriveOptions  []option.ClientOption
}

// NewClient creates the Sheets and Drive services. opts are shared by both,
// typically option.WithHTTPClient with an authenticated client.
func NewClient(ctx context.Context, o Options, opts ...option.ClientOption) (*Client, error) {
	sheetsService, err := sheets.NewService(ctx, append(append([]option.ClientOption{}, opts...), o.SheetsOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}
	driveService, err := drive.NewService(ctx, append(append([]option.ClientOption{}, opts...), o.DriveOptions...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Drive service: %w", err)
	}

	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		sheets:   sheetsService,
		drive:    driveService,
		folderID: o.DriveFolderID,
		metrics:  o.Metrics,
		logger:   logger,
	}, nil
}

// observe wraps one Google API call in a span, a metric and a debug log line.
func observe[T any](ctx context.Context, c *Client, service, operation, spreadsheetID string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, service, operation, instrumentation.SpreadsheetAttr(spreadsheetID))
	start := time.Now()

	result, err := fn(ctx)

	duration := time.Since(start)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
	}
	instrumentation.EndSpan(span, err)
	c.metrics.RecordGoogleAPIOperation(ctx, service, operation, status, duration)
	logging.WithOperation(c.logger, operation).DebugContext(ctx, "Google API call",
		logging.Service(service),
		logging.SpreadsheetID(spreadsheetID),
		logging.Status(status),
		slog.Duration(logging.KeyDuration, duration),
		logging.Err(err))

	return result, err
}

// quoteSheet returns title as an A1 sheet reference.
func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// a1Range qualifies rng with the sheet title. An empty rng addresses the whole sheet.
func a1Range(sheet, rng string) string {
	if rng == "" {
		return quoteSheet(sheet)
	}
	return quoteSheet(sheet) + "!" + rng
}

func optional(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// sheetID resolves a sheet title to its numeric id.
func (c *Client) sheetID(ctx context.Context, spreadsheetID, title string) (int64, error) {
	ss, err := observe(ctx, c, instrumentation.ServiceSheets, "spreadsheets.get", spreadsheetID,
		func(ctx context.Context) (*sheets.Spreadsheet, error) {
			return c.sheets.Spreadsheets.Get(spreadsheetID).
				Fields("sheets.properties(sheetId,title)").
				Context(ctx).
				Do()
		})
	if err != nil {
		return 0, err
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == title {
			return s.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("%w: %q in spreadsheet %s", ErrSheetNotFound, title, spreadsheetID)
}

func (c *Client) batchUpdate(ctx context.Context, spreadsheetID string, requests ...*sheets.Request) (*sheets.BatchUpdateSpreadsheetResponse, error) {
	return observe(ctx, c, instrumentation.ServiceSheets, "spreadsheets.batchUpdate", spreadsheetID,
		func(ctx context.Context) (*sheets.BatchUpdateSpreadsheetResponse, error) {
			return c.sheets.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
				Requests: requests,
			}).Context(ctx).Do()
		})
}

func renameRequest(sheetID int64, title string) *sheets.Request {
	return &sheets.Request{
		UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
			Properties: &sheets.SheetProperties{
				SheetId: sheetID,
				Title:   title,
				// Sheet id 0 is the first sheet and must not be dropped as a zero value.
				ForceSendFields: []string{"SheetId"},
			},
			Fields: "title",
		},
	}
}
