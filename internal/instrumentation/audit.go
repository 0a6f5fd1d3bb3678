package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/sheetsgate/internal/logging"
)

// ToolInvocation is the audit record of one tool call.
type ToolInvocation struct {
	Tool          string
	Transport     string
	ClientID      string
	SpreadsheetID string

	// Recipients holds share_spreadsheet email addresses. They are PII and are
	// only logged verbatim when the audit logger includes PII.
	Recipients []string

	StartTime  time.Time
	Duration   time.Duration
	Success    bool
	StatusCode int
	Error      string

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing an invocation of tool over transport.
func NewToolInvocation(tool, transport string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		Transport: transport,
		StartTime: time.Now(),
	}
}

// WithClient sets the authenticated client id.
func (ti *ToolInvocation) WithClient(clientID string) *ToolInvocation {
	ti.ClientID = clientID
	return ti
}

// WithSpreadsheet sets the target spreadsheet id.
func (ti *ToolInvocation) WithSpreadsheet(id string) *ToolInvocation {
	ti.SpreadsheetID = id
	return ti
}

// WithRecipients sets the share recipients.
func (ti *ToolInvocation) WithRecipients(emails []string) *ToolInvocation {
	ti.Recipients = emails
	return ti
}

// WithSpanContext copies the trace and span ids from the span in ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID = GetTraceID(ctx)
	ti.SpanID = GetSpanID(ctx)
	return ti
}

// Complete records the outcome. statusCode is the HTTP status returned to
// the caller, or 0 for transports without one.
func (ti *ToolInvocation) Complete(statusCode int, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.StatusCode = statusCode
	ti.Success = err == nil
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns StatusSuccess or StatusError.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// attrs returns the record's log attributes. Recipient addresses are replaced
// by anonymized hashes and domains unless includePII is set.
func (ti *ToolInvocation) attrs(includePII bool) []any {
	args := []any{
		logging.Tool(ti.Tool),
		slog.String("transport", ti.Transport),
		logging.ClientID(ti.ClientID),
		slog.Duration(logging.KeyDuration, ti.Duration),
		logging.Status(ti.Status()),
	}
	if ti.SpreadsheetID != "" {
		args = append(args, logging.SpreadsheetID(ti.SpreadsheetID))
	}
	if ti.StatusCode != 0 {
		args = append(args, slog.Int("status_code", ti.StatusCode))
	}
	if len(ti.Recipients) > 0 {
		if includePII {
			args = append(args, slog.Any("recipients", ti.Recipients))
		} else {
			hashes := make([]string, len(ti.Recipients))
			for i, r := range ti.Recipients {
				hashes[i] = logging.AnonymizeEmail(r)
			}
			args = append(args,
				slog.Any("recipient_hashes", hashes),
				slog.Any("recipient_domains", RecipientDomains(ti.Recipients)))
		}
	}
	if ti.TraceID != "" {
		args = append(args, slog.String("trace_id", ti.TraceID), slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		args = append(args, slog.String(logging.KeyError, ti.Error))
	}
	return args
}

// AuditLogger writes one structured record per tool invocation.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that anonymizes recipients.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates an AuditLogger from config.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger.With("component", "audit"),
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// LogToolInvocation logs ti. Failed invocations are logged at warn level.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}
	args := ti.attrs(al.includePII)
	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}
