package instrumentation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newJSONAudit(includePII, enabled bool) (*AuditLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: enabled, IncludePII: includePII}), &buf
}

func decodeRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode audit record %q: %v", buf.String(), err)
	}
	return record
}

func TestToolInvocation_Complete(t *testing.T) {
	ti := NewToolInvocation("update_cells", TransportHTTP).
		WithClient("default").
		WithSpreadsheet("sheet-1")
	time.Sleep(time.Millisecond)
	ti.Complete(200, nil)

	if !ti.Success || ti.Status() != StatusSuccess {
		t.Error("expected success")
	}
	if ti.Duration <= 0 {
		t.Error("expected positive duration")
	}
	if ti.StatusCode != 200 {
		t.Errorf("expected status code 200, got %d", ti.StatusCode)
	}

	failed := NewToolInvocation("update_cells", TransportMCP).Complete(0, errors.New("quota"))
	if failed.Success || failed.Status() != StatusError || failed.Error != "quota" {
		t.Errorf("unexpected failed invocation: %+v", failed)
	}
}

func TestAuditLogger_Success(t *testing.T) {
	audit, buf := newJSONAudit(false, true)

	audit.LogToolInvocation(NewToolInvocation("list_sheets", TransportHTTP).
		WithClient("example_client").
		WithSpreadsheet("sheet-1").
		Complete(200, nil))

	record := decodeRecord(t, buf)
	if record["msg"] != "tool_executed" || record["level"] != "INFO" {
		t.Errorf("unexpected record header: %v", record)
	}
	if record["client_id"] != "example_client" || record["spreadsheet_id"] != "sheet-1" {
		t.Errorf("missing identity fields: %v", record)
	}
	if record["component"] != "audit" {
		t.Errorf("expected component=audit, got %v", record["component"])
	}
}

func TestAuditLogger_Failure(t *testing.T) {
	audit, buf := newJSONAudit(false, true)

	audit.LogToolInvocation(NewToolInvocation("copy_sheet", TransportHTTP).Complete(502, errors.New("backend unavailable")))

	record := decodeRecord(t, buf)
	if record["msg"] != "tool_failed" || record["level"] != "WARN" {
		t.Errorf("unexpected record header: %v", record)
	}
	if record["error"] != "backend unavailable" {
		t.Errorf("expected error field, got %v", record["error"])
	}
	if record["status_code"] != float64(502) {
		t.Errorf("expected status_code 502, got %v", record["status_code"])
	}
}

func TestAuditLogger_RecipientsAnonymized(t *testing.T) {
	audit, buf := newJSONAudit(false, true)

	audit.LogToolInvocation(NewToolInvocation("share_spreadsheet", TransportHTTP).
		WithRecipients([]string{"jane@example.com"}).
		Complete(200, nil))

	if strings.Contains(buf.String(), "jane@example.com") {
		t.Fatalf("recipient address leaked into audit log: %s", buf.String())
	}
	record := decodeRecord(t, buf)
	if _, ok := record["recipient_hashes"]; !ok {
		t.Error("expected recipient_hashes")
	}
	domains, _ := record["recipient_domains"].([]any)
	if len(domains) != 1 || domains[0] != "example.com" {
		t.Errorf("unexpected recipient_domains %v", record["recipient_domains"])
	}
}

func TestAuditLogger_RecipientsWithPII(t *testing.T) {
	audit, buf := newJSONAudit(true, true)

	audit.LogToolInvocation(NewToolInvocation("share_spreadsheet", TransportHTTP).
		WithRecipients([]string{"jane@example.com"}).
		Complete(200, nil))

	if !strings.Contains(buf.String(), "jane@example.com") {
		t.Errorf("expected full recipient address with PII enabled: %s", buf.String())
	}
}

func TestAuditLogger_Disabled(t *testing.T) {
	audit, buf := newJSONAudit(false, false)
	audit.LogToolInvocation(NewToolInvocation("list_sheets", TransportHTTP).Complete(200, nil))
	if buf.Len() != 0 {
		t.Errorf("expected no output when disabled, got %q", buf.String())
	}

	var nilAudit *AuditLogger
	nilAudit.LogToolInvocation(NewToolInvocation("list_sheets", TransportHTTP))
}

func TestAuditLogger_SpanContext(t *testing.T) {
	withRecorder(t)
	audit, buf := newJSONAudit(false, true)

	ctx, span := StartToolSpan(context.Background(), "list_sheets", TransportHTTP)
	audit.LogToolInvocation(NewToolInvocation("list_sheets", TransportHTTP).
		WithSpanContext(ctx).
		Complete(200, nil))
	EndSpan(span, nil)

	record := decodeRecord(t, buf)
	if record["trace_id"] != GetTraceID(ctx) || record["span_id"] != GetSpanID(ctx) {
		t.Errorf("expected trace and span ids from the active span, got %v", record)
	}
	if record["span_id"] == "" {
		t.Error("expected non-empty span_id")
	}
}
