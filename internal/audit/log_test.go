package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"testing"

	"idgate.org/internal/auth"
	"idgate.org/internal/obs"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	logger := obs.Logger()
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })
	return &buf
}

func TestLogEventIncludesRequestAndActor(t *testing.T) {
	buf := captureLog(t)

	ctx := WithRequestID(context.Background(), "req-123")
	ctx = auth.ContextWithPrincipal(ctx, auth.Principal{
		User: &auth.User{ID: 7, Email: "actor@b.com"},
	})

	if err := LogEvent(ctx, "auth.login", map[string]any{"ip": "10.0.0.1"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["type"] != "audit" || entry["event"] != "auth.login" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("request id missing: %v", entry)
	}
	if entry["actor_email"] != "actor@b.com" {
		t.Fatalf("actor missing: %v", entry)
	}
	fields, ok := entry["fields"].(map[string]any)
	if !ok || fields["ip"] != "10.0.0.1" {
		t.Fatalf("fields missing: %v", entry)
	}
}

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatalf("expected an error for an empty event name")
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := WithRequestID(context.Background(), "   ")
	if got := requestIDFromContext(ctx); got != "" {
		t.Fatalf("blank request id should not be stored, got %q", got)
	}
}
