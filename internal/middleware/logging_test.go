package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
	status int
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	if d.status != 0 {
		w.WriteHeader(d.status)
	}
	_, _ = w.Write([]byte("hello"))
}

func TestWithRequestLogging_LogsRequest(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dummy := &dummyHandler{status: http.StatusBadRequest}
	h := WithRequestLogging(zap.New(core))(dummy)

	form := url.Values{"Email": {"a@x.com"}, "Password": {"Secr3t!"}}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/account/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	h.ServeHTTP(rec, req)

	if !dummy.called {
		t.Fatal("expected next handler to be called")
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 log entry, got %d", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["method"] != http.MethodPost {
		t.Errorf("method = %v; want POST", fields["method"])
	}
	if fields["path"] != "/account/login" {
		t.Errorf("path = %v; want /account/login", fields["path"])
	}
	if fields["status"] != int64(http.StatusBadRequest) {
		t.Errorf("status = %v; want 400", fields["status"])
	}
	if fields["size"] != int64(5) {
		t.Errorf("size = %v; want 5", fields["size"])
	}
	for k, v := range fields {
		if s, ok := v.(string); ok && strings.Contains(s, "Secr3t!") {
			t.Errorf("field %s leaks the password", k)
		}
	}
}

func TestWithRequestLogging_DefaultStatus(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := WithRequestLogging(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got := logs.All()[0].ContextMap()["status"]; got != int64(http.StatusOK) {
		t.Errorf("status = %v; want 200", got)
	}
}

func TestWithRequestLogging_RequestID(t *testing.T) {
	dummy := &dummyHandler{}
	h := WithRequestLogging(zap.NewNop())(dummy)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	id := rec.Header().Get(RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("response id %q is not a UUID: %v", id, err)
	}
	if got := GetRequestIDFromContext(dummy.ctx); got != id {
		t.Errorf("context id = %q; want %q", got, id)
	}
}

func TestWithRequestLogging_KeepsIncomingID(t *testing.T) {
	dummy := &dummyHandler{}
	h := WithRequestLogging(zap.NewNop())(dummy)
	incoming := uuid.NewString()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, incoming)
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != incoming {
		t.Errorf("id = %q; want %q", got, incoming)
	}
}

func TestWithRequestLogging_ReplacesBogusID(t *testing.T) {
	dummy := &dummyHandler{}
	h := WithRequestLogging(zap.NewNop())(dummy)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "<script>")
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got == "<script>" {
		t.Error("expected a bogus request id to be replaced")
	}
}

func TestGetRequestIDFromContext(t *testing.T) {
	if got := GetRequestIDFromContext(context.Background()); got != "" {
		t.Errorf("expected empty string for missing id, got %q", got)
	}
	ctx := context.WithValue(context.Background(), requestIDKey, "abc")
	if got := GetRequestIDFromContext(ctx); got != "abc" {
		t.Errorf("expected 'abc', got %q", got)
	}
}
