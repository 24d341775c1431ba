package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/filetracker/internal/api/openapi"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
})

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/files", "/files"},
		{"/health", "/health"},
		{"/file/0190f5a2-7c1e-7b6a-9d1e-1a2b3c4d5e6f", "/file/{id}"},
		{"/file/abc/update", "/file/{id}/update"},
		{"/file/abc/qr.png", "/file/{id}/qr.png"},
		{"/file/abc/unknown", "other"},
		{"/file/", "other"},
		{"/wp-admin", "other"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидалось %q", tt.path, got, tt.want)
		}
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders()(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files", nil))

	want := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"X-XSS-Protection":       "1; mode=block",
	}
	for k, v := range want {
		if got := rec.Header().Get(k); got != v {
			t.Errorf("%s = %q, ожидалось %q", k, got, v)
		}
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var requestID string
	handler := chimw.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID = chimw.GetReqID(r.Context())
		w.WriteHeader(http.StatusNotFound)
	})))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/file/x?page=2", nil))

	if requestID == "" {
		t.Fatal("chi RequestID не выставил идентификатор запроса")
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("запись журнала не JSON: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != requestID {
		t.Errorf("request_id = %v, ожидалось %q", entry["request_id"], requestID)
	}
	if entry["level"] != "WARN" || entry["status"] != float64(http.StatusNotFound) {
		t.Errorf("ожидалась WARN-запись со статусом 404: %s", buf.String())
	}
	if entry["query"] != "page=2" {
		t.Errorf("query = %v, ожидалось page=2", entry["query"])
	}
}

func TestStatusLevel(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusSeeOther, slog.LevelInfo},
		{http.StatusTooManyRequests, slog.LevelWarn},
		{http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := statusLevel(tt.status); got != tt.want {
			t.Errorf("statusLevel(%d) = %v, ожидалось %v", tt.status, got, tt.want)
		}
	}
}

func TestMetrics_PassesThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	Metrics()(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("ответ изменён middleware: %d %q", rec.Code, rec.Body.String())
	}
}

func TestOpenAPIValidator(t *testing.T) {
	doc, err := openapi.Load()
	if err != nil {
		t.Fatalf("openapi.Load() ошибка: %v", err)
	}
	mw, err := OpenAPIValidator(doc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("OpenAPIValidator() ошибка: %v", err)
	}
	handler := mw(okHandler)

	tests := []struct {
		name   string
		method string
		target string
		want   int
	}{
		{"корректные параметры", http.MethodGet, "/files?page=2&limit=10", http.StatusOK},
		{"нечисловая страница", http.MethodGet, "/files?page=abc", http.StatusBadRequest},
		{"путь вне контракта", http.MethodGet, "/unknown", http.StatusOK},
		{"форма обновления", http.MethodPost, "/file/abc/update", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.method == http.MethodPost {
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, ожидалось %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}
