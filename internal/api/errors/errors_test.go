package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Ошибка разбора ответа: %v", err)
	}
	return body.Error
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, CodeValidationError, "нет поля")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, ожидалось 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	d := decode(t, rec)
	if d.Code != CodeValidationError || d.Message != "нет поля" {
		t.Errorf("тело ошибки = %+v", d)
	}
	if d.Detail != "" || d.DuplicateField != "" {
		t.Errorf("необязательные поля должны отсутствовать: %+v", d)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, string, ...Option)
		status int
		code   string
	}{
		{"ValidationError", ValidationError, http.StatusBadRequest, CodeValidationError},
		{"DuplicateFileNumber", DuplicateFileNumber, http.StatusBadRequest, CodeDuplicateFileNumber},
		{"SerialNumberConflict", SerialNumberConflict, http.StatusBadRequest, CodeSerialNumberConflict},
		{"TooManyRequests", TooManyRequests, http.StatusTooManyRequests, CodeTooManyRequests},
		{"NotFound", NotFound, http.StatusNotFound, CodeNotFound},
		{"Forbidden", Forbidden, http.StatusForbidden, CodeForbidden},
		{"StoreUnavailable", StoreUnavailable, http.StatusServiceUnavailable, CodeStoreUnavailable},
		{"InternalError", InternalError, http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec, "msg")
			if rec.Code != tt.status {
				t.Errorf("status = %d, ожидалось %d", rec.Code, tt.status)
			}
			if d := decode(t, rec); d.Code != tt.code {
				t.Errorf("code = %q, ожидалось %q", d.Code, tt.code)
			}
		})
	}
}

func TestOptions(t *testing.T) {
	rec := httptest.NewRecorder()
	DuplicateFileNumber(rec, "дубликат", WithDuplicateField("fileNumber"), WithDetail("E11000"))

	d := decode(t, rec)
	if d.DuplicateField != "fileNumber" {
		t.Errorf("duplicateField = %q", d.DuplicateField)
	}
	if d.Detail != "E11000" {
		t.Errorf("detail = %q", d.Detail)
	}
}
