// Пакет errors — ответы с ошибками в формате File Tracker.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Дополнительно: duplicateField для нарушений уникальности и detail
// (исходная ошибка) только в отладочном режиме.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeDuplicateFileNumber  = "DUPLICATE_FILE_NUMBER"
	CodeSerialNumberConflict = "SERIAL_NUMBER_CONFLICT"
	CodeTooManyRequests      = "TOO_MANY_REQUESTS"
	CodeNotFound             = "NOT_FOUND"
	CodeForbidden            = "FORBIDDEN"
	CodeStoreUnavailable     = "STORE_UNAVAILABLE"
	CodeInternalError        = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	DuplicateField string `json:"duplicateField,omitempty"`
	Detail         string `json:"detail,omitempty"`
}

// Option дополняет тело ошибки.
type Option func(*errorDetail)

// WithDuplicateField указывает поле, на котором сработало ограничение уникальности.
func WithDuplicateField(field string) Option {
	return func(d *errorDetail) { d.DuplicateField = field }
}

// WithDetail добавляет текст исходной ошибки (только для отладки).
func WithDetail(detail string) Option {
	return func(d *errorDetail) { d.Detail = detail }
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, opts ...Option) {
	detail := errorDetail{Code: code, Message: message}
	for _, opt := range opts {
		opt(&detail)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string, opts ...Option) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message, opts...)
}

// DuplicateFileNumber — 400 файл с таким номером уже существует.
func DuplicateFileNumber(w http.ResponseWriter, message string, opts ...Option) {
	WriteError(w, http.StatusBadRequest, CodeDuplicateFileNumber, message, opts...)
}

// SerialNumberConflict — 400 исчерпаны попытки выделить серийный номер.
func SerialNumberConflict(w http.ResponseWriter, message string, opts ...Option) {
	WriteError(w, http.StatusBadRequest, CodeSerialNumberConflict, message, opts...)
}

// TooManyRequests — 429 повторная отправка.
func TooManyRequests(w http.ResponseWriter, message string, opts ...Option) {
	WriteError(w, http.StatusTooManyRequests, CodeTooManyRequests, message, opts...)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string, opts ...Option) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message, opts...)
}

// Forbidden — 403 действие запрещено настройками.
func Forbidden(w http.ResponseWriter, message string, opts ...Option) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message, opts...)
}

// StoreUnavailable — 503 хранилище недоступно.
func StoreUnavailable(w http.ResponseWriter, message string, opts ...Option) {
	WriteError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, message, opts...)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string, opts ...Option) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message, opts...)
}
