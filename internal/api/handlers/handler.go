// handler.go — HTTP-обработчики File Tracker.
// Обработчики принимают JSON, urlencoded и multipart формы и делегируют
// запросы в сервисный слой. Ответы — JSON; отправка HTML-формы обновления
// или настроек завершается перенаправлением 303.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/bigkaa/filetracker/internal/api/errors"
	"github.com/bigkaa/filetracker/internal/service"
)

// Лимиты тела запроса.
const (
	// maxFormMemory — лимит памяти при разборе multipart формы
	maxFormMemory = 1 << 20
	// maxBodyBytes — максимальный размер тела JSON или формы
	maxBodyBytes = 1 << 20
)

// Handler — обработчик HTTP API File Tracker.
type Handler struct {
	files         *service.FileService
	settings      *service.SettingsService
	maintenance   *service.MaintenanceService
	qr            *service.QRRenderer
	health        *HealthHandler
	publicBaseURL string
	debugErrors   bool
	logger        *slog.Logger
}

// Options — параметры отображения ответов.
type Options struct {
	// PublicBaseURL — внешний адрес для QR-ссылок; пусто — вычисляется из запроса
	PublicBaseURL string
	// DebugErrors — добавлять текст исходной ошибки в ответы
	DebugErrors bool
}

// New создаёт обработчик API.
func New(
	files *service.FileService,
	settings *service.SettingsService,
	maintenance *service.MaintenanceService,
	qr *service.QRRenderer,
	health *HealthHandler,
	opts Options,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		files:         files,
		settings:      settings,
		maintenance:   maintenance,
		qr:            qr,
		health:        health,
		publicBaseURL: opts.PublicBaseURL,
		debugErrors:   opts.DebugErrors,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует маршруты на роутере.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.health.Health)
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/dependencies", h.health.Dependencies)

	r.Get("/files", h.ListFiles)
	r.Post("/files", h.CreateFile)
	r.Get("/files/export.xlsx", h.ExportFiles)

	r.Get("/file/{fileId}", h.GetFile)
	r.Post("/file/{fileId}/update", h.UpdateFile)
	r.Get("/file/{fileId}/qr.png", h.GetFileQR)

	r.Get("/search", h.Search)

	r.Get("/settings", h.ListSettings)
	r.Post("/settings/update", h.UpdateSetting)

	r.Post("/admin/cleanup", h.Cleanup)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var opts []apierrors.Option
	if h.debugErrors {
		opts = append(opts, apierrors.WithDetail(err.Error()))
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error(), opts...)
	case errors.Is(err, service.ErrDuplicateFileNumber):
		opts = append(opts, apierrors.WithDuplicateField("fileNumber"))
		apierrors.DuplicateFileNumber(w, service.ErrDuplicateFileNumber.Error(), opts...)
	case errors.Is(err, service.ErrSerialNumberConflict):
		opts = append(opts, apierrors.WithDuplicateField("serialNumber"))
		apierrors.SerialNumberConflict(w, service.ErrSerialNumberConflict.Error(), opts...)
	case errors.Is(err, service.ErrTooManyRequests):
		apierrors.TooManyRequests(w, service.ErrTooManyRequests.Error(), opts...)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, service.ErrNotFound.Error(), opts...)
	case errors.Is(err, service.ErrForbidden):
		apierrors.Forbidden(w, service.ErrForbidden.Error(), opts...)
	case errors.Is(err, service.ErrStoreUnavailable):
		h.logger.Warn("Хранилище недоступно",
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.StoreUnavailable(w, "хранилище временно недоступно, повторите попытку позже", opts...)
	default:
		h.logger.Error("Внутренняя ошибка",
			slog.String("request_id", chimw.GetReqID(r.Context())),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "внутренняя ошибка сервера", opts...)
	}
}

// isFormRequest сообщает, пришёл ли запрос из HTML-формы.
func isFormRequest(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded" || mediaType == "multipart/form-data"
}

// readInput читает поля тела запроса: JSON-объект или форму.
// Значения JSON, отличные от строк, приводятся к строке (true → "true",
// числа — в исходной записи). Тело ограничено maxBodyBytes.
func readInput(w http.ResponseWriter, r *http.Request) (map[string]string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, fmt.Errorf("%w: некорректная форма", service.ErrValidation)
		}
		return flattenForm(r), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("%w: некорректная форма", service.ErrValidation)
		}
		return flattenForm(r), nil
	default:
		var raw map[string]any
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return nil, fmt.Errorf("%w: тело запроса больше %d байт", service.ErrValidation, tooLarge.Limit)
			}
			return nil, fmt.Errorf("%w: некорректный JSON", service.ErrValidation)
		}
		fields := make(map[string]string, len(raw))
		for k, v := range raw {
			switch val := v.(type) {
			case nil:
			case string:
				fields[k] = val
			case bool:
				fields[k] = strconv.FormatBool(val)
			case json.Number:
				// число передаётся как есть: 1e21 не превращается в 1e+21
				fields[k] = val.String()
			default:
				fields[k] = fmt.Sprint(val)
			}
		}
		return fields, nil
	}
}

func flattenForm(r *http.Request) map[string]string {
	fields := make(map[string]string, len(r.PostForm))
	for k, v := range r.PostForm {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return fields
}

// baseURL возвращает внешний адрес сервиса для QR-ссылок.
func (h *Handler) baseURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// attachmentName формирует имя файла выгрузки.
func attachmentName(prefix, ext string, now time.Time) string {
	return fmt.Sprintf("%s-%s.%s", prefix, now.UTC().Format("20060102-150405"), ext)
}
