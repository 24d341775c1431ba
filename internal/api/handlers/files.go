// files.go — обработчики файлов: создание, список, карточка, обновление, QR, выгрузка.
package handlers

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/filetracker/internal/api/errors"
	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/service"
)

// createFileResponse — ответ на создание файла.
type createFileResponse struct {
	File   *model.File `json:"file"`
	QRURL  string      `json:"qrUrl"`
	QRCode string      `json:"qrCode,omitempty"`
}

// fileDetailResponse — карточка файла.
type fileDetailResponse struct {
	File              *model.File    `json:"file"`
	QRURL             string         `json:"qrUrl"`
	AllowStatusChange bool           `json:"allowStatusChange"`
	Statuses          []model.Status `json:"statuses"`
}

// CreateFile — POST /files.
func (h *Handler) CreateFile(w http.ResponseWriter, r *http.Request) {
	fields, err := readInput(w, r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	result, err := h.files.Create(r.Context(), service.CreateInput{
		FileNumber:  fields["fileNumber"],
		FileName:    fields["fileName"],
		Description: fields["description"],
		Section:     fields["section"],
		Owner:       fields["owner"],
		Status:      model.Status(fields["status"]),
		BaseURL:     h.baseURL(r),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, createFileResponse{
		File:   result.File,
		QRURL:  result.QRURL,
		QRCode: result.QRCode,
	})
}

// ListFiles — GET /files?page&limit&q.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	page, limit, ok := bindPagination(w, r)
	if !ok {
		return
	}

	result, err := h.files.List(r.Context(), page, limit, r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// bindPagination разбирает page и limit. Отсутствующие параметры — 0,
// значения по умолчанию подставляет сервис.
func bindPagination(w http.ResponseWriter, r *http.Request) (page, limit int, ok bool) {
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, false, "page", query, &page); err != nil {
		apierrors.ValidationError(w, "некорректный параметр page")
		return 0, 0, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		apierrors.ValidationError(w, "некорректный параметр limit")
		return 0, 0, false
	}
	return page, limit, true
}

// GetFile — GET /file/{fileId}.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	f, err := h.files.Get(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=120")
	writeJSON(w, http.StatusOK, fileDetailResponse{
		File:              f,
		QRURL:             service.FileURL(h.baseURL(r), f.FileID),
		AllowStatusChange: h.settings.AllowQRStatusChange(r.Context()),
		Statuses:          model.Statuses,
	})
}

// UpdateFile — POST /file/{fileId}/update.
// Форма перенаправляется на карточку файла (303), JSON получает обновлённый файл.
func (h *Handler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	fields, err := readInput(w, r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	updated, err := h.files.UpdateStatus(r.Context(), fileID, service.UpdateInput{
		Status:           model.Status(fields["status"]),
		Location:         fields["location"],
		Handler:          fields["handler"],
		Notes:            fields["notes"],
		FromSection:      fields["fromSection"],
		ToSection:        fields["toSection"],
		FromLocation:     fields["fromLocation"],
		FromOfficialName: fields["fromOfficialName"],
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if isFormRequest(r) {
		http.Redirect(w, r, "/file/"+updated.FileID, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"file": updated})
}

// GetFileQR — GET /file/{fileId}/qr.png.
func (h *Handler) GetFileQR(w http.ResponseWriter, r *http.Request) {
	fileID := chi.URLParam(r, "fileId")

	f, err := h.files.Get(r.Context(), fileID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	png, err := h.qr.PNG(r.Context(), service.FileURL(h.baseURL(r), f.FileID))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=120")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// ExportFiles — GET /files/export.xlsx?q.
// Книга собирается в памяти, чтобы ошибка хранилища не оборвала ответ на середине.
func (h *Handler) ExportFiles(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	rows, err := h.files.ExportXLSX(r.Context(), r.URL.Query().Get("q"), &buf)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("Выгрузка реестра", slog.Int("rows", rows))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition",
		`attachment; filename="`+attachmentName("files", "xlsx", time.Now())+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
