// search.go — поиск файла по идентификатору или свободному тексту.
package handlers

import (
	"net/http"
	"strings"

	apierrors "github.com/bigkaa/filetracker/internal/api/errors"
)

// Search — GET /search?fileId= или ?q=.
// fileId ищется по fileId, fileNumber и serialNumber; найденный файл —
// перенаправление 303 на карточку. q — постраничный текстовый поиск.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if term := strings.TrimSpace(query.Get("fileId")); term != "" {
		f, err := h.files.Lookup(r.Context(), term)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		http.Redirect(w, r, "/file/"+f.FileID, http.StatusSeeOther)
		return
	}

	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		apierrors.ValidationError(w, "укажите fileId или q")
		return
	}

	page, limit, ok := bindPagination(w, r)
	if !ok {
		return
	}
	result, err := h.files.List(r.Context(), page, limit, q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
