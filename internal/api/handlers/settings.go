// settings.go — чтение и изменение настроек.
package handlers

import (
	"net/http"

	"github.com/bigkaa/filetracker/internal/domain/model"
)

// ListSettings — GET /settings.
func (h *Handler) ListSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.List(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if settings == nil {
		settings = []model.Setting{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"settings": settings})
}

// UpdateSetting — POST /settings/update с полями key и value.
// Изменение видно чтениям через кэш не позднее чем через TTL.
func (h *Handler) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	fields, err := readInput(w, r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	key := fields["key"]
	if err := h.settings.Update(r.Context(), key, fields["value"]); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	if isFormRequest(r) {
		http.Redirect(w, r, "/settings", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"key":     key,
		"value":   model.ParseSettingValue(fields["value"]),
	})
}
