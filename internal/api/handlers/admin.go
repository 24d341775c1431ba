// admin.go — служебные операции.
package handlers

import (
	"fmt"
	"net/http"
)

// cleanupResponse — результат ручной очистки.
type cleanupResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Deleted int64  `json:"deleted"`
}

// Cleanup — POST /admin/cleanup: удаляет записи без fileNumber или serialNumber.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.maintenance.Cleanup(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cleanupResponse{
		Success: true,
		Message: fmt.Sprintf("Удалено записей без обязательных полей: %d", deleted),
		Deleted: deleted,
	})
}
