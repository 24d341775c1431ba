// health.go — обработчики health endpoints File Tracker.
// /health — процесс и хранилище (ping + количество файлов)
// /health/live — liveness probe (процесс жив)
// /health/dependencies — состояние зависимостей из topologymetrics
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bigkaa/filetracker/internal/config"
	"github.com/bigkaa/filetracker/internal/store"
)

// healthCheckTimeout — бюджет проверки хранилища.
const healthCheckTimeout = 2 * time.Second

// StoreChecker — проверка доступности хранилища.
type StoreChecker interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context, params store.ListParams) (int64, error)
}

// DependencyHealth — состояние внешних зависимостей.
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler — обработчик health endpoints.
type HealthHandler struct {
	store     StoreChecker
	deps      DependencyHealth
	driver    string
	startedAt time.Time
}

// NewHealthHandler создаёт обработчик health endpoints.
// deps может быть nil, если мониторинг зависимостей отключён.
func NewHealthHandler(store StoreChecker, deps DependencyHealth, driver string) *HealthHandler {
	return &HealthHandler{
		store:     store,
		deps:      deps,
		driver:    driver,
		startedAt: time.Now(),
	}
}

// storeCheck — результат проверки хранилища.
type storeCheck struct {
	Status    string `json:"status"`
	Driver    string `json:"driver"`
	FileCount *int64 `json:"fileCount,omitempty"`
	Message   string `json:"message,omitempty"`
}

// healthResponse — ответ /health.
type healthResponse struct {
	Status    string     `json:"status"`
	Timestamp string     `json:"timestamp"`
	Uptime    float64    `json:"uptime"`
	Version   string     `json:"version"`
	Service   string     `json:"service"`
	Store     storeCheck `json:"store"`
}

// healthLiveResponse — ответ liveness probe.
type healthLiveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
	Service   string `json:"service"`
}

// Health проверяет хранилище: 200 healthy или 503 unhealthy.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startedAt).Seconds(),
		Version:   config.Version,
		Service:   "file-tracker",
		Store:     storeCheck{Driver: h.driver},
	}

	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	err := h.store.Ping(ctx)
	if err == nil {
		var n int64
		n, err = h.store.Count(ctx, store.ListParams{})
		resp.Store.FileCount = &n
	}

	if err != nil {
		resp.Status = "unhealthy"
		resp.Store.Status = "fail"
		resp.Store.FileCount = nil
		resp.Store.Message = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	resp.Status = "healthy"
	resp.Store.Status = "ok"
	writeJSON(w, http.StatusOK, resp)
}

// HealthLive — liveness probe. Возвращает 200, если процесс жив.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthLiveResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   config.Version,
		Service:   "file-tracker",
	})
}

// Dependencies возвращает состояние зависимостей (пустой объект, если мониторинг выключен).
func (h *HealthHandler) Dependencies(w http.ResponseWriter, _ *http.Request) {
	deps := map[string]bool{}
	if h.deps != nil {
		deps = h.deps.Health()
	}
	writeJSON(w, http.StatusOK, map[string]any{"dependencies": deps})
}
