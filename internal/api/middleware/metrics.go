// metrics.go — Prometheus HTTP метрики: ft_http_requests_total, ft_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ft_http_requests_total",
			Help: "Общее количество HTTP-запросов к File Tracker",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ft_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к File Tracker в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Metrics собирает количество и длительность запросов по нормализованному пути.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := newResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// normalizePath заменяет fileId на {id}, чтобы число серий метрик не росло с числом файлов.
// /file/0190f5a2-.../update → /file/{id}/update
func normalizePath(path string) string {
	switch path {
	case "/health", "/health/live", "/health/dependencies", "/metrics",
		"/files", "/files/export.xlsx", "/search", "/settings", "/settings/update",
		"/admin/cleanup":
		return path
	}

	rest, ok := strings.CutPrefix(path, "/file/")
	if !ok || rest == "" {
		return "other"
	}
	_, suffix, _ := strings.Cut(rest, "/")
	switch suffix {
	case "":
		return "/file/{id}"
	case "update", "qr.png":
		return "/file/{id}/" + suffix
	default:
		return "other"
	}
}
