// metrics.go — доменные Prometheus-метрики File Tracker.
package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	filesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_files_created_total",
		Help: "Общее количество созданных файлов.",
	})
	historyEntriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_history_entries_appended_total",
		Help: "Количество записей истории, добавленных при обновлениях.",
	})
	serialRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_serial_retries_total",
		Help: "Повторные попытки сохранения после конфликта серийного номера.",
	})
	serialConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_serial_conflicts_total",
		Help: "Создания, завершившиеся SerialNumberConflict.",
	})
	serialFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_serial_fallbacks_total",
		Help: "Резервные серийные номера, выданные при недоступном хранилище.",
	})
	duplicateSubmissionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_duplicate_submissions_total",
		Help: "Отклонённые повторные отправки формы создания.",
	})
	settingsCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_settings_cache_hits_total",
		Help: "Попадания в кэш настроек.",
	})
	settingsCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ft_settings_cache_misses_total",
		Help: "Промахи кэша настроек.",
	})
)
