// Пакет resilient — декоратор store.Store с circuit breaker (sony/gobreaker).
// Отказом считается только недоступность хранилища (store.ErrUnavailable):
// NotFound и нарушения уникальности — штатные ответы и breaker не размыкают.
// В разомкнутом состоянии вызовы сразу завершаются ошибкой store.ErrUnavailable,
// что включает резервную генерацию серийных номеров и ответ 503.
package resilient

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker/v2"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/store"
)

var breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "ft_store_breaker_state",
	Help: "Состояние circuit breaker хранилища: 0 — closed, 1 — half-open, 2 — open",
}, []string{"name"})

// Options — параметры breaker.
type Options struct {
	// Name — имя breaker (метка метрики и логов)
	Name string
	// MinRequests — минимум запросов в окне, прежде чем breaker может разомкнуться
	MinRequests uint32
	// FailureRatio — доля отказов, при которой breaker размыкается
	FailureRatio float64
	// OpenTimeout — время в состоянии open до перехода в half-open
	OpenTimeout time.Duration
	// HalfOpenMaxRequests — число пробных запросов в half-open
	HalfOpenMaxRequests uint32
}

func (o Options) normalize() Options {
	if o.Name == "" {
		o.Name = "store"
	}
	if o.MinRequests == 0 {
		o.MinRequests = 10
	}
	if o.FailureRatio <= 0 || o.FailureRatio > 1 {
		o.FailureRatio = 0.5
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 30 * time.Second
	}
	if o.HalfOpenMaxRequests == 0 {
		o.HalfOpenMaxRequests = 1
	}
	return o
}

// Store — store.Store под защитой circuit breaker.
type Store struct {
	next   store.Store
	cb     *gobreaker.CircuitBreaker[any]
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// New оборачивает next.
func New(next store.Store, opts Options, logger *slog.Logger) *Store {
	opts = opts.normalize()
	s := &Store{
		next:   next,
		logger: logger.With(slog.String("component", "store_breaker")),
	}

	s.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.HalfOpenMaxRequests,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < opts.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= opts.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, store.ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(float64(to))
			s.logger.Warn("Смена состояния circuit breaker",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	breakerState.WithLabelValues(opts.Name).Set(float64(gobreaker.StateClosed))
	return s
}

// State возвращает текущее состояние breaker.
func (s *Store) State() gobreaker.State {
	return s.cb.State()
}

// IsCircuitOpen сообщает, что вызов отклонён breaker'ом без обращения к хранилищу.
func IsCircuitOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func call[T any](s *Store, op string, fn func() (T, error)) (T, error) {
	res, err := s.cb.Execute(func() (any, error) {
		return fn()
	})
	if err != nil {
		var zero T
		if IsCircuitOpen(err) {
			return zero, store.Unavailable(op, err)
		}
		return zero, err
	}
	return res.(T), nil
}

func exec(s *Store, op string, fn func() error) error {
	_, err := call(s, op, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func (s *Store) Insert(ctx context.Context, f *model.File) error {
	return exec(s, "insert", func() error { return s.next.Insert(ctx, f) })
}

func (s *Store) GetByFileID(ctx context.Context, fileID string) (*model.File, error) {
	return call(s, "get", func() (*model.File, error) { return s.next.GetByFileID(ctx, fileID) })
}

func (s *Store) FindByFileNumber(ctx context.Context, fileNumber string) (*model.File, error) {
	return call(s, "find_by_number", func() (*model.File, error) { return s.next.FindByFileNumber(ctx, fileNumber) })
}

func (s *Store) Lookup(ctx context.Context, term string) (*model.File, error) {
	return call(s, "lookup", func() (*model.File, error) { return s.next.Lookup(ctx, term) })
}

func (s *Store) List(ctx context.Context, params store.ListParams) ([]model.FileSummary, error) {
	return call(s, "list", func() ([]model.FileSummary, error) { return s.next.List(ctx, params) })
}

func (s *Store) Count(ctx context.Context, params store.ListParams) (int64, error) {
	return call(s, "count", func() (int64, error) { return s.next.Count(ctx, params) })
}

func (s *Store) LastSerialNumber(ctx context.Context, pattern string) (string, error) {
	return call(s, "last_serial", func() (string, error) { return s.next.LastSerialNumber(ctx, pattern) })
}

func (s *Store) AppendHistory(ctx context.Context, fileID string, state model.State, entry model.HistoryEntry) (*model.File, error) {
	return call(s, "append_history", func() (*model.File, error) {
		return s.next.AppendHistory(ctx, fileID, state, entry)
	})
}

// Ping проходит мимо breaker: проверка готовности должна видеть реальное состояние СУБД.
func (s *Store) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

func (s *Store) GetSetting(ctx context.Context, key string) (*model.Setting, error) {
	return call(s, "get_setting", func() (*model.Setting, error) { return s.next.GetSetting(ctx, key) })
}

func (s *Store) ListSettings(ctx context.Context) ([]model.Setting, error) {
	return call(s, "list_settings", func() ([]model.Setting, error) { return s.next.ListSettings(ctx) })
}

func (s *Store) UpsertSetting(ctx context.Context, key string, value any) error {
	return exec(s, "upsert_setting", func() error { return s.next.UpsertSetting(ctx, key, value) })
}

func (s *Store) InsertSettingIfAbsent(ctx context.Context, setting model.Setting) (bool, error) {
	return call(s, "insert_setting", func() (bool, error) { return s.next.InsertSettingIfAbsent(ctx, setting) })
}

// Служебные операции выполняются при старте и через /admin/cleanup, breaker их не учитывает.

func (s *Store) EnsureIndexes(ctx context.Context, uniqueFileNumber bool) error {
	return s.next.EnsureIndexes(ctx, uniqueFileNumber)
}

func (s *Store) HasUniqueFileNumberIndex(ctx context.Context) (bool, error) {
	return s.next.HasUniqueFileNumberIndex(ctx)
}

func (s *Store) RemoveDuplicateFileNumbers(ctx context.Context, maxGroups int) (int, error) {
	return s.next.RemoveDuplicateFileNumbers(ctx, maxGroups)
}

func (s *Store) CleanupIncomplete(ctx context.Context) (int64, error) {
	return s.next.CleanupIncomplete(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.next.Close(ctx)
}
