package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/domain/serial"
	"github.com/bigkaa/filetracker/internal/events"
	"github.com/bigkaa/filetracker/internal/store"
	"github.com/bigkaa/filetracker/internal/store/memstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeClock — управляемые часы для тестов.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingPublisher запоминает опубликованные события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() {}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var result []string
	for _, ev := range p.events {
		result = append(result, ev.Type)
	}
	return result
}

// testEnv — собранный FileService поверх заданного хранилища.
type testEnv struct {
	files     *FileService
	settings  *SettingsService
	guard     *SubmissionGuard
	clock     *fakeClock
	publisher *recordingPublisher
}

func newTestEnv(t *testing.T, repo store.Store) *testEnv {
	t.Helper()
	if repo == nil {
		repo = memstore.New()
	}
	clock := newFakeClock(time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC))
	logger := testLogger()

	settings := NewSettingsService(repo, 5*time.Minute, logger)
	settings.now = clock.Now

	guard := NewSubmissionGuard(5*time.Second, 60*time.Second)
	guard.now = clock.Now

	allocator := NewSerialAllocator(repo, logger)
	allocator.now = clock.Now
	allocator.rnd = func() int { return 7 }

	qr := NewQRRenderer(logger)
	qr.delay = 0

	pub := &recordingPublisher{}
	files := NewFileService(repo, settings, guard, allocator, qr, pub,
		serial.RetryPolicy{MaxAttempts: 3}, logger)
	files.now = clock.Now

	return &testEnv{files: files, settings: settings, guard: guard, clock: clock, publisher: pub}
}

func validInput(number string) CreateInput {
	return CreateInput{
		FileNumber: number,
		FileName:   "Договор " + number,
		Section:    "Бухгалтерия",
		Owner:      "ivanov",
		BaseURL:    "https://files.example.com",
	}
}

// conflictStore возвращает нарушение уникальности serialNumber на первых failures вставках.
type conflictStore struct {
	*memstore.Store
	mu       sync.Mutex
	failures int
	inserts  int
}

func (s *conflictStore) Insert(ctx context.Context, f *model.File) error {
	s.mu.Lock()
	s.inserts++
	fail := s.failures < 0 || s.inserts <= s.failures
	s.mu.Unlock()
	if fail {
		return &store.UniqueConstraintViolation{Field: store.FieldSerialNumber}
	}
	return s.Store.Insert(ctx, f)
}

// unavailableSerialStore имитирует недоступность хранилища при чтении максимума.
type unavailableSerialStore struct {
	*memstore.Store
}

func (s *unavailableSerialStore) LastSerialNumber(context.Context, string) (string, error) {
	return "", store.Unavailable("last serial", context.DeadlineExceeded)
}
