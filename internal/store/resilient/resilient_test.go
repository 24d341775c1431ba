package resilient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/bigkaa/filetracker/internal/domain/model"
	"github.com/bigkaa/filetracker/internal/store"
	"github.com/bigkaa/filetracker/internal/store/memstore"
)

// flakyStore — memstore, у которого GetByFileID
// возвращают заданную ошибку, пока fail != nil.
type flakyStore struct {
	*memstore.Store
	fail  error
	calls int
}

func (f *flakyStore) GetByFileID(ctx context.Context, id string) (*model.File, error) {
	f.calls++
	if f.fail != nil {
		return nil, f.fail
	}
	return f.Store.GetByFileID(ctx, id)
}

func newTestStore(next store.Store) *Store {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(next, Options{
		Name:         "test",
		MinRequests:  3,
		FailureRatio: 0.5,
		OpenTimeout:  time.Hour,
	}, logger)
}

func TestBreaker_OpensOnUnavailable(t *testing.T) {
	next := &flakyStore{Store: memstore.New(), fail: store.Unavailable("get", errors.New("connection refused"))}
	s := newTestStore(next)
	ctx := context.Background()

	for range 3 {
		if _, err := s.GetByFileID(ctx, "x"); !errors.Is(err, store.ErrUnavailable) {
			t.Fatalf("ожидалась ErrUnavailable, получено %v", err)
		}
	}
	if s.State() != gobreaker.StateOpen {
		t.Fatalf("State = %v, ожидалось open", s.State())
	}

	callsBefore := next.calls
	_, err := s.GetByFileID(ctx, "x")
	if !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("в состоянии open ожидалась ErrUnavailable, получено %v", err)
	}
	if !IsCircuitOpen(err) {
		t.Errorf("ошибка должна указывать на разомкнутый breaker: %v", err)
	}
	if next.calls != callsBefore {
		t.Error("в состоянии open хранилище не должно вызываться")
	}
}

func TestBreaker_NotFoundIsNotFailure(t *testing.T) {
	next := &flakyStore{Store: memstore.New()}
	s := newTestStore(next)
	ctx := context.Background()

	for range 10 {
		if _, err := s.GetByFileID(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("ожидалась ErrNotFound, получено %v", err)
		}
	}
	if s.State() != gobreaker.StateClosed {
		t.Errorf("State = %v, NotFound не должен размыкать breaker", s.State())
	}
}

func TestBreaker_UniqueViolationPassesThrough(t *testing.T) {
	s := newTestStore(memstore.New())
	ctx := context.Background()
	f := &model.File{FileID: "a", FileNumber: "1", SerialNumber: "SN2025000001", Status: model.StatusActive}

	if err := s.Insert(ctx, f); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	g := *f
	g.FileID = "b"
	err := s.Insert(ctx, &g)
	if field, ok := store.UniqueViolationField(err); !ok || field != store.FieldSerialNumber {
		t.Errorf("ожидалось нарушение serialNumber, получено %v", err)
	}
	got, err := s.GetByFileID(ctx, "a")
	if err != nil || got.SerialNumber != "SN2025000001" {
		t.Errorf("GetByFileID() = %+v, %v", got, err)
	}
}
