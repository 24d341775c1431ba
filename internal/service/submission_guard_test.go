package service

import (
	"testing"
	"time"
)

func TestSubmissionGuard(t *testing.T) {
	clock := newFakeClock(time.Now())
	g := NewSubmissionGuard(5*time.Second, 60*time.Second)
	g.now = clock.Now

	key := SubmissionKey("A-1", "Договор", "ivanov")
	if !g.TryAcquire(key) {
		t.Fatal("первая отправка должна пройти")
	}
	if g.TryAcquire(key) {
		t.Fatal("повтор в окне должен отклоняться")
	}
	if !g.TryAcquire(SubmissionKey("A-1", "Договор", "petrov")) {
		t.Error("другой владелец — другая отправка")
	}

	clock.Advance(5 * time.Second)
	if !g.TryAcquire(key) {
		t.Error("после окна отправка должна пройти")
	}
}

func TestSubmissionGuard_PrunesOldEntries(t *testing.T) {
	clock := newFakeClock(time.Now())
	g := NewSubmissionGuard(5*time.Second, 60*time.Second)
	g.now = clock.Now

	g.TryAcquire(SubmissionKey("1", "a", "o"))
	g.TryAcquire(SubmissionKey("2", "a", "o"))
	clock.Advance(61 * time.Second)
	g.TryAcquire(SubmissionKey("3", "a", "o"))

	if g.Len() != 1 {
		t.Errorf("после очистки записей %d, ожидалась 1", g.Len())
	}
}

func TestSubmissionGuard_Release(t *testing.T) {
	g := NewSubmissionGuard(5*time.Second, 60*time.Second)
	key := SubmissionKey("1", "a", "o")
	g.TryAcquire(key)
	g.Release(key)
	if !g.TryAcquire(key) {
		t.Error("после Release повтор должен проходить")
	}
}

func TestSubmissionKey_NoCollisions(t *testing.T) {
	if SubmissionKey("a-b", "c", "d") == SubmissionKey("a", "b-c", "d") {
		t.Error("ключи разных троек совпали")
	}
}
