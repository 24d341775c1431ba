// submission_guard.go — защита от повторной отправки формы создания файла.
//
// Ключ — тройка (fileNumber, fileName, owner). Повтор в пределах окна (5s)
// отклоняется, записи старше retention (60s) удаляются при каждой проверке.
// Состояние живёт в памяти процесса и не разделяется между экземплярами.
package service

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// SubmissionGuard — in-memory журнал недавних отправок.
type SubmissionGuard struct {
	mu        sync.Mutex
	recent    *expirable.LRU[string, time.Time]
	window    time.Duration
	retention time.Duration
	now       func() time.Time
}

// NewSubmissionGuard создаёт журнал отправок.
// window — окно отклонения повторов, retention — время хранения записи.
func NewSubmissionGuard(window, retention time.Duration) *SubmissionGuard {
	if retention < window {
		retention = window
	}
	return &SubmissionGuard{
		recent:    expirable.NewLRU[string, time.Time](0, nil, retention),
		window:    window,
		retention: retention,
		now:       time.Now,
	}
}

// SubmissionKey собирает ключ журнала из полей формы.
func SubmissionKey(fileNumber, fileName, owner string) string {
	return fileNumber + "\x00" + fileName + "\x00" + owner
}

// TryAcquire регистрирует отправку. Возвращает false, если такая же
// отправка была в пределах окна.
func (g *SubmissionGuard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	g.prune(now)

	if last, ok := g.recent.Peek(key); ok && now.Sub(last) < g.window {
		return false
	}
	g.recent.Add(key, now)
	return true
}

// Release удаляет отправку из журнала (создание не состоялось).
func (g *SubmissionGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.recent.Remove(key)
}

// Len возвращает количество записей в журнале.
func (g *SubmissionGuard) Len() int {
	return g.recent.Len()
}

func (g *SubmissionGuard) prune(now time.Time) {
	for _, key := range g.recent.Keys() {
		if ts, ok := g.recent.Peek(key); ok && now.Sub(ts) > g.retention {
			g.recent.Remove(key)
		}
	}
}
