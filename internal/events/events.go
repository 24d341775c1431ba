// Пакет events — публикация событий жизненного цикла файлов.
// События: file.created и file.updated, тема — <prefix>.<тип>.
// Ошибка публикации никогда не отменяет операцию: сервис её только логирует.
package events

import (
	"context"
	"time"

	"github.com/bigkaa/filetracker/internal/domain/model"
)

// Типы событий.
const (
	TypeFileCreated = "file.created"
	TypeFileUpdated = "file.updated"
)

// Event — тело события, сериализуется в JSON.
type Event struct {
	Type            string              `json:"type"`
	FileID          string              `json:"fileId"`
	FileNumber      string              `json:"fileNumber"`
	SerialNumber    string              `json:"serialNumber"`
	Status          model.Status        `json:"status"`
	CurrentLocation string              `json:"currentLocation"`
	Section         string              `json:"section"`
	Owner           string              `json:"owner"`
	Entry           *model.HistoryEntry `json:"entry,omitempty"`
	OccurredAt      time.Time           `json:"occurredAt"`
}

// NewEvent собирает событие по текущему состоянию файла и его последней записи истории.
func NewEvent(eventType string, f *model.File) Event {
	ev := Event{
		Type:            eventType,
		FileID:          f.FileID,
		FileNumber:      f.FileNumber,
		SerialNumber:    f.SerialNumber,
		Status:          f.Status,
		CurrentLocation: f.CurrentLocation,
		Section:         f.Section,
		Owner:           f.Owner,
		OccurredAt:      time.Now().UTC(),
	}
	if last := f.LastEntry(); last != nil {
		entry := *last
		ev.Entry = &entry
		ev.OccurredAt = entry.Timestamp
	}
	return ev
}

// Publisher публикует события.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close()
}

// Noop — публикатор, который ничего не отправляет (NATS не настроен).
type Noop struct{}

// Publish ничего не делает.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close ничего не делает.
func (Noop) Close() {}
