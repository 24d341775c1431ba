// Пакет model — доменные модели File Tracker.
// Одни и те же структуры сериализуются в BSON (MongoDB), JSON (API и JSONB в PostgreSQL).
package model

import (
	"slices"
	"time"
)

// Status — статус физического файла (дела).
// Граф переходов не задан: любой статус может следовать за любым.
type Status string

// Допустимые статусы файла.
const (
	StatusActive    Status = "Active"
	StatusArchived  Status = "Archived"
	StatusInReview  Status = "In Review"
	StatusPending   Status = "Pending"
	StatusCompleted Status = "Completed"
)

// Statuses — все допустимые статусы в порядке отображения.
var Statuses = []Status{StatusActive, StatusArchived, StatusInReview, StatusPending, StatusCompleted}

// Valid возвращает true, если статус входит в перечисление.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// CreatedNote — текст заметки первой (seed) записи истории.
const CreatedNote = "File created"

// File — отслеживаемый физический документ.
type File struct {
	// FileID — непрозрачный внешний идентификатор (используется в QR URL), неизменяем
	FileID string `json:"fileId" bson:"fileId"`
	// FileNumber — бизнес-идентификатор, задаётся пользователем
	FileNumber string `json:"fileNumber" bson:"fileNumber"`
	// SerialNumber — системный номер вида SN<год><6 цифр>, неизменяем
	SerialNumber string `json:"serialNumber" bson:"serialNumber"`
	// FileName — наименование файла
	FileName string `json:"fileName" bson:"fileName"`
	// Description — описание (опционально)
	Description string `json:"description" bson:"description"`
	// Section — отдел/секция, за которой числится файл
	Section string `json:"section" bson:"section"`
	// Owner — текущий ответственный
	Owner string `json:"owner" bson:"owner"`
	// CurrentLocation — текущее местоположение
	CurrentLocation string `json:"currentLocation" bson:"currentLocation"`
	// Status — текущий статус
	Status Status `json:"status" bson:"status"`
	// CreatedAt — время создания, устанавливается один раз
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	// History — append-only журнал переходов в хронологическом порядке
	History []HistoryEntry `json:"history" bson:"history"`
}

// HistoryEntry — неизменяемый снимок одного перехода состояния.
type HistoryEntry struct {
	Location         string    `json:"location" bson:"location"`
	Status           Status    `json:"status" bson:"status"`
	Handler          string    `json:"handler" bson:"handler"`
	Section          string    `json:"section" bson:"section"`
	Notes            string    `json:"notes" bson:"notes"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp"`
	FromSection      string    `json:"fromSection,omitempty" bson:"fromSection,omitempty"`
	ToSection        string    `json:"toSection,omitempty" bson:"toSection,omitempty"`
	FromLocation     string    `json:"fromLocation,omitempty" bson:"fromLocation,omitempty"`
	FromOfficialName string    `json:"fromOfficialName,omitempty" bson:"fromOfficialName,omitempty"`
}

// State — изменяемая часть File, которая всегда обновляется вместе
// с добавлением записи истории.
type State struct {
	Status          Status
	CurrentLocation string
	Section         string
	Owner           string
}

// LastEntry возвращает последнюю запись истории или nil для пустой истории.
func (f *File) LastEntry() *HistoryEntry {
	if len(f.History) == 0 {
		return nil
	}
	return &f.History[len(f.History)-1]
}

// Summary возвращает облегчённое представление файла для списков.
func (f *File) Summary() FileSummary {
	return FileSummary{
		FileID:       f.FileID,
		FileName:     f.FileName,
		FileNumber:   f.FileNumber,
		SerialNumber: f.SerialNumber,
		Status:       f.Status,
		Section:      f.Section,
		Owner:        f.Owner,
		CreatedAt:    f.CreatedAt,
	}
}

// FileSummary — проекция File для списков (без истории).
type FileSummary struct {
	FileID       string    `json:"fileId" bson:"fileId"`
	FileName     string    `json:"fileName" bson:"fileName"`
	FileNumber   string    `json:"fileNumber" bson:"fileNumber"`
	SerialNumber string    `json:"serialNumber" bson:"serialNumber"`
	Status       Status    `json:"status" bson:"status"`
	Section      string    `json:"section" bson:"section"`
	Owner        string    `json:"owner" bson:"owner"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}
