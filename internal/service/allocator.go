// allocator.go — выделение серийных номеров SN<год><6 цифр>.
//
// Схема оптимистичная и без блокировок: два параллельных создания могут
// прочитать один максимум и предложить одинаковый номер. Второго писателя
// отсекает уникальный индекс serialNumber, после чего FileService повторяет
// выделение с увеличенным attempt. Без уникального индекса (serverless-режим)
// дубликаты номеров возможны.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/bigkaa/filetracker/internal/domain/serial"
	"github.com/bigkaa/filetracker/internal/store"
)

const serialQueryTimeout = 5 * time.Second

// SerialAllocator выделяет кандидатов серийных номеров.
type SerialAllocator struct {
	repo   store.FileStore
	now    func() time.Time
	rnd    func() int
	logger *slog.Logger
}

// NewSerialAllocator создаёт аллокатор поверх хранилища файлов.
func NewSerialAllocator(repo store.FileStore, logger *slog.Logger) *SerialAllocator {
	return &SerialAllocator{
		repo:   repo,
		now:    time.Now,
		rnd:    func() int { return rand.IntN(100) },
		logger: logger.With(slog.String("component", "serial_allocator")),
	}
}

// Allocate возвращает кандидата для года year и попытки attempt.
// При недоступном хранилище возвращает резервный номер по времени
// (fallback=true). Прочие ошибки чтения максимума трактуются как
// «номеров за год ещё нет». Ошибка возвращается только при исчерпании
// 6-значного диапазона (serial.ErrExhausted).
func (a *SerialAllocator) Allocate(ctx context.Context, year, attempt int) (sn string, fallback bool, err error) {
	qctx, cancel := context.WithTimeout(ctx, serialQueryTimeout)
	defer cancel()

	last := 0
	lastSN, err := a.repo.LastSerialNumber(qctx, serial.Pattern(year))
	switch {
	case err == nil:
		seq, parseErr := serial.ParseSequence(year, lastSN)
		if parseErr != nil {
			a.logger.Warn("Некорректный последний серийный номер, нумерация с 1",
				slog.String("serial_number", lastSN),
				slog.String("error", parseErr.Error()),
			)
		} else {
			last = seq
		}
	case errors.Is(err, store.ErrNotFound):
	case errors.Is(err, store.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		sn := serial.Fallback(year, a.now(), a.rnd())
		a.logger.Warn("Хранилище недоступно, выдан резервный серийный номер",
			slog.String("serial_number", sn),
			slog.String("error", err.Error()),
		)
		serialFallbacksTotal.Inc()
		return sn, true, nil
	default:
		a.logger.Warn("Ошибка чтения последнего серийного номера, нумерация с 1",
			slog.String("error", err.Error()),
		)
	}

	seq, err := serial.ComputeCandidate(last, attempt)
	if err != nil {
		return "", false, err
	}
	return serial.Format(year, seq), false, nil
}
