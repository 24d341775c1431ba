// qrcode.go — генерация PNG QR-кодов для ссылок на карточки файлов.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
)

const (
	qrMaxAttempts = 3
	qrRetryDelay  = 100 * time.Millisecond
	// QRImageSize — сторона PNG в пикселях.
	QRImageSize = 256
)

// QRRenderer кодирует URL в PNG с повторами при сбое кодировщика.
type QRRenderer struct {
	encode func(content string, size int) ([]byte, error)
	delay  time.Duration
	logger *slog.Logger
}

// NewQRRenderer создаёт генератор QR-кодов (уровень коррекции M).
func NewQRRenderer(logger *slog.Logger) *QRRenderer {
	return &QRRenderer{
		encode: func(content string, size int) ([]byte, error) {
			return qrcode.Encode(content, qrcode.Medium, size)
		},
		delay:  qrRetryDelay,
		logger: logger.With(slog.String("component", "qr_renderer")),
	}
}

// FileURL возвращает ссылку на карточку файла, которую кодирует QR.
func FileURL(baseURL, fileID string) string {
	return strings.TrimRight(baseURL, "/") + "/file/" + fileID
}

// PNG кодирует content. Перед попыткой n ждёт n*100ms.
func (r *QRRenderer) PNG(ctx context.Context, content string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= qrMaxAttempts; attempt++ {
		png, err := r.encode(content, QRImageSize)
		if err == nil {
			return png, nil
		}
		lastErr = err
		r.logger.Warn("Ошибка генерации QR-кода",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()),
		)
		if attempt == qrMaxAttempts {
			break
		}
		if err := sleepCtx(ctx, time.Duration(attempt)*r.delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("генерация QR-кода после %d попыток: %w", qrMaxAttempts, lastErr)
}

// DataURL кодирует content и возвращает PNG в виде data URL.
func (r *QRRenderer) DataURL(ctx context.Context, content string) (string, error) {
	png, err := r.PNG(ctx, content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// sleepCtx ждёт d или отмены контекста.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
