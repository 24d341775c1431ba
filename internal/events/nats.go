// nats.go — публикация событий в NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSOptions — параметры подключения к NATS.
type NATSOptions struct {
	URL            string
	SubjectPrefix  string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// NATSPublisher — публикатор событий в NATS core.
type NATSPublisher struct {
	conn    *nats.Conn
	prefix  string
	publish func(subject string, data []byte) error
	logger  *slog.Logger
}

// NewNATSPublisher подключается к NATS. Подключение повторяется в фоне
// (RetryOnFailedConnect), поэтому недоступный при старте сервер не
// останавливает приложение.
func NewNATSPublisher(opts NATSOptions, logger *slog.Logger) (*NATSPublisher, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}
	log := logger.With(slog.String("component", "nats_publisher"))

	conn, err := nats.Connect(
		opts.URL,
		nats.Name("file-tracker"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS: соединение потеряно", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS: соединение восстановлено", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("подключение к NATS: %w", err)
	}

	p := newPublisher(opts.SubjectPrefix, conn.Publish, log)
	p.conn = conn
	return p, nil
}

func newPublisher(prefix string, publish func(string, []byte) error, logger *slog.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = "filetracker"
	}
	return &NATSPublisher{prefix: prefix, publish: publish, logger: logger}
}

// Subject возвращает тему NATS для типа события.
func (p *NATSPublisher) Subject(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish сериализует событие в JSON и отправляет его.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("сериализация события %s: %w", ev.Type, err)
	}
	if err := p.publish(p.Subject(ev.Type), data); err != nil {
		return fmt.Errorf("публикация события %s: %w", ev.Type, err)
	}
	return nil
}

// Close сбрасывает буфер и закрывает соединение.
func (p *NATSPublisher) Close() {
	if p.conn == nil {
		return
	}
	if err := p.conn.FlushTimeout(2 * time.Second); err != nil {
		p.logger.Warn("NATS: не удалось сбросить буфер", slog.String("error", err.Error()))
	}
	p.conn.Close()
}
