package service

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewDephealthService_NoTargets(t *testing.T) {
	_, err := NewDephealthService("file-tracker", "filetracker", DephealthTargets{},
		15*time.Second, testLogger(), prometheus.NewRegistry())
	if !errors.Is(err, ErrNoDependencies) {
		t.Fatalf("ожидалась ErrNoDependencies, получено %v", err)
	}
}

func TestNewDephealthService_NATS(t *testing.T) {
	ds, err := NewDephealthService("file-tracker", "filetracker",
		DephealthTargets{NATSMonitorURL: "http://nats.local:8222"},
		15*time.Second, testLogger(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewDephealthService() ошибка: %v", err)
	}
	if ds == nil {
		t.Fatal("сервис не создан")
	}
}
