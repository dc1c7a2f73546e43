package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"shoalcore/internal/core"
)

var _ core.Logger = (*ZapLogger)(nil)

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("shouting"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestWrapRoutesLevels(t *testing.T) {
	obsCore, logs := observer.New(zap.DebugLevel)
	logger := Wrap(zap.New(obsCore))

	logger.Debug("d", "k", "v")
	logger.Info("i")
	logger.Warn("w")
	logger.Error("e")

	entries := logs.All()
	if len(entries) != 4 {
		t.Fatalf("entries = %d, want 4", len(entries))
	}
	if entries[0].Message != "d" || entries[0].Level != zap.DebugLevel {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
	if entries[3].Message != "e" || entries[3].Level != zap.ErrorLevel {
		t.Fatalf("entry 3 = %+v", entries[3])
	}
	if got, ok := entries[0].ContextMap()["k"]; !ok || got != "v" {
		t.Fatalf("context = %+v", entries[0].ContextMap())
	}
}
