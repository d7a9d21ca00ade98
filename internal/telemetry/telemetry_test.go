package telemetry

import (
	"context"
	"testing"

	"github.com/engramd/engram/internal/config"
)

func TestSetup_Disabled(t *testing.T) {
	t.Parallel()

	shutdown, err := Setup(context.Background(), config.TelemetryConfig{}, "test")
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown func is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}
