package observability

import (
	"context"
	"testing"

	"github.com/riskibarqy/matchthread-live/internal/config"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
)

func TestStartTelemetry_Disabled(t *testing.T) {
	cfg := config.Config{
		ServiceName:    "matchthread-live",
		ServiceVersion: "dev",
		AppEnv:         config.EnvDev,
	}

	telemetry, err := StartTelemetry(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("start telemetry: %v", err)
	}
	if telemetry.tracing || telemetry.profiler != nil {
		t.Fatalf("expected nothing started, got=%+v", telemetry)
	}
	if err := telemetry.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown telemetry: %v", err)
	}
}

func TestStartTelemetry_UptraceWithoutDSN(t *testing.T) {
	cfg := config.Config{UptraceEnabled: true, ServiceName: "matchthread-live"}

	telemetry, err := StartTelemetry(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("start telemetry: %v", err)
	}
	if telemetry.tracing {
		t.Fatalf("expected tracing to stay off without a DSN")
	}
}

func TestTelemetry_NilShutdown(t *testing.T) {
	var telemetry *Telemetry
	if err := telemetry.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown nil telemetry: %v", err)
	}
}
