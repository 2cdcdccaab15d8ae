package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/riskibarqy/matchthread-live/internal/config"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
)

func TestMetricsMux_Routes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("matchthread_up 1\n"))
	})

	cases := []struct {
		name      string
		withPprof bool
		status    StatusFunc
		path      string
		wantCode  int
	}{
		{name: "metrics", path: "/metrics", wantCode: http.StatusOK},
		{name: "healthy", path: "/healthz", wantCode: http.StatusOK},
		{name: "unhealthy", path: "/healthz", status: func() error { return errors.New("updater stopped") }, wantCode: http.StatusServiceUnavailable},
		{name: "pprof off", path: "/debug/pprof/", wantCode: http.StatusNotFound},
		{name: "pprof on", withPprof: true, path: "/debug/pprof/", wantCode: http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newMetricsMux(metrics, tc.status, tc.withPprof).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			if rec.Code != tc.wantCode {
				t.Fatalf("expected %d for %s, got=%d", tc.wantCode, tc.path, rec.Code)
			}
		})
	}
}

func TestStartMetricsServer_Disabled(t *testing.T) {
	srv, err := StartMetricsServer(config.Config{MetricsEnabled: false}, nil, nil, logging.NewNop())
	if err != nil || srv != nil {
		t.Fatalf("expected no server when disabled, srv=%v err=%v", srv, err)
	}
	if err := StopServer(nil, logging.NewNop(), 0); err != nil {
		t.Fatalf("stop nil server: %v", err)
	}
}
