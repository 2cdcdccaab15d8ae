package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/riskibarqy/matchthread-live/internal/config"
	"github.com/riskibarqy/matchthread-live/internal/platform/logging"
)

// StatusFunc reports process health for /healthz. A non-nil error answers 503.
type StatusFunc func() error

// StartMetricsServer serves /metrics and /healthz, plus /debug/pprof when
// PPROF_ENABLED is set. It returns nil when metrics are disabled.
func StartMetricsServer(cfg config.Config, metrics http.Handler, status StatusFunc, logger *logging.Logger) (*http.Server, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.MetricsEnabled {
		logger.Info("metrics server disabled", "reason", "METRICS_ENABLED=false")
		return nil, nil
	}
	if cfg.MetricsAddr == "" {
		return nil, errors.New("metrics server addr cannot be empty")
	}

	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           newMetricsMux(metrics, status, cfg.PprofEnabled),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server starting", "addr", cfg.MetricsAddr, "pprof", cfg.PprofEnabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return srv, nil
}

func newMetricsMux(metrics http.Handler, status StatusFunc, withPprof bool) *http.ServeMux {
	mux := http.NewServeMux()
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if status != nil {
			if err := status(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if withPprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func StopServer(srv *http.Server, logger *logging.Logger, timeout time.Duration) error {
	if srv == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("metrics server stopped")

	return nil
}
