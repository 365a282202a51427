package setup

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// debugServer exposes runtime profiles and build details on the loopback
// interface while debugging is enabled.
type debugServer struct {
	srv      *http.Server
	listener net.Listener
	done     chan struct{}
}

// debugInfo is served at /debug/info.
type debugInfo struct {
	Component  string `json:"component"`
	Version    string `json:"version"`
	InstanceID string `json:"instanceId"`
	StartedAt  string `json:"startedAt"`
}

func newDebugMux(info debugInfo, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.HandleFunc("/debug/info", func(w http.ResponseWriter, _ *http.Request) {
		raw, err := sonic.Marshal(info)
		if err != nil {
			logger.Error("Failed to encode debug info", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(raw)
	})

	return mux
}

// startDebugServer listens on 127.0.0.1:port; port 0 picks a free port.
func startDebugServer(port int, info debugInfo, logger *zap.Logger) (*debugServer, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for debug server: %w", err)
	}

	s := &debugServer{
		srv: &http.Server{
			Handler:           newDebugMux(info, logger),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       2 * time.Minute,
		},
		listener: listener,
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)

		if err := s.srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Debug server stopped", zap.Error(err))
		}
	}()

	logger.Warn("Debug server enabled, do not expose it in production",
		zap.String("address", s.Addr()))

	return s, nil
}

// Addr returns the address the server listens on.
func (s *debugServer) Addr() string {
	return s.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for the serve loop to exit.
func (s *debugServer) Shutdown(ctx context.Context) error {
	err := s.srv.Shutdown(ctx)

	select {
	case <-s.done:
	case <-ctx.Done():
	}

	return err
}
