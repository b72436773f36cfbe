package metrics

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server is the http server serving the /metrics endpoint for prometheus.
type Server struct {
	server *http.Server
	log    zerolog.Logger
}

// NewServer creates a server on the given port. The profiler endpoint is
// optional and shares the listener.
func NewServer(log zerolog.Logger, port uint, enableProfilerEndpoint bool) *Server {
	addr := ":" + strconv.Itoa(int(port))

	mux := http.NewServeMux()
	endpoint := "/metrics"
	mux.Handle(endpoint, promhttp.Handler())
	log.Info().Str("address", addr).Str("endpoint", endpoint).Msg("metrics server started")
	if enableProfilerEndpoint {
		mux.Handle("/debug/pprof/", http.DefaultServeMux)
	}

	return &Server{
		server: &http.Server{Addr: addr, Handler: mux},
		log:    log,
	}
}

// Ready returns a channel that closes once the server is listening.
func (m *Server) Ready() <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		if err := m.server.ListenAndServe(); err != nil {
			// http.ErrServerClosed is returned on Close or Shutdown and is
			// part of a normal stop
			if errors.Is(err, http.ErrServerClosed) {
				m.log.Debug().Err(err).Msg("metrics server shutdown")
			} else {
				m.log.Err(err).Msg("error shutting down metrics server")
			}
		}
	}()
	go func() {
		close(ready)
	}()
	return ready
}

// Done returns a channel that closes once shutdown is complete.
func (m *Server) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = m.server.Shutdown(ctx)
		cancel()
		close(done)
	}()
	return done
}
