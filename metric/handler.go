package metric

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/c360/timermanager/errors"
	"github.com/c360/timermanager/health"
	"github.com/c360/timermanager/pkg/retry"
)

// Server represents the metrics HTTP server
type Server struct {
	port     int
	path     string
	server   *http.Server
	registry *MetricsRegistry
	mu       sync.Mutex // protects server field

	health        *health.Monitor
	componentName string
}

// ServerOption configures a Server at construction time.
type ServerOption func(*Server)

// WithHealth reports the server's bind/serve state into monitor under
// componentName, the same way timerpool.WithHealth reports the pool's
// state, so a shared Monitor's AggregateHealth sees both.
func WithHealth(monitor *health.Monitor, componentName string) ServerOption {
	return func(s *Server) {
		s.health = monitor
		s.componentName = componentName
	}
}

// NewServer creates a new metrics server with the provided registry
func NewServer(port int, path string, registry *MetricsRegistry, opts ...ServerOption) *Server {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}

	s := &Server{
		port:     port,
		path:     path,
		registry: registry,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the metrics HTTP server
func (s *Server) Start() error {
	s.mu.Lock()

	// Check if server is already running
	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(
			fmt.Errorf("server already running"),
			"Server", "Start", "cannot start server that is already running")
	}

	// Validate that we have a registry
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(
			fmt.Errorf("nil registry"),
			"Server", "Start", "metrics registry not provided")
	}

	mux := http.NewServeMux()

	// Create Prometheus HTTP handler
	handler := promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	)

	// Register the handler
	mux.Handle(s.path, handler)

	// Add a health endpoint reporting the shared Monitor's aggregate status,
	// covering this server's own bind/serve health alongside whatever other
	// components (the timer pool) report into the same Monitor.
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.health == nil {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}

		aggregate := s.health.AggregateHealth("timermanager")
		if aggregate.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(struct {
			Status     string   `json:"status"`
			Message    string   `json:"message"`
			Components []string `json:"components"`
			Count      int      `json:"count"`
		}{
			Status:     aggregate.Status,
			Message:    aggregate.Message,
			Components: s.health.ListComponents(),
			Count:      s.health.Count(),
		})
	})

	// Add a root handler with information
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<html>
<head><title>Timer Manager Metrics</title></head>
<body>
<h1>Timer Manager Metrics Server</h1>
<p><a href="%s">Metrics</a></p>
<p><a href="/health">Health</a></p>
</body>
</html>`, s.path)
	})

	// Binding can race with a just-stopped previous instance of this same
	// process still releasing the port (TIME_WAIT), a transient condition
	// unlike a goroutine spawn -- retry it a bounded number of times before
	// giving up, then treat exhaustion as fatal.
	var listener net.Listener
	bindErr := retry.Do(context.Background(), retry.Bind(), func() error {
		l, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
		if err != nil {
			return err
		}
		listener = l
		return nil
	})
	if bindErr != nil {
		if s.health != nil {
			s.health.UpdateUnhealthy(s.componentName, bindErr.Error())
		}
		s.mu.Unlock()
		return errors.WrapFatal(bindErr, "Server", "Start",
			fmt.Sprintf("failed to bind port %d after retrying", s.port))
	}

	s.server = &http.Server{Handler: mux}
	if s.health != nil {
		s.health.UpdateHealthy(s.componentName, fmt.Sprintf("listening on %s", listener.Addr()))
	}
	// Serve blocks for the server's lifetime; release the lock first so Stop
	// (called from another goroutine) can reach s.server.Close() instead of
	// waiting on a mutex Start never lets go of until the process exits.
	s.mu.Unlock()

	if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
		if s.health != nil {
			s.health.UpdateUnhealthy(s.componentName, err.Error())
		}
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("server on port %d stopped unexpectedly", s.port))
	}

	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		err := s.server.Close()
		s.server = nil // reset server field to allow restart
		if err != nil {
			return errors.WrapTransient(err, "Server", "Stop",
				"failed to stop HTTP server")
		}
	}
	return nil
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, s.path)
}
