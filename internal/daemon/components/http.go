package components

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/harunnryd/ouvidoria/internal/adapter"
	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/daemon"
	"github.com/harunnryd/ouvidoria/internal/ingress"
	"github.com/harunnryd/ouvidoria/internal/metrics"
)

// Version is reported by /health; the binary overrides it at build time.
var Version = "dev"

// HTTPRoutes are the optional handlers mounted next to the public surface.
type HTTPRoutes struct {
	Twilio  *adapter.TwilioAdapter
	Metrics *metrics.Metrics
}

type HTTPServerComponent struct {
	daemon       *daemon.Daemon
	cfg          *config.ServerConfig
	ingressComp  *IngressComponent
	intakeComp   *IntakeComponent
	routes       HTTPRoutes
	dependencies []string

	server      *http.Server
	listener    net.Listener
	shutdownTTL time.Duration
	initialized bool
	started     bool
	mu          sync.RWMutex
	startTime   time.Time
}

func NewHTTPServerComponent(d *daemon.Daemon, cfg *config.ServerConfig, ingressComp *IngressComponent, intakeComp *IntakeComponent, routes HTTPRoutes) *HTTPServerComponent {
	return NewHTTPServerComponentWithDependencies(d, cfg, ingressComp, intakeComp, routes, []string{"Ingress", "Intake"})
}

func NewHTTPServerComponentWithDependencies(d *daemon.Daemon, cfg *config.ServerConfig, ingressComp *IngressComponent, intakeComp *IntakeComponent, routes HTTPRoutes, dependencies []string) *HTTPServerComponent {
	deps := make([]string, len(dependencies))
	copy(deps, dependencies)
	return &HTTPServerComponent{
		daemon:       d,
		cfg:          cfg,
		ingressComp:  ingressComp,
		intakeComp:   intakeComp,
		routes:       routes,
		dependencies: deps,
	}
}

func (h *HTTPServerComponent) Name() string {
	return "HTTPServer"
}

func (h *HTTPServerComponent) Dependencies() []string {
	deps := make([]string, len(h.dependencies))
	copy(deps, h.dependencies)
	return deps
}

func (h *HTTPServerComponent) Init(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	handler, err := h.buildHandler()
	if err != nil {
		return err
	}

	readTimeout, err := config.DurationOrDefault(h.cfg.ReadTimeout, config.DefaultServerReadTimeout)
	if err != nil {
		return fmt.Errorf("parse server read timeout: %w", err)
	}
	writeTimeout, err := config.DurationOrDefault(h.cfg.WriteTimeout, config.DefaultServerWriteTimeout)
	if err != nil {
		return fmt.Errorf("parse server write timeout: %w", err)
	}
	idleTimeout, err := config.DurationOrDefault(h.cfg.IdleTimeout, config.DefaultServerIdleTimeout)
	if err != nil {
		return fmt.Errorf("parse server idle timeout: %w", err)
	}
	shutdownTimeout, err := config.DurationOrDefault(h.cfg.ShutdownTimeout, config.DefaultServerShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse server shutdown timeout: %w", err)
	}

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.cfg.Port),
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	h.shutdownTTL = shutdownTimeout

	h.initialized = true
	slog.Info("HTTPServer initialized", "component", h.Name(), "port", h.cfg.Port)
	return nil
}

func (h *HTTPServerComponent) buildHandler() (http.Handler, error) {
	var ing *ingress.Ingress
	if h.ingressComp != nil {
		ing = h.ingressComp.GetIngress()
	}
	if ing == nil {
		return nil, fmt.Errorf("ingress not initialized")
	}
	var lookup ingress.Lookuper
	if h.intakeComp != nil {
		if engine := h.intakeComp.GetEngine(); engine != nil {
			lookup = engine
		}
	}
	if lookup == nil {
		return nil, fmt.Errorf("intake engine not initialized")
	}

	public := ingress.NewHTTPHandler(ing, lookup)
	public.Handle("GET /health", http.HandlerFunc(h.handleHealth))
	if h.routes.Metrics != nil {
		public.Handle("GET /metrics", h.routes.Metrics.Handler())
	}
	if tw := h.routes.Twilio; tw != nil {
		public.Handle(tw.WebhookPath(), tw)
		slog.Info("Twilio webhook mounted", "component", h.Name(), "path", tw.WebhookPath())
	}
	return public, nil
}

func (h *HTTPServerComponent) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return fmt.Errorf("HTTPServer not initialized")
	}

	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.server.Addr, err)
	}
	h.listener = ln

	go func() {
		slog.Info("HTTP server listening", "component", h.Name(), "addr", ln.Addr().String())
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "component", h.Name(), "error", err)
		}
	}()

	h.started = true
	h.startTime = time.Now()
	slog.Info("HTTPServer started", "component", h.Name())
	return nil
}

func (h *HTTPServerComponent) Stop(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		slog.Info("HTTPServer not started, skipping stop", "component", h.Name())
		return nil
	}

	slog.Info("Stopping HTTPServer...", "component", h.Name())
	shutdownCtx, cancel := context.WithTimeout(ctx, h.shutdownTTL)
	defer cancel()

	if err := h.server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTPServer shutdown error", "component", h.Name(), "error", err)
		return err
	}

	h.started = false
	slog.Info("HTTPServer stopped", "component", h.Name())
	return nil
}

func (h *HTTPServerComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.initialized {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	if !h.started {
		return &daemon.ComponentHealth{
			Name:    h.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not started"),
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    h.Name(),
		Healthy: true,
		Error:   nil,
	}, nil
}

// Addr is the bound listen address once started, useful with port 0.
func (h *HTTPServerComponent) Addr() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.listener == nil {
		return ""
	}
	return h.listener.Addr().String()
}

// Handler returns the routed handler, for tests that skip the listener.
func (h *HTTPServerComponent) Handler() http.Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.server == nil {
		return nil
	}
	return h.server.Handler
}

func (h *HTTPServerComponent) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	healthResponse := map[string]interface{}{
		"status":  "ok",
		"version": Version,
	}

	if h.daemon != nil {
		healthResponse["uptime_seconds"] = int64(h.daemon.Uptime().Seconds())

		componentHealthMap := make(map[string]interface{})
		healthy := true
		for name, ch := range h.daemon.ComponentHealth() {
			entry := map[string]interface{}{
				"healthy": ch.Healthy,
			}
			if ch.Error != nil {
				entry["error"] = ch.Error.Error()
			}
			if !ch.Healthy {
				healthy = false
			}
			componentHealthMap[name] = entry
		}
		healthResponse["components"] = componentHealthMap
		if !healthy {
			healthResponse["status"] = "degraded"
		}
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(healthResponse)
}
