// Package api provides the HTTP REST API and WebSocket server for Brickplay Core.
//
// It exposes the device catalogue, creation import and binding, play
// session control, and the remote UI surface (questions, progress and
// navigation) to user interfaces.
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/brickplay-core/internal/audit"
	"github.com/nerrad567/brickplay-core/internal/creation"
	"github.com/nerrad567/brickplay-core/internal/device"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/config"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/database"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/logging"
	"github.com/nerrad567/brickplay-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/brickplay-core/internal/play"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Registry  *device.Registry
	Creations creation.Repository
	Transform *creation.Transform
	Player    *play.Player
	AuditRepo audit.Repository // optional: audit endpoints and entries are disabled without it

	// Hub and UI are shared with the play core. When nil the server
	// creates its own.
	Hub *Hub
	UI  *UISurface

	DB     *database.DB     // optional: pool stats in /metrics
	MQTT   *mqtt.Client     // optional: broker status in /metrics
	Influx *influxdb.Client // optional: telemetry status in /metrics

	// Registerer receives the HTTP collectors; Gatherer backs /metrics/prometheus.
	// Both are optional.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	Version string
}

// Server serves the REST API and the WebSocket hub. Safe for concurrent use.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	secCfg    config.SecurityConfig
	logger    *logging.Logger
	registry  *device.Registry
	creations creation.Repository
	transform *creation.Transform
	player    *play.Player
	auditRepo audit.Repository
	db        *database.DB
	mqtt      *mqtt.Client
	influx    *influxdb.Client
	gatherer  prometheus.Gatherer
	version   string

	hub         *Hub
	ownsHub     bool // false if hub was injected externally
	ui          *UISurface
	tickets     *ticketStore
	httpMetrics *httpMetrics

	server    *http.Server
	startTime time.Time
	bgCtx     context.Context    // lifetime of background work; nil before Start
	cancel    context.CancelFunc // cancels background goroutines on Close()
	auditCh   chan *audit.AuditLog
	auditDone chan struct{}
}

// New checks deps and builds a server. Nothing listens until Start.
func New(deps Deps) (*Server, error) {
	for name, missing := range map[string]bool{
		"logger":              deps.Logger == nil,
		"device registry":     deps.Registry == nil,
		"creation repository": deps.Creations == nil,
		"transform":           deps.Transform == nil,
		"player":              deps.Player == nil,
	} {
		if missing {
			return nil, fmt.Errorf("api: %s is required", name)
		}
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		registry:    deps.Registry,
		creations:   deps.Creations,
		transform:   deps.Transform,
		player:      deps.Player,
		auditRepo:   deps.AuditRepo,
		db:          deps.DB,
		mqtt:        deps.MQTT,
		influx:      deps.Influx,
		gatherer:    deps.Gatherer,
		version:     deps.Version,
		hub:         deps.Hub,
		ui:          deps.UI,
		tickets:     newTicketStore(),
		httpMetrics: newHTTPMetrics(deps.Registerer),
		startTime:   time.Now(),
	}

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		s.ownsHub = true
	}
	if s.ui == nil {
		s.ui = NewUISurface(s.hub, time.Duration(s.cfg.PromptTimeout)*time.Second)
	}
	s.hub.SetAnswerer(s.ui)

	return s, nil
}

// Start launches the background workers and the listener, then returns.
// Listener errors after that point are logged.
func (s *Server) Start(ctx context.Context) error {
	s.startBackground(ctx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	// Start listening in background
	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// startBackground launches the goroutines that outlive single requests.
func (s *Server) startBackground(ctx context.Context) {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	srvCtx, cancel := context.WithCancel(ctx)
	s.bgCtx, s.cancel = srvCtx, cancel

	if s.ownsHub {
		go s.hub.Run(srvCtx)
	}

	// Periodic ticket cleanup to prevent memory leaks
	go s.cleanTicketsLoop(srvCtx)

	if s.auditRepo != nil {
		s.auditCh = make(chan *audit.AuditLog, auditChanSize)
		s.auditDone = make(chan struct{})
		go s.drainAuditLog(srvCtx)
	}
}

// backgroundContext is the context for work that outlives its request.
func (s *Server) backgroundContext() context.Context {
	if s.bgCtx == nil {
		return context.Background()
	}
	return s.bgCtx
}

// stopBackground cancels the background goroutines and waits for queued
// audit entries to be written.
func (s *Server) stopBackground(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}
	if s.auditDone != nil {
		select {
		case <-s.auditDone:
		case <-ctx.Done():
			s.logger.Warn("audit log drain interrupted by shutdown timeout")
		}
	}
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	s.stopBackground(ctx)
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// UI returns the surface the server answers prompts for.
func (s *Server) UI() *UISurface {
	return s.ui
}
