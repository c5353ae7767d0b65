package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-blehub/internal/command"
	"github.com/nerrad567/gray-logic-blehub/internal/gateway"
	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-blehub/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-blehub/internal/registry"
	"github.com/nerrad567/gray-logic-blehub/internal/snapshot"
	"github.com/nerrad567/gray-logic-blehub/internal/webhook"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultSnapshotBuffer is used when the config leaves the buffer unset.
const defaultSnapshotBuffer = 8192

// GatewayMetrics provides gateway statistics for the metrics endpoint.
// Satisfied by *gateway.Gateway.
type GatewayMetrics interface {
	GetMetrics() gateway.Metrics
}

// ConnectionChecker reports broker connectivity. Satisfied by *mqtt.Client.
type ConnectionChecker interface {
	IsConnected() bool
}

// DBStats provides connection pool statistics. Satisfied by *database.DB.
type DBStats interface {
	Stats() sql.DBStats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *registry.Registry
	Encoder  *snapshot.Encoder
	Webhooks *webhook.Service
	Commands *command.Dispatcher

	// Optional
	Gateway     GatewayMetrics
	MQTT        ConnectionChecker
	DB          DBStats
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the hub's HTTP API. Build it with New, then Start it.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	registry  *registry.Registry
	encoder   *snapshot.Encoder
	webhooks  *webhook.Service
	commands  *command.Dispatcher
	gateway   GatewayMetrics
	mqtt      ConnectionChecker
	db        DBStats
	version   string
	startTime time.Time
	bufSize   int

	server      *http.Server
	listener    net.Listener
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New validates deps and returns an unstarted Server.
//
// Parameters:
//   - deps: Logger, Registry, Encoder, Webhooks and Commands are required
//
// Returns:
//   - *Server: Ready to Start
//   - error: Naming the first missing dependency
func New(deps Deps) (*Server, error) {
	required := []struct {
		name    string
		missing bool
	}{
		{"logger", deps.Logger == nil},
		{"device registry", deps.Registry == nil},
		{"snapshot encoder", deps.Encoder == nil},
		{"webhook service", deps.Webhooks == nil},
		{"command dispatcher", deps.Commands == nil},
	}
	for _, r := range required {
		if r.missing {
			return nil, fmt.Errorf("api: %s is required", r.name)
		}
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		registry:  deps.Registry,
		encoder:   deps.Encoder,
		webhooks:  deps.Webhooks,
		commands:  deps.Commands,
		gateway:   deps.Gateway,
		mqtt:      deps.MQTT,
		db:        deps.DB,
		version:   deps.Version,
		startTime: time.Now(),
		bufSize:   deps.Config.SnapshotBuffer,
	}
	if s.bufSize <= 0 {
		s.bufSize = defaultSnapshotBuffer
	}

	// main builds the hub early so the gateway can use it as a change sink.
	if deps.ExternalHub != nil {
		s.hub, s.externalHub = deps.ExternalHub, true
	}
	return s, nil
}

// Hub returns the WebSocket hub. Nil before Start unless injected.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Addr is the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listen address and serves in the background. A bind
// failure is returned here rather than logged later. Without an injected
// hub, Start creates one tied to ctx.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("api: listening: %w", err)
	}
	s.listener = ln

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	read := time.Duration(s.cfg.Timeouts.Read) * time.Second
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logger.Info("API server listening", "address", ln.Addr().String())
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server stopped", "error", err)
		}
	}()
	return nil
}

// Close stops the listener and gives in-flight requests
// gracefulShutdownTimeout to finish.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}

// HealthCheck fails until Start has succeeded, or when ctx is done.
func (s *Server) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("api health check: %w", err)
	}
	if s.server == nil {
		return errors.New("api: server not started")
	}
	return nil
}
