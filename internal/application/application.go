package application

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/confloader/internal/api"
	"github.com/eugenenazirov/confloader/internal/config"
	"github.com/eugenenazirov/confloader/internal/loader"
	"github.com/eugenenazirov/confloader/internal/registry"
	"github.com/eugenenazirov/confloader/internal/schema"
)

var (
	// ErrNoSchema is returned when no schema file is configured.
	ErrNoSchema = errors.New("schema file is required")
	// ErrNoConfigFile is returned when no configuration file is configured.
	ErrNoConfigFile = errors.New("configuration file is required")
)

// App encapsulates the loaded configuration and the diagnostics HTTP server.
type App struct {
	registry *registry.Registry
	router   http.Handler
	logger   *zap.Logger
	server   *http.Server
}

// Bootstrap registers every key declared in the schema file and loads the
// configuration tree rooted at cfg.ConfigFile.
func Bootstrap(cfg config.Config, logger *zap.Logger) (*registry.Registry, *schema.Schema, error) {
	if cfg.SchemaFile == "" {
		return nil, nil, ErrNoSchema
	}
	if cfg.ConfigFile == "" {
		return nil, nil, ErrNoConfigFile
	}

	s, err := schema.Load(cfg.SchemaFile)
	if err != nil {
		return nil, nil, err
	}

	reg := registry.New()
	if err := s.Apply(reg); err != nil {
		return nil, nil, fmt.Errorf("register schema keys: %w", err)
	}

	opts := []loader.Option{
		loader.WithLogger(logger),
		loader.WithMaxDepth(cfg.MaxImportDepth),
	}
	if cfg.RelativeImports {
		opts = append(opts, loader.WithRelativeImports())
	}
	if err := loader.New(opts...).Load(reg, cfg.ConfigFile); err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	return reg, s, nil
}

// New loads the configuration and initializes the diagnostics server.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	reg, s, err := Bootstrap(cfg, logger)
	if err != nil {
		return nil, err
	}

	handler := api.NewHandler(reg,
		api.WithSchema(s),
		api.WithSource(cfg.ConfigFile),
	)
	router := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		registry: reg,
		router:   router,
		logger:   logger,
		server:   NewServer(cfg, router),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Registry returns the loaded registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.router
}
