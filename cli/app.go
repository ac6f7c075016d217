// Application wiring shared by CLI commands.
//
// Information Hiding:
// - Settings loading, provider construction and storage opening hidden
// - Observability setup (logger, metrics, tracing) hidden behind Setup/Close
// - Commands only see the assembled App

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/richinex/conductor/config"
	"github.com/richinex/conductor/internal/logging"
	"github.com/richinex/conductor/llm"
	"github.com/richinex/conductor/metrics"
	"github.com/richinex/conductor/orchestration"
	"github.com/richinex/conductor/storage"
	"github.com/richinex/conductor/tracing"
)

// Version is reported in traces and by the version command.
var Version = "dev"

// Options holds global CLI options.
type Options struct {
	ConfigPath string
	// Provider overrides llm.default.
	Provider string
	// LogLevel overrides logging.level.
	LogLevel string
	Verbose  bool
	// JSON prints results as JSON instead of text.
	JSON bool
}

// App is the assembled conductor stack.
type App struct {
	Settings  config.Settings
	Registry  *llm.Registry
	Conductor *orchestration.Conductor
	Metrics   *metrics.Collector
	Logger    *zap.Logger
	Out       io.Writer
	Err       io.Writer
	Opts      Options

	store    storage.Storage
	shutdown tracing.ShutdownFunc
}

// Setup loads settings and builds every component.
func Setup(ctx context.Context, opts Options) (*App, error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.Provider != "" {
		if _, err := llm.ParseProviderType(opts.Provider); err != nil {
			return nil, fmt.Errorf("--provider must be one of %s: %w",
				strings.Join(config.SupportedProviders(), ", "), err)
		}
		settings.LLM.Default = opts.Provider
	}
	if opts.LogLevel != "" {
		settings.Logging.Level = opts.LogLevel
	} else if opts.Verbose {
		settings.Logging.Level = "debug"
	}

	logger, err := logging.New(settings.Logging.Level, settings.Logging.Format)
	if err != nil {
		return nil, err
	}

	shutdown, err := tracing.Initialize(ctx, settings.Tracing, Version, logger)
	if err != nil {
		return nil, err
	}

	collector := metrics.New()
	registry, err := settings.BuildRegistry(config.EnvKeys, collector, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	return NewApp(settings, registry, collector, logger, shutdown, opts), nil
}

// NewApp assembles an App from already-built parts. shutdown may be nil.
func NewApp(settings config.Settings, registry *llm.Registry, collector *metrics.Collector, logger *zap.Logger, shutdown tracing.ShutdownFunc, opts Options) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.New()
	}
	if shutdown == nil {
		shutdown = func(context.Context) error { return nil }
	}
	conductor := orchestration.New(registry, settings.Orchestration(),
		orchestration.WithLogger(logger.Named("conductor")),
		orchestration.WithRecorder(collector))

	return &App{
		Settings:  settings,
		Registry:  registry,
		Conductor: conductor,
		Metrics:   collector,
		Logger:    logger,
		Out:       os.Stdout,
		Err:       os.Stderr,
		Opts:      opts,
		shutdown:  shutdown,
	}
}

// Store opens the configured storage backend on first use.
func (a *App) Store() (storage.Storage, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := storage.Open(a.Settings.Storage.Backend, a.Settings.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	a.store = s
	return s, nil
}

// UseStore replaces the storage backend.
func (a *App) UseStore(s storage.Storage) {
	a.store = s
}

// Close releases storage and flushes traces and logs.
func (a *App) Close(ctx context.Context) error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = err
		}
	}
	if err := a.shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}
	_ = a.Logger.Sync()
	return firstErr
}
