// Package bootstrap wires all dependencies and starts the client.
package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/artpar/monoclient/adapters/clock"
	"github.com/artpar/monoclient/adapters/indicator"
	"github.com/artpar/monoclient/adapters/inspector"
	"github.com/artpar/monoclient/adapters/metrics"
	"github.com/artpar/monoclient/adapters/script"
	"github.com/artpar/monoclient/adapters/transport"
	"github.com/artpar/monoclient/app"
	"github.com/artpar/monoclient/config"
	"github.com/artpar/monoclient/domain/dom"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// Options configures application assembly.
type Options struct {
	// ConfigPath is watched for changes when it exists. Without it the
	// configuration comes from MONO_* variables.
	ConfigPath string
	Version    string
	// LogOutput defaults to stdout.
	LogOutput  io.Writer
	HTTPClient *http.Client
	// Clock defaults to the wall clock.
	Clock clock.Clock
}

// App represents the running client.
type App struct {
	Logger     zerolog.Logger
	Config     *config.Config
	Holder     *config.Holder
	Metrics    *metrics.Collector
	Registry   *prometheus.Registry
	Client     *app.Client
	HTTPServer *http.Server

	clock         clock.Clock
	mu            sync.Mutex
	inspectorAddr string
}

// New loads configuration and assembles the application.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return nil, err
			}
			a, err := NewFromConfig(ctx, cfg, opts)
			if err != nil {
				return nil, err
			}
			holder, err := config.NewHolder(opts.ConfigPath, a.Logger.With().Str("component", "config").Logger())
			if err != nil {
				return nil, err
			}
			a.attachHolder(holder)
			return a, nil
		}
	}

	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(ctx, cfg, opts)
}

// NewFromConfig assembles the application from a loaded configuration. It
// fetches the page unless a document file is configured.
func NewFromConfig(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger := setupLogger(cfg.Logging, out)

	logger.Info().Str("page", cfg.Page.URL).Msg("initializing monoclient")

	a := &App{
		Logger: logger,
		Config: cfg,
		clock:  opts.Clock,
	}
	if a.clock == nil {
		a.clock = clock.Real{}
	}

	if cfg.Metrics.Enabled {
		a.Registry = prometheus.NewRegistry()
		a.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(a.Registry)
		logger.Info().Msg("prometheus metrics enabled")
	}

	tr := transport.New(transport.Config{
		HTTPClient: opts.HTTPClient,
		Headers:    cfg.Transport.Headers,
		Logger:     logger,
	})

	doc, err := loadDocument(ctx, cfg.Page, tr)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	eval, err := script.New(doc, cfg.Page.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("init script: %w", err)
	}

	a.Client, err = app.NewClient(app.ClientConfig{
		Document:     doc,
		Transport:    tr,
		Evaluator:    eval,
		Indicator:    indicator.NewOpacity(doc),
		Sleeper:      a.clock,
		Clock:        a.clock,
		PageURL:      cfg.Page.URL,
		EventTimeout: cfg.Transport.EventTimeout,
		RetryBackoff: cfg.Sync.RetryBackoff,
		Metrics:      a.Metrics,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init client: %w", err)
	}

	if cfg.Inspector.Enabled {
		a.initInspector(opts.Version)
	}

	return a, nil
}

func (a *App) initInspector(version string) {
	icfg := inspector.Config{
		Client:  a.Client,
		Version: version,
		Clock:   a.clock,
		Logger:  a.Logger,
	}
	if a.Registry != nil {
		icfg.Gatherer = a.Registry
	}

	a.HTTPServer = &http.Server{
		Addr:              a.Config.Inspector.Addr,
		Handler:           inspector.NewRouter(icfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (a *App) attachHolder(h *config.Holder) {
	a.Holder = h
	h.OnChange(a.applyConfig)
	h.OnError(func(error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})
}

// applyConfig takes the fields that can change while running.
func (a *App) applyConfig(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if a.Metrics != nil {
		a.Metrics.ConfigReloads.Inc()
	}
}

// Run serves the inspector and runs the client until the sync loop stops,
// ctx is done, or the process receives SIGINT or SIGTERM. With the
// inspector enabled the process keeps serving after the loop stops.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.Holder != nil {
		if err := a.Holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.Holder.WatchSignals()
	}

	serverErr := make(chan error, 1)
	if a.HTTPServer != nil {
		ln, err := net.Listen("tcp", a.HTTPServer.Addr)
		if err != nil {
			return fmt.Errorf("listen inspector: %w", err)
		}
		a.mu.Lock()
		a.inspectorAddr = ln.Addr().String()
		a.mu.Unlock()

		go func() {
			a.Logger.Info().Str("addr", ln.Addr().String()).Msg("starting inspector")
			if err := a.HTTPServer.Serve(ln); err != nil && err != http.ErrServerClosed {
				serverErr <- err
			}
		}()
	}

	clientCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	clientErr := make(chan error, 1)
	go func() {
		clientErr <- a.Client.Run(clientCtx)
	}()

	var err error
	select {
	case err = <-clientErr:
		if err == nil && a.HTTPServer != nil {
			a.Logger.Info().Str("state", a.Client.State().String()).Msg("sync stopped, inspector still serving")
			select {
			case <-ctx.Done():
			case err = <-serverErr:
				err = fmt.Errorf("inspector: %w", err)
			}
		}
	case err = <-serverErr:
		err = fmt.Errorf("inspector: %w", err)
		cancel()
		<-clientErr
	}

	if errors.Is(err, context.Canceled) {
		a.Logger.Info().Msg("shutting down")
		err = nil
	}

	if shutdownErr := a.Shutdown(); err == nil {
		err = shutdownErr
	}
	return err
}

// InspectorAddr returns the address the inspector listens on once Run has
// started it.
func (a *App) InspectorAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inspectorAddr
}

// Shutdown stops the inspector and config watchers.
func (a *App) Shutdown() error {
	if a.Holder != nil {
		a.Holder.Stop()
	}

	if a.HTTPServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown inspector: %w", err)
	}
	return nil
}

func loadDocument(ctx context.Context, page config.PageConfig, tr *transport.Client) (*dom.Document, error) {
	if page.DocumentFile != "" {
		f, err := os.Open(page.DocumentFile)
		if err != nil {
			return nil, fmt.Errorf("open document: %w", err)
		}
		defer f.Close()
		return dom.Parse(f)
	}

	body, err := tr.Fetch(ctx, page.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	return dom.Parse(bytes.NewReader(body))
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(out).With().Timestamp().Logger()
}
