// Package daemon wires the placement engine to the display, the settings
// store and the control surfaces, and runs them until shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/1broseidon/winkeep/internal/config"
	"github.com/1broseidon/winkeep/internal/engine"
	"github.com/1broseidon/winkeep/internal/hotkeys"
	"github.com/1broseidon/winkeep/internal/ipc"
	"github.com/1broseidon/winkeep/internal/platform"
	"github.com/1broseidon/winkeep/internal/policy"
	"github.com/1broseidon/winkeep/internal/settings"
	"github.com/1broseidon/winkeep/internal/title"
)

// Display is the window system connection the daemon drives.
type Display interface {
	platform.WindowManager
	platform.EventSource
	// Watch starts delivering events to subscribers. It is called once,
	// before EventLoop.
	Watch() error
	// EventLoop blocks until Quit.
	EventLoop()
	Quit()
}

// Options configure a daemon.
type Options struct {
	Config *config.Config
	// ConfigPath is reread on reload. Empty means the default location.
	ConfigPath string
	Display    Display
	Store      *settings.Store
	// SettingsPath is reported in status output.
	SettingsPath string
	// SocketPath overrides the runtime socket location.
	SocketPath string
	Logger     *slog.Logger
	// Level is raised to debug by log_level or the debug-logging setting.
	Level *slog.LevelVar
}

// Daemon runs the engine and its surrounding subsystems.
type Daemon struct {
	display      Display
	store        *settings.Store
	settingsPath string
	configPath   string
	socketPath   string
	log          *slog.Logger
	level        *slog.LevelVar

	cfgMu sync.RWMutex
	cfg   *config.Config

	eng        *engine.Engine
	reconciler *Reconciler
	hotkeys    *hotkeys.Handler
	debug      atomic.Bool
}

// New builds a daemon and its engine. The sync policy and debug flag are
// read from the store.
func New(ctx context.Context, opts Options) (*Daemon, error) {
	if opts.Display == nil {
		return nil, errors.New("daemon: display is required")
	}
	if opts.Store == nil {
		return nil, errors.New("daemon: settings store is required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := opts.Level
	if level == nil {
		level = new(slog.LevelVar)
	}

	d := &Daemon{
		display:      opts.Display,
		store:        opts.Store,
		settingsPath: opts.SettingsPath,
		configPath:   opts.ConfigPath,
		socketPath:   opts.SocketPath,
		log:          logger.With("component", "daemon"),
		level:        level,
		cfg:          cfg,
	}

	debug, err := d.store.DebugLogging(ctx)
	if err != nil {
		d.log.Warn("failed to read debug-logging setting", "error", err)
	}
	d.debug.Store(debug)
	d.applyLevel()

	resolver, err := d.loadResolver(ctx)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Config{
		WM:               opts.Display,
		Store:            opts.Store,
		Classifier:       title.New(cfg.MinSpecificTitleLength, cfg.GenericTitles),
		Resolver:         resolver,
		Logger:           logger,
		SettleDelay:      cfg.SettleDelay,
		GenericTimeout:   cfg.GenericTimeout,
		DriftTolerance:   cfg.DriftTolerance,
		MaxDriftAttempts: cfg.MaxDriftAttempts,
		SaveInterval:     cfg.SaveInterval,
	})
	if err != nil {
		return nil, err
	}
	d.eng = eng
	d.reconciler = NewReconciler(ReconcilerConfig{
		Interval: cfg.SweepInterval,
		Logger:   logger,
	}, opts.Display, eng.Post)
	return d, nil
}

// Run starts every subsystem and blocks until ctx is cancelled or one of
// them fails. Pending saved state is written before it returns.
func (d *Daemon) Run(ctx context.Context) error {
	unsubscribe := d.display.Subscribe(func(ev platform.Event) {
		if e, ok := engine.FromPlatform(ev); ok {
			d.eng.Post(e)
		}
	})
	defer unsubscribe()

	if err := d.eng.Start(ctx); err != nil {
		return err
	}
	if err := d.display.Watch(); err != nil {
		return fmt.Errorf("watch display: %w", err)
	}

	if h, err := hotkeys.NewHandler(d.display, d.eng); err != nil {
		d.log.Info("global hotkeys disabled", "reason", err)
	} else {
		d.hotkeys = h
		d.bindHotkeys(d.config())
	}

	var server *ipc.Server
	if d.socketPath != "" {
		server = ipc.NewServerAt(d.socketPath, d)
	} else {
		var err error
		if server, err = ipc.NewServer(d); err != nil {
			return err
		}
	}
	if err := server.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return d.eng.Run(gctx)
	})
	g.Go(func() error {
		return d.reconciler.Run(gctx)
	})
	g.Go(func() error {
		return d.store.Watch(gctx, func(key string) {
			d.onSettingChanged(gctx, key)
		})
	})
	g.Go(func() error {
		d.display.EventLoop()
		if gctx.Err() == nil {
			return errors.New("display event loop exited")
		}
		return nil
	})
	g.Go(func() error {
		return d.handleSignals(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		d.display.Quit()
		server.Stop()
		return nil
	})

	d.log.Info("daemon started", "socket", server.SocketPath(), "settings", d.settingsPath)
	err := g.Wait()
	d.log.Info("daemon stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Daemon) handleSignals(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			d.log.Info("received SIGHUP, reloading config")
			if err := d.Reload(ctx); err != nil {
				d.log.Error("config reload failed", "error", err)
			}
		}
	}
}

// Reload rereads the configuration file and applies it. The settings
// backend and path only change on restart.
func (d *Daemon) Reload(ctx context.Context) error {
	var (
		res *config.LoadResult
		err error
	)
	if d.configPath != "" {
		res, err = config.LoadFromPath(d.configPath)
	} else {
		res, err = config.LoadWithSources()
	}
	if err != nil {
		return err
	}
	cfg := res.Config

	d.cfgMu.Lock()
	prev := d.cfg
	d.cfg = cfg
	d.cfgMu.Unlock()

	if cfg.Settings != prev.Settings {
		d.log.Warn("settings backend changes take effect after restart",
			"backend", cfg.Settings.Backend,
			"path", cfg.Settings.Path)
	}

	d.applyLevel()
	d.eng.Retune(engine.Tuning{
		Classifier:       title.New(cfg.MinSpecificTitleLength, cfg.GenericTitles),
		SettleDelay:      cfg.SettleDelay,
		GenericTimeout:   cfg.GenericTimeout,
		DriftTolerance:   cfg.DriftTolerance,
		MaxDriftAttempts: cfg.MaxDriftAttempts,
		SaveInterval:     cfg.SaveInterval,
	})
	d.reconciler.SetInterval(cfg.SweepInterval)
	if cfg.Hotkeys != prev.Hotkeys {
		d.bindHotkeys(cfg)
	}

	d.log.Info("config reloaded", "files", res.Files)
	return nil
}

func (d *Daemon) bindHotkeys(cfg *config.Config) {
	if d.hotkeys == nil {
		return
	}
	if err := d.hotkeys.Bind(cfg.Hotkeys.MoveToNextMonitor, cfg.Hotkeys.MoveToPreviousMonitor); err != nil {
		d.log.Warn("failed to register hotkeys", "error", err)
	}
}

func (d *Daemon) config() *config.Config {
	d.cfgMu.RLock()
	defer d.cfgMu.RUnlock()
	return d.cfg
}

func (d *Daemon) applyLevel() {
	d.level.Set(levelFor(d.config().LogLevel, d.debug.Load()))
}

func levelFor(name string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warning", "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (d *Daemon) loadResolver(ctx context.Context) (*policy.Resolver, error) {
	mode, err := d.store.SyncMode(ctx)
	if err != nil {
		return nil, fmt.Errorf("read sync mode: %w", err)
	}
	overrides, err := d.store.Overrides(ctx)
	if err != nil {
		return nil, fmt.Errorf("read overrides: %w", err)
	}
	return policy.NewResolver(mode, overrides, nil), nil
}
