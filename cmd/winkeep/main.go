package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/1broseidon/winkeep/internal/config"
	"github.com/1broseidon/winkeep/internal/daemon"
	"github.com/1broseidon/winkeep/internal/ipc"
	"github.com/1broseidon/winkeep/internal/platform"
	"github.com/1broseidon/winkeep/internal/settings"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "windows":
		os.Exit(runWindows(os.Args[2:]))
	case "monitors":
		os.Exit(runMonitors(os.Args[2:]))
	case "move":
		os.Exit(runMove(os.Args[2:]))
	case "sync-mode":
		os.Exit(runSyncMode(os.Args[2:]))
	case "override":
		os.Exit(runOverride(os.Args[2:]))
	case "saved":
		os.Exit(runSaved(os.Args[2:]))
	case "forget":
		os.Exit(runForget(os.Args[2:]))
	case "debug":
		os.Exit(runDebug(os.Args[2:]))
	case "reload":
		os.Exit(runReload(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "tui":
		os.Exit(runTUI(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: winkeep <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Start the winkeep daemon (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  reload              Reload the daemon configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  windows             List tracked windows")
	fmt.Fprintln(w, "  monitors            List connected monitors")
	fmt.Fprintln(w, "  move                Move a window to another monitor")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  sync-mode           Show or set the global sync mode")
	fmt.Fprintln(w, "  override list       List per-application rules")
	fmt.Fprintln(w, "  override set        Set a per-application rule")
	fmt.Fprintln(w, "  override remove     Remove a per-application rule")
	fmt.Fprintln(w, "  saved               List saved placement records")
	fmt.Fprintln(w, "  forget              Delete saved placement for an application")
	fmt.Fprintln(w, "  debug               Show or toggle debug logging")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "  tui                 Edit configuration and policy interactively")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'winkeep <command> --help' for command-specific options.")
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/winkeep/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep daemon [--config PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the placement daemon in the foreground. SIGHUP reloads the config.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, err := loadConfig(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	cfg := res.Config

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settingsPath, err := cfg.SettingsPath()
	if err != nil {
		logger.Error("failed to resolve settings path", "error", err)
		return 1
	}
	kv, err := settings.Open(ctx, cfg.Settings.Backend, settingsPath)
	if err != nil {
		logger.Error("failed to open settings", "backend", cfg.Settings.Backend, "path", settingsPath, "error", err)
		return 1
	}
	store := settings.NewStore(kv)
	defer store.Close()

	backend, err := platform.NewLinuxBackendFromDisplay()
	if err != nil {
		logger.Error("failed to connect to display", "error", err)
		return 1
	}
	defer backend.Disconnect()

	configPath := *path
	if configPath == "" {
		configPath, _ = config.DefaultConfigPath()
	}
	d, err := daemon.New(ctx, daemon.Options{
		Config:       cfg,
		ConfigPath:   configPath,
		Display:      backend,
		Store:        store,
		SettingsPath: settingsPath,
		Logger:       logger,
		Level:        level,
	})
	if err != nil {
		logger.Error("failed to create daemon", "error", err)
		return 1
	}

	if err := d.Run(ctx); err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(os.Stderr, "winkeep daemon is already running")
			return 1
		}
		logger.Error("daemon failed", "error", err)
		return 1
	}
	return 0
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep status [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "status takes no arguments")
		fs.Usage()
		return 2
	}

	client := ipc.NewClient()
	status, err := client.GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(status)
	}
	fmt.Printf("daemon_running:  %v\n", status.DaemonRunning)
	fmt.Printf("sync_mode:       %s\n", status.SyncMode)
	fmt.Printf("debug_logging:   %v\n", status.DebugLogging)
	fmt.Printf("monitors:        %s\n", joinOrNone(status.Monitors))
	fmt.Printf("tracked_windows: %d\n", status.TrackedWindows)
	phases := make([]string, 0, len(status.Phases))
	for phase := range status.Phases {
		phases = append(phases, phase)
	}
	sort.Strings(phases)
	for _, phase := range phases {
		fmt.Printf("  %-14s %d\n", phase+":", status.Phases[phase])
	}
	fmt.Printf("saved_records:   %d\n", status.SavedRecords)
	fmt.Printf("pending_save:    %v\n", status.PendingSave)
	fmt.Printf("settings_path:   %s\n", status.SettingsPath)
	fmt.Printf("uptime_seconds:  %d\n", status.UptimeSeconds)
	return 0
}

func runReload(args []string) int {
	fs := flag.NewFlagSet("reload", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep reload")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Ask the daemon to reread its configuration file.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	if err := ipc.NewClient().Reload(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println("config reloaded")
	return 0
}

func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		return config.LoadWithSources()
	}
	return config.LoadFromPath(path)
}
