package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/1broseidon/winkeep/internal/config"
	"github.com/1broseidon/winkeep/internal/ipc"
	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/settings"
)

// openStore opens the settings store named by the configuration at
// cfgPath. It is used when the daemon is not running and for keys the
// daemon picks up through its change watcher.
func openStore(ctx context.Context, cfgPath string) (*settings.Store, error) {
	res, err := loadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	return openStoreFor(ctx, res.Config)
}

func openStoreFor(ctx context.Context, cfg *config.Config) (*settings.Store, error) {
	path, err := cfg.SettingsPath()
	if err != nil {
		return nil, err
	}
	kv, err := settings.Open(ctx, cfg.Settings.Backend, path)
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}
	return settings.NewStore(kv), nil
}

// withDaemonOrStore runs viaDaemon and, when no daemon is listening, falls
// back to viaStore on the settings store directly.
func withDaemonOrStore(cfgPath string, viaDaemon func(*ipc.Client) error, viaStore func(context.Context, *settings.Store) error) error {
	err := viaDaemon(ipc.NewClient())
	if err == nil || !errors.Is(err, ipc.ErrNotRunning) {
		return err
	}

	ctx := context.Background()
	store, err := openStore(ctx, cfgPath)
	if err != nil {
		return err
	}
	defer store.Close()
	return viaStore(ctx, store)
}

func runSyncMode(args []string) int {
	fs := flag.NewFlagSet("sync-mode", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path, used when the daemon is not running")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep sync-mode [RESTORE|IGNORE]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show or set the global sync mode. RESTORE reapplies saved placement;")
		fmt.Fprintln(os.Stderr, "IGNORE keeps recording placement without moving windows.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	switch fs.NArg() {
	case 0:
		var mode model.Action
		err := withDaemonOrStore(*path,
			func(c *ipc.Client) error {
				st, err := c.GetStatus()
				if err == nil {
					mode = st.SyncMode
				}
				return err
			},
			func(ctx context.Context, s *settings.Store) error {
				var err error
				mode, err = s.SyncMode(ctx)
				return err
			})
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(mode)
		return 0
	case 1:
		mode, err := model.ParseAction(fs.Arg(0))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		err = withDaemonOrStore(*path,
			func(c *ipc.Client) error { return c.SetSyncMode(string(mode)) },
			func(ctx context.Context, s *settings.Store) error { return s.SetSyncMode(ctx, mode) })
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("sync mode: %s\n", mode)
		return 0
	default:
		fs.Usage()
		return 2
	}
}

func printOverrideUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  winkeep override list [--json]")
	fmt.Fprintln(os.Stderr, "  winkeep override set [--threshold F] [--match title,size] <app-id> <RESTORE|IGNORE>")
	fmt.Fprintln(os.Stderr, "  winkeep override remove <app-id>")
}

func runOverride(args []string) int {
	if len(args) == 0 {
		printOverrideUsage()
		return 2
	}
	switch args[0] {
	case "list":
		return runOverrideList(args[1:])
	case "set":
		return runOverrideSet(args[1:])
	case "remove":
		return runOverrideRemove(args[1:])
	case "help", "-h", "--help":
		printOverrideUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown override command: %s\n\n", args[0])
		printOverrideUsage()
		return 2
	}
}

func runOverrideList(args []string) int {
	fs := flag.NewFlagSet("override list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path, used when the daemon is not running")
	asJSON := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	var overrides model.Overrides
	err := withDaemonOrStore(*path,
		func(c *ipc.Client) error {
			var err error
			overrides, err = c.ListOverrides()
			return err
		},
		func(ctx context.Context, s *settings.Store) error {
			var err error
			overrides, err = s.Overrides(ctx)
			return err
		})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		if overrides == nil {
			overrides = model.Overrides{}
		}
		return printJSON(overrides)
	}
	if len(overrides) == 0 {
		fmt.Println("no overrides")
		return 0
	}
	for _, line := range formatOverrides(overrides) {
		fmt.Println(line)
	}
	return 0
}

func formatOverrides(overrides model.Overrides) []string {
	apps := make([]string, 0, len(overrides))
	for app := range overrides {
		apps = append(apps, app)
	}
	sort.Strings(apps)

	lines := make([]string, 0, len(apps))
	for _, app := range apps {
		rule := overrides[app]
		line := fmt.Sprintf("%s: %s", app, rule.Action)
		if rule.Threshold != nil {
			line += " threshold=" + strconv.FormatFloat(*rule.Threshold, 'g', -1, 64)
		}
		if len(rule.MatchProperties) > 0 {
			line += " match=" + strings.Join(rule.MatchProperties, ",")
		}
		lines = append(lines, line)
	}
	return lines
}

func runOverrideSet(args []string) int {
	fs := flag.NewFlagSet("override set", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path, used when the daemon is not running")
	threshold := fs.String("threshold", "", "Minimum match confidence (0-1) required to restore")
	match := fs.String("match", "", "Comma-separated properties scored for confidence: title, size")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 2 {
		printOverrideUsage()
		return 2
	}

	appID := strings.TrimSpace(fs.Arg(0))
	rule, err := buildRule(fs.Arg(1), *threshold, *match)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid override: %v\n", err)
		return 2
	}
	if appID == "" {
		fmt.Fprintln(os.Stderr, "app-id is required")
		return 2
	}

	err = withDaemonOrStore(*path,
		func(c *ipc.Client) error { return c.SetOverride(appID, rule) },
		func(ctx context.Context, s *settings.Store) error { return s.SetOverride(ctx, appID, rule) })
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func buildRule(action, threshold, match string) (model.OverrideRule, error) {
	a, err := model.ParseAction(action)
	if err != nil {
		return model.OverrideRule{}, err
	}
	rule := model.OverrideRule{Action: a}
	if threshold != "" {
		v, err := strconv.ParseFloat(threshold, 64)
		if err != nil {
			return model.OverrideRule{}, fmt.Errorf("threshold %q is not a number", threshold)
		}
		rule.Threshold = &v
	}
	for _, p := range strings.Split(match, ",") {
		if p = strings.TrimSpace(strings.ToLower(p)); p != "" {
			rule.MatchProperties = append(rule.MatchProperties, p)
		}
	}
	if err := rule.Validate(); err != nil {
		return model.OverrideRule{}, err
	}
	return rule, nil
}

func runOverrideRemove(args []string) int {
	fs := flag.NewFlagSet("override remove", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path, used when the daemon is not running")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		printOverrideUsage()
		return 2
	}

	appID := fs.Arg(0)
	var removed bool
	err := withDaemonOrStore(*path,
		func(c *ipc.Client) error {
			var err error
			removed, err = c.RemoveOverride(appID)
			return err
		},
		func(ctx context.Context, s *settings.Store) error {
			var err error
			removed, err = s.RemoveOverride(ctx, appID)
			return err
		})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if !removed {
		fmt.Fprintf(os.Stderr, "no override for %s\n", appID)
		return 1
	}
	return 0
}

func runForget(args []string) int {
	fs := flag.NewFlagSet("forget", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path, used when the daemon is not running")
	title := fs.String("title", "", "Only forget the record saved under this exact title")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep forget [--title TITLE] <app-id>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Delete saved placement records of an application.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 2
	}

	appID := fs.Arg(0)
	var n int
	err := withDaemonOrStore(*path,
		func(c *ipc.Client) error {
			var err error
			n, err = c.Forget(appID, *title)
			return err
		},
		func(ctx context.Context, s *settings.Store) error {
			var err error
			n, err = forgetSaved(ctx, s, appID, *title)
			return err
		})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("forgot %d record(s)\n", n)
	return 0
}

func forgetSaved(ctx context.Context, s *settings.Store, appID, title string) (int, error) {
	saved, err := s.SavedWindows(ctx)
	if err != nil {
		return 0, err
	}
	var n int
	if title == "" {
		n = saved.DeleteApp(appID)
	} else if saved.Delete(model.Identity{AppID: appID, Fingerprint: title}) {
		n = 1
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.PutSavedWindows(ctx, saved)
}

func runDebug(args []string) int {
	fs := flag.NewFlagSet("debug", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/winkeep/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep debug [on|off]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show or set the debug-logging flag. A running daemon picks up the")
		fmt.Fprintln(os.Stderr, "change without a restart.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() > 1 {
		fs.Usage()
		return 2
	}

	ctx := context.Background()
	store, err := openStore(ctx, *path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer store.Close()

	if fs.NArg() == 0 {
		on, err := store.DebugLogging(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Println(onOff(on))
		return 0
	}

	on, err := parseOnOff(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	if err := store.SetDebugLogging(ctx, on); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("debug logging: %s\n", onOff(on))
	return 0
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes":
		return true, nil
	case "off", "false", "0", "no":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
