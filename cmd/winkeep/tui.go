package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/1broseidon/winkeep/internal/ipc"
	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/settings"
	"github.com/1broseidon/winkeep/internal/tui"
)

func runTUI(args []string) int {
	fs := flag.NewFlagSet("tui", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path (default: ~/.config/winkeep/config.yaml)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep tui [--config PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Edit the configuration, sync mode and overrides interactively.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	err := tui.Run(tui.Options{
		ConfigPath: *path,
		Policy:     cliPolicy{cfgPath: *path},
		Daemon:     ipc.NewClient(),
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// cliPolicy edits the sync policy through the daemon, or the settings store
// when the daemon is not running.
type cliPolicy struct {
	cfgPath string
}

func (p cliPolicy) SyncMode() (model.Action, error) {
	var mode model.Action
	err := withDaemonOrStore(p.cfgPath,
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
	return mode, err
}

func (p cliPolicy) SetSyncMode(mode model.Action) error {
	return withDaemonOrStore(p.cfgPath,
		func(c *ipc.Client) error { return c.SetSyncMode(string(mode)) },
		func(ctx context.Context, s *settings.Store) error { return s.SetSyncMode(ctx, mode) })
}

func (p cliPolicy) Overrides() (model.Overrides, error) {
	var overrides model.Overrides
	err := withDaemonOrStore(p.cfgPath,
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
	return overrides, err
}

func (p cliPolicy) SetOverride(appID string, rule model.OverrideRule) error {
	return withDaemonOrStore(p.cfgPath,
		func(c *ipc.Client) error { return c.SetOverride(appID, rule) },
		func(ctx context.Context, s *settings.Store) error { return s.SetOverride(ctx, appID, rule) })
}

func (p cliPolicy) RemoveOverride(appID string) error {
	return withDaemonOrStore(p.cfgPath,
		func(c *ipc.Client) error {
			_, err := c.RemoveOverride(appID)
			return err
		},
		func(ctx context.Context, s *settings.Store) error {
			_, err := s.RemoveOverride(ctx, appID)
			return err
		})
}
