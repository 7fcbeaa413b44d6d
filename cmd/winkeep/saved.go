package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/1broseidon/winkeep/internal/ipc"
	"github.com/1broseidon/winkeep/internal/model"
	"github.com/1broseidon/winkeep/internal/settings"
)

func runSaved(args []string) int {
	fs := flag.NewFlagSet("saved", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	path := fs.String("config", "", "Config file path, used when the daemon is not running")
	appID := fs.String("app", "", "Only list records of this application id")
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep saved [--app APP_ID] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List remembered window placements. Reads the settings store directly")
		fmt.Fprintln(os.Stderr, "when the daemon is not running.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "saved takes no arguments")
		fs.Usage()
		return 2
	}

	var records []model.SavedWindowConfig
	err := withDaemonOrStore(*path,
		func(c *ipc.Client) error {
			var err error
			records, err = c.ListSaved()
			return err
		},
		func(ctx context.Context, s *settings.Store) error {
			saved, err := s.SavedWindows(ctx)
			if err != nil {
				return err
			}
			records = saved.Records()
			return nil
		})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	records = filterSaved(records, *appID)
	if *asJSON {
		return printJSON(records)
	}
	if len(records) == 0 {
		fmt.Println("no saved windows")
		return 0
	}
	width := outputWidth()
	for _, line := range formatSaved(records, time.Now()) {
		fmt.Println(fit(line, width))
	}
	return 0
}

func filterSaved(records []model.SavedWindowConfig, appID string) []model.SavedWindowConfig {
	if appID == "" {
		return records
	}
	out := make([]model.SavedWindowConfig, 0, len(records))
	for _, rec := range records {
		if rec.ApplicationID == appID {
			out = append(out, rec)
		}
	}
	return out
}

// formatSaved renders one line per record:
//
//	firefox [*] HDMI-1 40,30 1200x800 ws=1 maximized=both seen 3 hours ago
func formatSaved(records []model.SavedWindowConfig, now time.Time) []string {
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		var b strings.Builder
		fmt.Fprintf(&b, "%s [%s] %s", rec.ApplicationID, rec.TitlePattern, orDash(rec.MonitorConnector))
		if r := rec.RelativeRect; r != nil {
			fmt.Fprintf(&b, " %d,%d %dx%d", r.X, r.Y, r.Width, r.Height)
		}
		fmt.Fprintf(&b, " ws=%d", rec.Workspace)
		if rec.Maximized != 0 {
			fmt.Fprintf(&b, " maximized=%s", rec.Maximized)
		}
		if rec.Fullscreen {
			b.WriteString(" fullscreen")
		}
		if rec.Tile != "" {
			fmt.Fprintf(&b, " tile=%s", rec.Tile)
		}
		if !rec.LastSeen.IsZero() {
			fmt.Fprintf(&b, " seen %s", humanize.RelTime(rec.LastSeen, now, "ago", "from now"))
		}
		lines = append(lines, b.String())
	}
	return lines
}
