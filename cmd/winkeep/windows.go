package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/1broseidon/winkeep/internal/ipc"
)

func runWindows(args []string) int {
	fs := flag.NewFlagSet("windows", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	appID := fs.String("app", "", "Only list windows of this application id")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep windows [--app APP_ID] [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List windows tracked by the daemon.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "windows takes no arguments")
		fs.Usage()
		return 2
	}

	data, err := ipc.NewClient().ListWindows()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	windows := filterWindows(data.Windows, *appID)
	if *asJSON {
		return printJSON(windows)
	}
	if len(windows) == 0 {
		fmt.Println("no tracked windows")
		return 0
	}

	width := outputWidth()
	fmt.Printf("%-10s %-10s %-10s %-24s %s\n", "ID", "PHASE", "MONITOR", "APP", "TITLE")
	for _, w := range windows {
		line := fmt.Sprintf("%#-10x %-10s %-10s %-24s %s",
			w.ID, w.Phase, orDash(w.Connector), fit(w.AppID, 24), w.Title)
		fmt.Println(fit(line, width))
	}
	return 0
}

func filterWindows(windows []ipc.WindowInfo, appID string) []ipc.WindowInfo {
	if appID == "" {
		return windows
	}
	out := make([]ipc.WindowInfo, 0, len(windows))
	for _, w := range windows {
		if w.AppID == appID {
			out = append(out, w)
		}
	}
	return out
}

func runMonitors(args []string) int {
	fs := flag.NewFlagSet("monitors", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	asJSON := fs.Bool("json", false, "Print JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep monitors [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List monitors as the daemon last observed them.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "monitors takes no arguments")
		fs.Usage()
		return 2
	}

	data, err := ipc.NewClient().GetMonitors()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *asJSON {
		return printJSON(data.Monitors)
	}
	for _, m := range data.Monitors {
		primary := ""
		if m.Primary {
			primary = " (primary)"
		}
		fmt.Printf("%d: %s %dx%d+%d+%d%s\n", m.Index, m.Connector, m.Width, m.Height, m.X, m.Y, primary)
	}
	return 0
}

func runMove(args []string) int {
	fs := flag.NewFlagSet("move", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: winkeep move <window-id> <connector>")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Move a tracked window to the monitor on <connector> and remember the")
		fmt.Fprintln(os.Stderr, "choice. Window ids accept decimal or 0x-prefixed hex.")
	}
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return 2
	}

	id, err := parseWindowID(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	connector := strings.TrimSpace(fs.Arg(1))
	if connector == "" {
		fmt.Fprintln(os.Stderr, "connector is required")
		return 2
	}

	if err := ipc.NewClient().MoveToMonitor(id, connector); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func parseWindowID(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid window id %q", s)
	}
	return uint32(v), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
