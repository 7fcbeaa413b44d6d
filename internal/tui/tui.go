// Package tui is the interactive configuration editor started by
// "winkeep tui".
package tui

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// Daemon is the part of the IPC client the editor needs.
type Daemon interface {
	Ping() error
	Reload() error
}

type Options struct {
	// ConfigPath is the file to edit; empty means the default location.
	ConfigPath string
	Policy     Policy
	Daemon     Daemon
}

// Run starts the editor and blocks until the user quits.
func Run(opts Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	_, err := tea.NewProgram(newModel(opts), tea.WithAltScreen()).Run()
	return err
}
