package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/winkeep/internal/config"
)

// GeneralTab shows and edits the daemon settings.
type GeneralTab struct {
	cfg     *config.Config
	loadErr error

	width  int
	height int

	editing bool
	form    *huh.Form

	// Form-bound values (strings for huh, converted on submit)
	fLogLevel         string
	fBackend          string
	fSettingsPath     string
	fSettleDelay      string
	fGenericTimeout   string
	fDriftTolerance   string
	fMaxDriftAttempts string
	fMinTitleLength   string
	fSaveInterval     string
	fSweepInterval    string
	fHotkeyNext       string
	fHotkeyPrevious   string
}

func NewGeneralTab(cfg *config.Config, loadErr error) GeneralTab {
	return GeneralTab{cfg: cfg, loadErr: loadErr}
}

func (g GeneralTab) Update(msg tea.Msg) (GeneralTab, tea.Cmd) {
	if g.editing {
		return g.updateEditing(msg)
	}
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "e" && g.cfg != nil {
			g.startEditing()
			return g, g.form.Init()
		}
	case tea.WindowSizeMsg:
		g.width = msg.Width
		g.height = msg.Height
	}
	return g, nil
}

func (g GeneralTab) updateEditing(msg tea.Msg) (GeneralTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			g.editing = false
			g.form = nil
			return g, nil
		}
	case tea.WindowSizeMsg:
		g.width = msg.Width
		g.height = msg.Height
	}

	form, cmd := g.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		g.form = f
	}
	if g.form.State == huh.StateCompleted {
		g.applyForm()
		g.editing = false
		g.form = nil
		return g, nil
	}
	return g, cmd
}

func (g *GeneralTab) fillForm() {
	cfg := g.cfg
	g.fLogLevel = cfg.LogLevel
	g.fBackend = cfg.Settings.Backend
	g.fSettingsPath = cfg.Settings.Path
	g.fSettleDelay = cfg.SettleDelay.String()
	g.fGenericTimeout = cfg.GenericTimeout.String()
	g.fDriftTolerance = strconv.Itoa(cfg.DriftTolerance)
	g.fMaxDriftAttempts = strconv.Itoa(cfg.MaxDriftAttempts)
	g.fMinTitleLength = strconv.Itoa(cfg.MinSpecificTitleLength)
	g.fSaveInterval = cfg.SaveInterval.String()
	g.fSweepInterval = cfg.SweepInterval.String()
	g.fHotkeyNext = cfg.Hotkeys.MoveToNextMonitor
	g.fHotkeyPrevious = cfg.Hotkeys.MoveToPreviousMonitor
}

func (g *GeneralTab) startEditing() {
	g.fillForm()

	w := g.width - 4
	if w < 40 {
		w = 40
	}

	g.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("log_level").
				Title("Log Level").
				Options(huh.NewOptions("debug", "info", "warning", "error")...).
				Value(&g.fLogLevel),
			huh.NewInput().
				Key("settle_delay").
				Title("Settle Delay").
				Description("Wait before checking a restored window").
				Validate(validateDuration(time.Millisecond)).
				Value(&g.fSettleDelay),
			huh.NewInput().
				Key("generic_timeout").
				Title("Generic Title Timeout").
				Description("How long a generic title may stay before the wildcard is used").
				Validate(validateDuration(time.Millisecond)).
				Value(&g.fGenericTimeout),
			huh.NewInput().
				Key("drift_tolerance").
				Title("Drift Tolerance").
				Description("Pixels a settled window may be off its target").
				Validate(validateInt(0)).
				Value(&g.fDriftTolerance),
			huh.NewInput().
				Key("max_drift_attempts").
				Title("Max Drift Attempts").
				Validate(validateInt(1)).
				Value(&g.fMaxDriftAttempts),
			huh.NewInput().
				Key("min_specific_title_length").
				Title("Min Specific Title Length").
				Validate(validateInt(1)).
				Value(&g.fMinTitleLength),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("settings.backend").
				Title("Settings Backend").
				Options(huh.NewOptions("file", "sqlite")...).
				Value(&g.fBackend),
			huh.NewInput().
				Key("settings.path").
				Title("Settings Path").
				Description("Empty uses ~/.config/winkeep").
				Value(&g.fSettingsPath),
			huh.NewInput().
				Key("save_interval").
				Title("Save Interval").
				Validate(validateDuration(time.Millisecond)).
				Value(&g.fSaveInterval),
			huh.NewInput().
				Key("sweep_interval").
				Title("Sweep Interval").
				Validate(validateDuration(time.Second)).
				Value(&g.fSweepInterval),
			huh.NewInput().
				Key("hotkeys.move_to_next_monitor").
				Title("Hotkey: Next Monitor").
				Description("xgbutil keybind, empty disables").
				Value(&g.fHotkeyNext),
			huh.NewInput().
				Key("hotkeys.move_to_previous_monitor").
				Title("Hotkey: Previous Monitor").
				Value(&g.fHotkeyPrevious),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)

	g.editing = true
}

// applyForm copies the form values into the config. The inputs are
// validated, so a parse failure leaves the old value.
func (g *GeneralTab) applyForm() {
	cfg := g.cfg
	if cfg == nil {
		return
	}
	if g.fLogLevel != "" {
		cfg.LogLevel = g.fLogLevel
	}
	if g.fBackend != "" {
		cfg.Settings.Backend = g.fBackend
	}
	cfg.Settings.Path = strings.TrimSpace(g.fSettingsPath)

	durations := []struct {
		in  string
		dst *time.Duration
	}{
		{g.fSettleDelay, &cfg.SettleDelay},
		{g.fGenericTimeout, &cfg.GenericTimeout},
		{g.fSaveInterval, &cfg.SaveInterval},
		{g.fSweepInterval, &cfg.SweepInterval},
	}
	for _, d := range durations {
		if v, err := time.ParseDuration(strings.TrimSpace(d.in)); err == nil && v > 0 {
			*d.dst = v
		}
	}

	ints := []struct {
		in  string
		min int
		dst *int
	}{
		{g.fDriftTolerance, 0, &cfg.DriftTolerance},
		{g.fMaxDriftAttempts, 1, &cfg.MaxDriftAttempts},
		{g.fMinTitleLength, 1, &cfg.MinSpecificTitleLength},
	}
	for _, n := range ints {
		if v, err := strconv.Atoi(strings.TrimSpace(n.in)); err == nil && v >= n.min {
			*n.dst = v
		}
	}

	cfg.Hotkeys.MoveToNextMonitor = strings.TrimSpace(g.fHotkeyNext)
	cfg.Hotkeys.MoveToPreviousMonitor = strings.TrimSpace(g.fHotkeyPrevious)
}

func validateDuration(min time.Duration) func(string) error {
	return func(s string) error {
		v, err := time.ParseDuration(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("not a duration (e.g. 500ms, 2s)")
		}
		if v < min {
			return fmt.Errorf("must be at least %s", min)
		}
		return nil
	}
}

func validateInt(min int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("not a number")
		}
		if v < min {
			return fmt.Errorf("must be >= %d", min)
		}
		return nil
	}
}

func (g GeneralTab) View() string {
	if g.editing && g.form != nil {
		return g.viewEditing()
	}
	return g.viewDisplay()
}

func (g GeneralTab) viewDisplay() string {
	cfg := g.cfg
	if cfg == nil {
		msg := "No config loaded"
		if g.loadErr != nil {
			msg += "\n\n" + errStyle.Render(g.loadErr.Error())
		}
		return centered(msg, g.width, g.height)
	}

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Width(26).
		Align(lipgloss.Right).
		PaddingRight(2)
	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Bold(true)

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	lines := []string{
		"",
		row("Log Level", cfg.LogLevel),
		row("Settings Backend", cfg.Settings.Backend),
		row("Settings Path", displayOrDefault(cfg.Settings.Path, "(default)")),
		"",
		row("Settle Delay", cfg.SettleDelay.String()),
		row("Generic Title Timeout", cfg.GenericTimeout.String()),
		row("Drift Tolerance", fmt.Sprintf("%d px", cfg.DriftTolerance)),
		row("Max Drift Attempts", strconv.Itoa(cfg.MaxDriftAttempts)),
		row("Min Specific Title Length", strconv.Itoa(cfg.MinSpecificTitleLength)),
		"",
		row("Save Interval", cfg.SaveInterval.String()),
		row("Sweep Interval", cfg.SweepInterval.String()),
		"",
		row("Next Monitor", displayOrDefault(cfg.Hotkeys.MoveToNextMonitor, "(disabled)")),
		row("Previous Monitor", displayOrDefault(cfg.Hotkeys.MoveToPreviousMonitor, "(disabled)")),
		"",
		dimStyle.Render("  Press 'e' to edit settings"),
	}

	return lipgloss.NewStyle().
		Width(g.width).
		Height(g.height).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

func (g GeneralTab) viewEditing() string {
	header := lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Render("Editing General Settings") +
		dimStyle.Render("  (esc to cancel)")

	return lipgloss.NewStyle().
		Width(g.width).
		Height(g.height).
		Padding(1, 2).
		Render(header + "\n\n" + g.form.View())
}

func displayOrDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
