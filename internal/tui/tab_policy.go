package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/winkeep/internal/model"
)

// Policy reads and writes the sync mode and per-application overrides.
// Changes take effect immediately rather than on ctrl-s.
type Policy interface {
	SyncMode() (model.Action, error)
	SetSyncMode(mode model.Action) error
	Overrides() (model.Overrides, error)
	SetOverride(appID string, rule model.OverrideRule) error
	RemoveOverride(appID string) error
}

type overrideItem struct {
	appID string
	rule  model.OverrideRule
}

func (i overrideItem) Title() string { return i.appID }

func (i overrideItem) Description() string {
	parts := []string{string(i.rule.Action)}
	if i.rule.Threshold != nil {
		parts = append(parts, "threshold "+strconv.FormatFloat(*i.rule.Threshold, 'g', -1, 64))
	}
	if len(i.rule.MatchProperties) > 0 {
		parts = append(parts, "match "+strings.Join(i.rule.MatchProperties, ","))
	}
	return strings.Join(parts, " | ")
}

func (i overrideItem) FilterValue() string { return i.appID }

// PolicyTab shows the sync mode and edits overrides.
type PolicyTab struct {
	policy    Policy
	mode      model.Action
	overrides model.Overrides
	lastErr   error

	list   list.Model
	width  int
	height int

	editing bool
	form    *huh.Form

	fAppID     string
	fAction    string
	fThreshold string
	fMatch     string
}

func NewPolicyTab(p Policy) PolicyTab {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Overrides"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)

	t := PolicyTab{policy: p, list: l}
	t.refresh()
	return t
}

// refresh reloads mode and overrides from the policy backend.
func (t *PolicyTab) refresh() {
	if t.policy == nil {
		return
	}
	mode, err := t.policy.SyncMode()
	if err != nil {
		t.lastErr = err
		return
	}
	overrides, err := t.policy.Overrides()
	if err != nil {
		t.lastErr = err
		return
	}
	t.mode = mode
	t.overrides = overrides
	t.list.SetItems(buildOverrideItems(overrides))
}

func (t PolicyTab) Update(msg tea.Msg) (PolicyTab, tea.Cmd) {
	if t.editing {
		return t.updateEditing(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height
		t.list.SetSize(t.listWidth(), t.listHeight())
		return t, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "m":
			t.toggleMode()
			return t, nil
		case "a":
			t.startEditing(overrideItem{rule: model.OverrideRule{Action: model.ActionIgnore}})
			return t, t.form.Init()
		case "e", "enter":
			if item, ok := t.list.SelectedItem().(overrideItem); ok {
				t.startEditing(item)
				return t, t.form.Init()
			}
			return t, nil
		case "x", "delete":
			if item, ok := t.list.SelectedItem().(overrideItem); ok {
				t.run(func() error { return t.policy.RemoveOverride(item.appID) })
			}
			return t, nil
		case "r":
			t.lastErr = nil
			t.refresh()
			return t, nil
		}
	}

	var cmd tea.Cmd
	t.list, cmd = t.list.Update(msg)
	return t, cmd
}

func (t *PolicyTab) toggleMode() {
	next := model.ActionIgnore
	if t.mode == model.ActionIgnore {
		next = model.ActionRestore
	}
	t.run(func() error { return t.policy.SetSyncMode(next) })
}

// run applies a change through the policy and reloads the view from it.
func (t *PolicyTab) run(change func() error) {
	if t.policy == nil {
		return
	}
	if err := change(); err != nil {
		t.lastErr = err
		return
	}
	t.lastErr = nil
	t.refresh()
}

func (t *PolicyTab) startEditing(item overrideItem) {
	t.fAppID = item.appID
	t.fAction = string(item.rule.Action)
	t.fThreshold = ""
	if item.rule.Threshold != nil {
		t.fThreshold = strconv.FormatFloat(*item.rule.Threshold, 'g', -1, 64)
	}
	t.fMatch = strings.Join(item.rule.MatchProperties, ",")

	w := t.width - 4
	if w < 40 {
		w = 40
	}
	t.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("app_id").
				Title("Application ID").
				Description("WM_CLASS class, e.g. org.gnome.TextEditor").
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("required")
					}
					return nil
				}).
				Value(&t.fAppID),
			huh.NewSelect[string]().
				Key("action").
				Title("Action").
				Options(huh.NewOptions(string(model.ActionRestore), string(model.ActionIgnore))...).
				Value(&t.fAction),
			huh.NewInput().
				Key("threshold").
				Title("Threshold").
				Description("Minimum match confidence 0-1, empty for none").
				Validate(func(s string) error {
					_, err := parseThreshold(s)
					return err
				}).
				Value(&t.fThreshold),
			huh.NewInput().
				Key("match").
				Title("Match Properties").
				Description("Comma-separated: title, size").
				Validate(func(s string) error {
					_, err := buildOverrideRule(model.ActionRestore, "", s)
					return err
				}).
				Value(&t.fMatch),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)
	t.editing = true
}

func (t PolicyTab) updateEditing(msg tea.Msg) (PolicyTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			t.editing = false
			t.form = nil
			return t, nil
		}
	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height
	}

	form, cmd := t.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		t.form = f
	}
	if t.form.State == huh.StateCompleted {
		t.editing = false
		t.form = nil
		t.submit()
		return t, nil
	}
	return t, cmd
}

func (t *PolicyTab) submit() {
	appID := strings.TrimSpace(t.fAppID)
	rule, err := buildOverrideRule(model.Action(t.fAction), t.fThreshold, t.fMatch)
	if err != nil {
		t.lastErr = err
		return
	}
	t.run(func() error { return t.policy.SetOverride(appID, rule) })
}

func parseThreshold(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number")
	}
	return &v, nil
}

func buildOverrideRule(action model.Action, threshold, match string) (model.OverrideRule, error) {
	rule := model.OverrideRule{Action: action}
	th, err := parseThreshold(threshold)
	if err != nil {
		return rule, err
	}
	rule.Threshold = th
	for _, p := range strings.Split(match, ",") {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			rule.MatchProperties = append(rule.MatchProperties, p)
		}
	}
	return rule, rule.Validate()
}

func buildOverrideItems(overrides model.Overrides) []list.Item {
	apps := make([]string, 0, len(overrides))
	for app := range overrides {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	items := make([]list.Item, 0, len(apps))
	for _, app := range apps {
		items = append(items, overrideItem{appID: app, rule: overrides[app]})
	}
	return items
}

func (t PolicyTab) listWidth() int {
	w := t.width / 2
	if w < 24 {
		w = 24
	}
	return w
}

func (t PolicyTab) listHeight() int {
	h := t.height - 3
	if h < 1 {
		h = 1
	}
	return h
}

func (t PolicyTab) View() string {
	if t.width == 0 || t.height == 0 {
		return ""
	}
	if t.editing && t.form != nil {
		header := lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Render("Edit Override") +
			dimStyle.Render("  (esc to cancel)")
		return lipgloss.NewStyle().
			Width(t.width).
			Height(t.height).
			Padding(1, 2).
			Render(header + "\n\n" + t.form.View())
	}

	modeStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	if t.mode == model.ActionIgnore {
		modeStyle = modeStyle.Foreground(lipgloss.Color("214"))
	}
	header := lipgloss.NewStyle().Padding(0, 1).Render(
		"Sync mode: " + modeStyle.Render(displayOrDefault(string(t.mode), "?")) +
			dimStyle.Render("  (m: toggle)"))
	if t.lastErr != nil {
		header += "\n" + lipgloss.NewStyle().Padding(0, 1).Render(errStyle.Render(t.lastErr.Error()))
	}

	left := lipgloss.NewStyle().Width(t.listWidth()).Render(t.list.View())
	if len(t.overrides) == 0 {
		left = centered("No overrides", t.listWidth(), t.listHeight())
	}
	right := renderPolicyHelp(t.width-t.listWidth(), t.listHeight())
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	return lipgloss.JoinVertical(lipgloss.Left, header, "", body)
}

func renderPolicyHelp(width, height int) string {
	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Render("Sync policy"),
		"",
		"RESTORE moves a new window to its saved placement.",
		"IGNORE keeps recording placement without moving it.",
		"",
		"An override replaces the global mode for one application.",
		"A threshold demotes fallback matches scored below it",
		"on the chosen match properties.",
		"",
		lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true).
			Render("a: add  e/enter: edit  x: remove  r: refresh"),
	}
	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Padding(1, 2).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(lipgloss.Color("236")).
		Render(strings.Join(lines, "\n"))
}
