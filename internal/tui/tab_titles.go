package tui

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/winkeep/internal/config"
)

// titleItem is one configured generic title.
type titleItem struct {
	title string
}

func (i titleItem) Title() string       { return i.title }
func (i titleItem) Description() string { return "treated as generic for every application" }
func (i titleItem) FilterValue() string { return i.title }

// TitlesTab edits the extra titles the classifier treats as generic.
type TitlesTab struct {
	list   list.Model
	cfg    *config.Config
	width  int
	height int

	adding    bool
	textInput textinput.Model
}

func NewTitlesTab(cfg *config.Config) TitlesTab {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("15")).
		BorderForeground(lipgloss.Color("62"))
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("250")).
		BorderForeground(lipgloss.Color("62"))

	l := list.New(buildTitleItems(cfg), delegate, 0, 0)
	l.Title = "Generic Titles"
	l.Styles.Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62")).
		Padding(0, 1)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.KeyMap.Quit.SetEnabled(false)

	ti := textinput.New()
	ti.Placeholder = "e.g. Loading..., New Tab"
	ti.CharLimit = 128

	return TitlesTab{list: l, cfg: cfg, textInput: ti}
}

func (t TitlesTab) Update(msg tea.Msg) (TitlesTab, tea.Cmd) {
	if t.adding {
		return t.updateAdding(msg)
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height
		t.list.SetSize(t.listWidth(), t.height)
		return t, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "a":
			if t.cfg == nil {
				return t, nil
			}
			t.adding = true
			t.textInput.Reset()
			return t, t.textInput.Focus()
		case "x", "delete":
			if item, ok := t.list.SelectedItem().(titleItem); ok {
				t.removeTitle(item.title)
				t.list.SetItems(buildTitleItems(t.cfg))
			}
			return t, nil
		}
	}

	var cmd tea.Cmd
	t.list, cmd = t.list.Update(msg)
	return t, cmd
}

func (t TitlesTab) updateAdding(msg tea.Msg) (TitlesTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if value := strings.TrimSpace(t.textInput.Value()); value != "" {
				t.addTitle(value)
				t.list.SetItems(buildTitleItems(t.cfg))
			}
			t.adding = false
			t.textInput.Blur()
			return t, nil
		case "esc":
			t.adding = false
			t.textInput.Blur()
			return t, nil
		}
	case tea.WindowSizeMsg:
		t.width = msg.Width
		t.height = msg.Height
		return t, nil
	}

	var cmd tea.Cmd
	t.textInput, cmd = t.textInput.Update(msg)
	return t, cmd
}

func (t TitlesTab) listWidth() int {
	w := t.width * 2 / 5
	if w < 20 {
		w = 20
	}
	return w
}

func (t *TitlesTab) addTitle(s string) {
	if t.cfg == nil {
		return
	}
	if slices.ContainsFunc(t.cfg.GenericTitles, func(g string) bool { return strings.EqualFold(g, s) }) {
		return
	}
	t.cfg.GenericTitles = append(t.cfg.GenericTitles, s)
}

func (t *TitlesTab) removeTitle(s string) {
	if t.cfg == nil {
		return
	}
	if i := slices.Index(t.cfg.GenericTitles, s); i >= 0 {
		t.cfg.GenericTitles = slices.Delete(t.cfg.GenericTitles, i, i+1)
	}
}

func (t TitlesTab) View() string {
	if t.width == 0 || t.height == 0 {
		return ""
	}

	leftWidth := t.listWidth()
	rightWidth := t.width - leftWidth
	if rightWidth < 10 {
		rightWidth = 10
	}

	var leftContent string
	if t.adding {
		prompt := lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Render("Add generic title:") + "\n" +
			t.textInput.View() + "\n" +
			dimStyle.Render("enter: confirm  esc: cancel")
		inputBlock := lipgloss.NewStyle().Padding(0, 1).Width(leftWidth).Render(prompt)
		listHeight := t.height - lipgloss.Height(inputBlock)
		if listHeight < 1 {
			listHeight = 1
		}
		t.list.SetSize(leftWidth, listHeight)
		leftContent = inputBlock + "\n" + t.list.View()
	} else {
		leftContent = t.list.View()
	}

	left := lipgloss.NewStyle().Width(leftWidth).Height(t.height).Render(leftContent)
	right := renderTitlesHelp(t.cfg, rightWidth, t.height)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func buildTitleItems(cfg *config.Config) []list.Item {
	if cfg == nil {
		return nil
	}
	items := make([]list.Item, 0, len(cfg.GenericTitles))
	for _, s := range cfg.GenericTitles {
		items = append(items, titleItem{title: s})
	}
	return items
}

func renderTitlesHelp(cfg *config.Config, width, height int) string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Render("Title classification"))
	b.WriteString("\n\n")

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	lines := []string{
		"A window whose title is generic waits for a better one",
		"before it is matched, then falls back to the app's",
		"wildcard record.",
		"",
		"Built in: titles equal to the application name,",
		fmt.Sprintf("titles shorter than %d characters, and placeholders", cfg.MinSpecificTitleLength),
		"such as Untitled Document, New Tab and Loading...",
	}
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true).Render("a: add  x: remove  ctrl-s: save"))

	return lipgloss.NewStyle().
		Width(width).
		Height(height).
		Padding(1, 2).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(lipgloss.Color("236")).
		Render(b.String())
}
