package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/winkeep/internal/config"
)

// model is the root bubbletea model for the TUI.
type model struct {
	configPath string
	result     *config.LoadResult
	loadErr    error
	daemon     Daemon

	activeTab Tab

	generalTab GeneralTab
	titlesTab  TitlesTab
	policyTab  PolicyTab

	// Save overlay
	originalConfig *config.Config
	saveOverlay    SaveOverlay

	daemonConnected bool

	width  int
	height int
}

func newModel(opts Options) model {
	m := model{
		configPath: opts.ConfigPath,
		daemon:     opts.Daemon,
		activeTab:  TabGeneral,
	}

	m.loadConfig()
	if m.result != nil {
		m.originalConfig = cloneConfig(m.result.Config)
	}
	if m.daemon != nil {
		m.daemonConnected = m.daemon.Ping() == nil
	}

	var cfg *config.Config
	if m.result != nil {
		cfg = m.result.Config
	}
	m.generalTab = NewGeneralTab(cfg, m.loadErr)
	m.titlesTab = NewTitlesTab(cfg)
	m.policyTab = NewPolicyTab(opts.Policy)
	return m
}

func (m *model) loadConfig() {
	var res *config.LoadResult
	var err error
	if m.configPath == "" {
		res, err = config.LoadWithSources()
	} else {
		res, err = config.LoadFromPath(m.configPath)
	}
	if err != nil {
		m.loadErr = err
		return
	}
	m.result = res
}

func (m model) config() *config.Config {
	if m.result == nil {
		return nil
	}
	return m.result.Config
}

// contentHeight is what is left after the status, tab and help bars.
func (m model) contentHeight() int {
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height
	sub := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
	m.generalTab, _ = m.generalTab.Update(sub)
	m.titlesTab, _ = m.titlesTab.Update(sub)
	m.policyTab, _ = m.policyTab.Update(sub)
}

// capturing reports whether the active tab has a form or text input that
// consumes every key.
func (m model) capturing() bool {
	switch m.activeTab {
	case TabGeneral:
		return m.generalTab.editing
	case TabTitles:
		return m.titlesTab.adding
	case TabPolicy:
		return m.policyTab.editing
	}
	return false
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.saveOverlay.Active() {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			prev := m.saveOverlay.phase
			m.saveOverlay = m.saveOverlay.Update(msg, m.config(), m.configPath, m.daemon, m.daemonConnected)
			if prev == savePreview && m.saveOverlay.SaveSucceeded() {
				m.originalConfig = cloneConfig(m.config())
			}
		case tea.WindowSizeMsg:
			m.resize(msg.Width, msg.Height)
		}
		return m, nil
	}

	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+s" {
		if cfg := m.config(); cfg != nil {
			m.saveOverlay.Show(m.originalConfig, cfg)
		}
		return m, nil
	}

	if m.capturing() {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		case tea.WindowSizeMsg:
			m.resize(msg.Width, msg.Height)
			return m, nil
		}
		return m.updateActive(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1":
			m.activeTab = TabGeneral
			return m, nil
		case "2":
			m.activeTab = TabTitles
			return m, nil
		case "3":
			m.activeTab = TabPolicy
			return m, nil
		}
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	}

	return m.updateActive(msg)
}

func (m model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.activeTab {
	case TabGeneral:
		m.generalTab, cmd = m.generalTab.Update(msg)
	case TabTitles:
		m.titlesTab, cmd = m.titlesTab.Update(msg)
	case TabPolicy:
		m.policyTab, cmd = m.policyTab.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.daemonConnected, m.policyTab.mode, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.width)

	used := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
	contentHeight := m.height - used
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	if m.saveOverlay.Active() {
		content = m.saveOverlay.View(m.width, contentHeight)
	} else {
		switch m.activeTab {
		case TabGeneral:
			content = m.generalTab.View()
		case TabTitles:
			content = m.titlesTab.View()
		case TabPolicy:
			content = m.policyTab.View()
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}
