package internal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/jhalter/xmpp-shell/internal/style"
)

// settingsKeyMap defines the keybindings for the settings screen
type settingsKeyMap struct {
	Tab    key.Binding
	Enter  key.Binding
	Escape key.Binding
}

func (k settingsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Escape}
}

func (k settingsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Tab, k.Enter, k.Escape}}
}

func newSettingsKeyMap() settingsKeyMap {
	return settingsKeyMap{
		Tab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
		Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Escape: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// Messages sent from SettingsScreen to parent
type SettingsSavedMsg struct {
	Host                string
	Port                int
	HighlightStyle      string
	EnableSounds        bool
	EnableNotifications bool
}

type SettingsCancelledMsg struct{}

// SettingsScreen is a self-contained BubbleTea model for editing settings
type SettingsScreen struct {
	form          *huh.Form
	width, height int
	model         *Model
	help          help.Model
	keys          settingsKeyMap

	// Form field values (bound to form inputs)
	host                string
	port                string
	highlightStyle      string
	enableSounds        bool
	enableNotifications bool
}

func validatePort(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 0 || p > 65535 {
		return fmt.Errorf("invalid port %q", s)
	}
	return nil
}

// buildSettingsForm creates a Huh form for editing settings
func buildSettingsForm(s *SettingsScreen) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("host").
				Title("Server Host").
				Description("Empty uses the JID domain's SRV records").
				Placeholder("xmpp.example.com").
				Value(&s.host),

			huh.NewInput().
				Key("port").
				Title("Server Port").
				Placeholder("5222").
				Validate(validatePort).
				Value(&s.port),

			huh.NewSelect[string]().
				Key("highlightStyle").
				Title("Highlight Style").
				Options(huh.NewOptions(styles.Names()...)...).
				Height(6).
				Value(&s.highlightStyle),

			huh.NewConfirm().
				Key("enableSounds").
				Title("Sounds").
				Affirmative("On").
				Negative("Off").
				Value(&s.enableSounds),

			huh.NewConfirm().
				Key("enableNotifications").
				Title("Desktop Notifications").
				Affirmative("On").
				Negative("Off").
				Value(&s.enableNotifications),
		),
	).
		WithWidth(50).
		WithShowHelp(false).
		WithShowErrors(true).
		WithKeyMap(enterSubmitsKeyMap())
}

// NewSettingsScreen creates a new settings screen with current settings values
func NewSettingsScreen(prefs *Settings, m *Model) (*SettingsScreen, tea.Cmd) {
	screen := &SettingsScreen{
		width:               m.width,
		height:              m.height,
		model:               m,
		help:                help.New(),
		keys:                newSettingsKeyMap(),
		host:                prefs.Server.Host,
		highlightStyle:      prefs.HighlightStyle,
		enableSounds:        prefs.EnableSounds,
		enableNotifications: prefs.EnableNotifications,
	}
	if prefs.Server.Port != 0 {
		screen.port = strconv.Itoa(prefs.Server.Port)
	}

	screen.form = buildSettingsForm(screen)

	return screen, screen.form.Init()
}

// Init implements tea.Model
func (s *SettingsScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements ScreenModel
func (s *SettingsScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return SettingsCancelledMsg{} }
		case "enter":
			// First update the form to commit the current field's value
			form, _ := s.form.Update(msg)
			if f, ok := form.(*huh.Form); ok {
				s.form = f
			}
			// Then submit the form immediately
			s.form.NextGroup()
			if s.form.State == huh.StateCompleted {
				return s, s.handleSubmit()
			}
			return s, nil
		}
	}

	// Update the form
	form, cmd := s.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		s.form = f
	}

	// Check if form is complete
	if s.form.State == huh.StateCompleted {
		return s, s.handleSubmit()
	}

	return s, cmd
}

// handleSubmit processes the form submission
func (s *SettingsScreen) handleSubmit() tea.Cmd {
	port, _ := strconv.Atoi(strings.TrimSpace(s.port))
	saved := SettingsSavedMsg{
		Host:                strings.TrimSpace(s.host),
		Port:                port,
		HighlightStyle:      s.highlightStyle,
		EnableSounds:        s.enableSounds,
		EnableNotifications: s.enableNotifications,
	}

	return func() tea.Msg { return saved }
}

// View implements tea.Model
func (s *SettingsScreen) View() string {
	content := lipgloss.JoinVertical(
		lipgloss.Left,
		s.form.View(),
		"",
		s.help.View(s.keys),
	)
	return style.RenderSubscreen(s.width, s.height, "Settings", content)
}

// SetSize updates the screen dimensions
func (s *SettingsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
}
