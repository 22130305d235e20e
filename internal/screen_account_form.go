package internal

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/jhalter/xmpp-shell/internal/style"
	"mellium.im/xmpp/jid"
)

// AccountFormMode represents the mode the account form is in
type AccountFormMode int

const (
	AccountFormModeCreate AccountFormMode = iota
	AccountFormModeEdit
)

// accountFormKeyMap defines the keybindings for the account form
type accountFormKeyMap struct {
	Tab    key.Binding
	Enter  key.Binding
	Escape key.Binding
}

func (k accountFormKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Enter, k.Escape}
}

func (k accountFormKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Tab, k.Enter, k.Escape}}
}

func newAccountFormKeyMap() accountFormKeyMap {
	return accountFormKeyMap{
		Tab:    key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next")),
		Enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Escape: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
	}
}

// Messages sent from AccountFormScreen to parent
type AccountSavedMsg struct {
	Account Account
	Index   int // -1 for a new account
}

type AccountFormCancelledMsg struct{}

// AccountFormScreen creates or edits a saved account
type AccountFormScreen struct {
	form          *huh.Form
	mode          AccountFormMode
	index         int
	width, height int
	model         *Model
	help          help.Model
	keys          accountFormKeyMap

	// Form field values (bound to form inputs)
	name     string
	jid      string
	password string
}

// enterSubmitsKeyMap creates a keymap where Enter submits the form immediately
// instead of tabbing through fields.
func enterSubmitsKeyMap() *huh.KeyMap {
	km := huh.NewDefaultKeyMap()
	// Remove enter from Next so it only navigates with tab
	km.Input.Next = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next"))
	km.Confirm.Next = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next"))
	km.Select.Next = key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next"))
	// Add enter to submit so it shows in help
	km.Input.Submit = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save"))
	km.Confirm.Submit = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save"))
	km.Select.Submit = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save"))
	return km
}

func validateJID(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("JID is required")
	}
	j, err := jid.Parse(s)
	if err != nil {
		return err
	}
	if j.Localpart() == "" {
		return errors.New("JID needs a user part")
	}
	return nil
}

func buildAccountForm(name, jidValue, password *string) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("name").
				Title("Name").
				Placeholder("Work").
				Value(name),

			huh.NewInput().
				Key("jid").
				Title("JID").
				Placeholder("user@example.com").
				Validate(validateJID).
				Value(jidValue),

			huh.NewInput().
				Key("password").
				Title("Password").
				Placeholder("password").
				EchoMode(huh.EchoModePassword).
				Value(password),
		),
	).
		WithWidth(50).
		WithShowHelp(false).
		WithShowErrors(true).
		WithKeyMap(enterSubmitsKeyMap())
}

// NewAccountFormScreen creates a form for a new account pre-filled with creds
func NewAccountFormScreen(creds Credentials, m *Model) (*AccountFormScreen, tea.Cmd) {
	screen := &AccountFormScreen{
		mode:     AccountFormModeCreate,
		index:    -1,
		width:    m.width,
		height:   m.height,
		model:    m,
		help:     help.New(),
		keys:     newAccountFormKeyMap(),
		jid:      creds.JID,
		password: creds.Password,
	}
	screen.form = buildAccountForm(&screen.name, &screen.jid, &screen.password)
	return screen, screen.form.Init()
}

// NewAccountFormScreenForEdit creates a form for editing the account at index
func NewAccountFormScreenForEdit(acct Account, index int, m *Model) (*AccountFormScreen, tea.Cmd) {
	screen := &AccountFormScreen{
		mode:     AccountFormModeEdit,
		index:    index,
		width:    m.width,
		height:   m.height,
		model:    m,
		help:     help.New(),
		keys:     newAccountFormKeyMap(),
		name:     acct.Name,
		jid:      acct.JID,
		password: acct.Password,
	}
	screen.form = buildAccountForm(&screen.name, &screen.jid, &screen.password)
	return screen, screen.form.Init()
}

// Init implements tea.Model
func (s *AccountFormScreen) Init() tea.Cmd {
	return s.form.Init()
}

// Update implements ScreenModel
func (s *AccountFormScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case AccountSavedMsg:
		return s, s.model.handleAccountSavedMsg(msg)
	case AccountFormCancelledMsg:
		s.model.handleAccountFormCancelledMsg()
		return s, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return s, func() tea.Msg { return AccountFormCancelledMsg{} }
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
func (s *AccountFormScreen) handleSubmit() tea.Cmd {
	acct := Account{
		Name:     strings.TrimSpace(s.name),
		JID:      strings.TrimSpace(s.jid),
		Password: s.password,
	}
	index := s.index

	return func() tea.Msg {
		return AccountSavedMsg{Account: acct, Index: index}
	}
}

// View implements tea.Model
func (s *AccountFormScreen) View() string {
	title := "New Account"
	if s.mode == AccountFormModeEdit {
		title = "Edit Account"
	}

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		s.form.View(),
		"",
		s.help.View(s.keys),
	)

	return style.RenderSubscreen(s.width, s.height, title, content)
}

// SetSize updates the screen dimensions
func (s *AccountFormScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
}
