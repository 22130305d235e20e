package internal

import (
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jhalter/xmpp-shell/internal/style"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

// Messages sent from ShellScreen to parent

// ShellCredentialsChangedMsg is sent on every edit of the login row.
type ShellCredentialsChangedMsg struct {
	JID      string
	Password string
}

// ShellConnectMsg signals the connect button was pressed
type ShellConnectMsg struct{}

// ShellSendMsg carries the selected draft text
type ShellSendMsg struct {
	Text string
}

// ShellDisconnectRequestedMsg signals user wants to disconnect
type ShellDisconnectRequestedMsg struct{}

type ShellOpenAccountsMsg struct{}

type ShellOpenSnippetsMsg struct{}

type ShellOpenSettingsMsg struct{}

type shellFocus int

const (
	focusJID shellFocus = iota
	focusPassword
	focusConnect
	focusEditor
	focusReceive
	focusCount
)

// shellKeyMap defines key bindings for the shell help display
type shellKeyMap struct {
	Next       key.Binding
	Run        key.Binding
	Undo       key.Binding
	Redo       key.Binding
	Indent     key.Binding
	Snippets   key.Binding
	Copy       key.Binding
	Accounts   key.Binding
	Settings   key.Binding
	Logs       key.Binding
	Disconnect key.Binding
	Quit       key.Binding
}

func (k shellKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Run, k.Undo, k.Redo, k.Indent, k.Snippets, k.Copy, k.Accounts, k.Settings, k.Logs, k.Disconnect, k.Quit}
}

func (k shellKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Undo, k.Redo, k.Indent, k.Snippets},
		{k.Next, k.Copy, k.Accounts, k.Settings, k.Logs, k.Disconnect, k.Quit},
	}
}

func newShellKeyMap() shellKeyMap {
	return shellKeyMap{
		Next:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "focus")),
		Run:        key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("^R", "run")),
		Undo:       key.NewBinding(key.WithKeys("ctrl+z"), key.WithHelp("^Z", "undo")),
		Redo:       key.NewBinding(key.WithKeys("ctrl+y"), key.WithHelp("^Y", "redo")),
		Indent:     key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("^G", "indent")),
		Snippets:   key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("^T", "snippets")),
		Copy:       key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("^O", "copy")),
		Accounts:   key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("^A", "accounts")),
		Settings:   key.NewBinding(key.WithKeys("ctrl+p"), key.WithHelp("^P", "settings")),
		Logs:       key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("^L", "logs")),
		Disconnect: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "disconnect")),
		Quit:       key.NewBinding(key.WithKeys("ctrl+q"), key.WithHelp("^Q", "quit")),
	}
}

// ShellScreen is the main window: login row, toolbar, draft editor and
// receive pane.
type ShellScreen struct {
	jidInput      textinput.Model
	passwordInput textinput.Model
	editor        textarea.Model
	receive       viewport.Model
	help          help.Model
	keys          shellKeyMap

	width, height int

	model *Model

	focus           shellFocus
	controlsEnabled bool
	connectEnabled  bool
	history         draftHistory
	typing          bool
	receiveRaw      string
	status          statusBar
}

// NewShellScreen creates the shell with the login row pre-filled from creds.
func NewShellScreen(creds Credentials, m *Model) *ShellScreen {
	jidInput := textinput.New()
	jidInput.Prompt = ""
	jidInput.Placeholder = "user@example.com"
	jidInput.SetValue(creds.JID)

	passwordInput := textinput.New()
	passwordInput.Prompt = ""
	passwordInput.Placeholder = "password"
	passwordInput.EchoMode = textinput.EchoPassword
	passwordInput.EchoCharacter = '•'
	passwordInput.SetValue(creds.Password)

	editor := textarea.New()
	editor.Placeholder = "<presence/>"
	editor.ShowLineNumbers = true
	editor.CharLimit = 0
	editor.Blur()

	s := &ShellScreen{
		jidInput:      jidInput,
		passwordInput: passwordInput,
		editor:        editor,
		receive:       viewport.New(0, 0),
		help:          help.New(),
		keys:          newShellKeyMap(),
		model:         m,
	}
	s.keys.Disconnect.SetEnabled(false)
	s.SetControlsEnabled(false)
	s.SetConnectEnabled(creds.IsReadyToConnect())
	s.setFocus(focusJID)
	s.SetSize(m.width, m.height)
	return s
}

// Init implements tea.Model
func (s *ShellScreen) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements ScreenModel
func (s *ShellScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case tea.KeyMsg:
		return s.handleKeys(msg)
	}

	var cmd tea.Cmd
	switch s.focus {
	case focusJID:
		s.jidInput, cmd = s.jidInput.Update(msg)
	case focusPassword:
		s.passwordInput, cmd = s.passwordInput.Update(msg)
	case focusEditor:
		s.editor, cmd = s.editor.Update(msg)
	case focusReceive:
		s.receive, cmd = s.receive.Update(msg)
	}
	return s, cmd
}

func (s *ShellScreen) handleKeys(msg tea.KeyMsg) (ScreenModel, tea.Cmd) {
	switch {
	case msg.String() == "tab":
		s.cycleFocus(1)
		return s, nil
	case msg.String() == "shift+tab":
		s.cycleFocus(-1)
		return s, nil
	case key.Matches(msg, s.keys.Accounts):
		return s, func() tea.Msg { return ShellOpenAccountsMsg{} }
	case key.Matches(msg, s.keys.Settings):
		return s, func() tea.Msg { return ShellOpenSettingsMsg{} }
	case key.Matches(msg, s.keys.Copy):
		return s, s.copyReceived()
	case key.Matches(msg, s.keys.Disconnect):
		if s.model.state == StateDisconnected {
			return s, nil
		}
		return s, func() tea.Msg { return ShellDisconnectRequestedMsg{} }
	case key.Matches(msg, s.keys.Run):
		return s, s.run()
	case key.Matches(msg, s.keys.Undo):
		s.undo()
		return s, nil
	case key.Matches(msg, s.keys.Redo):
		s.redo()
		return s, nil
	case key.Matches(msg, s.keys.Indent):
		s.indent()
		return s, nil
	case key.Matches(msg, s.keys.Snippets):
		return s, func() tea.Msg { return ShellOpenSnippetsMsg{} }
	}

	switch s.focus {
	case focusJID, focusPassword:
		if msg.String() == "enter" {
			return s, s.pressConnect()
		}
		return s, s.updateLoginRow(msg)

	case focusConnect:
		if msg.String() == "enter" || msg.String() == " " {
			return s, s.pressConnect()
		}

	case focusEditor:
		return s, s.updateEditor(msg)

	case focusReceive:
		var cmd tea.Cmd
		s.receive, cmd = s.receive.Update(msg)
		return s, cmd
	}

	return s, nil
}

func (s *ShellScreen) updateLoginRow(msg tea.KeyMsg) tea.Cmd {
	jid, password := s.jidInput.Value(), s.passwordInput.Value()

	var cmd tea.Cmd
	if s.focus == focusJID {
		s.jidInput, cmd = s.jidInput.Update(msg)
	} else {
		s.passwordInput, cmd = s.passwordInput.Update(msg)
	}

	if s.jidInput.Value() == jid && s.passwordInput.Value() == password {
		return cmd
	}

	// Applied synchronously so a following enter sees the new values.
	s.model.handleShellCredentialsChangedMsg(ShellCredentialsChangedMsg{
		JID:      s.jidInput.Value(),
		Password: s.passwordInput.Value(),
	})
	return cmd
}

// updateEditor forwards a key to the editor and records an undo snapshot at
// word boundaries.
func (s *ShellScreen) updateEditor(msg tea.KeyMsg) tea.Cmd {
	before := s.editor.Value()

	var cmd tea.Cmd
	s.editor, cmd = s.editor.Update(msg)

	if s.editor.Value() == before {
		return cmd
	}

	wordChar := msg.Type == tea.KeyRunes && strings.TrimSpace(string(msg.Runes)) != ""
	if !wordChar || !s.typing {
		s.history.Record(before)
	}
	s.typing = wordChar
	return cmd
}

func (s *ShellScreen) pressConnect() tea.Cmd {
	if !s.connectEnabled {
		return nil
	}
	return func() tea.Msg { return ShellConnectMsg{} }
}

func (s *ShellScreen) run() tea.Cmd {
	if !s.controlsEnabled {
		return nil
	}
	text := s.SelectedDraftText()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return func() tea.Msg { return ShellSendMsg{Text: text} }
}

func (s *ShellScreen) undo() {
	if !s.controlsEnabled {
		return
	}
	if prev, ok := s.history.Undo(s.editor.Value()); ok {
		s.editor.SetValue(prev)
		s.typing = false
	}
}

func (s *ShellScreen) redo() {
	if !s.controlsEnabled {
		return
	}
	if next, ok := s.history.Redo(s.editor.Value()); ok {
		s.editor.SetValue(next)
		s.typing = false
	}
}

func (s *ShellScreen) indent() {
	if !s.controlsEnabled {
		return
	}
	before := s.editor.Value()
	formatted, err := indentXML(before)
	if err != nil {
		s.status.SetError(err)
		return
	}
	if formatted == before {
		return
	}
	s.history.Record(before)
	s.typing = false
	s.editor.SetValue(formatted)
}

// InsertDraft inserts text at the editor cursor as its own block.
func (s *ShellScreen) InsertDraft(text string) {
	if !s.controlsEnabled {
		return
	}
	s.history.Record(s.editor.Value())
	s.typing = false
	if strings.TrimSpace(s.editor.Value()) != "" {
		text = "\n\n" + text
	}
	s.editor.InsertString(text)
	s.setFocus(focusEditor)
}

func (s *ShellScreen) copyReceived() tea.Cmd {
	raw := s.receiveRaw
	if raw == "" {
		return nil
	}
	if err := clipboard.WriteAll(raw); err != nil {
		s.model.logger.Warn("Unable to copy to clipboard", "err", err)
		s.status.SetError(err)
		return nil
	}
	s.status.SetNote("Copied stanza to clipboard")
	return nil
}

// Credentials returns the current contents of the login row.
func (s *ShellScreen) Credentials() Credentials {
	var c Credentials
	c.SetIdentifier(s.jidInput.Value())
	c.SetSecret(s.passwordInput.Value())
	return c
}

// SetCredentials replaces the contents of the login row.
func (s *ShellScreen) SetCredentials(c Credentials) {
	s.jidInput.SetValue(c.JID)
	s.passwordInput.SetValue(c.Password)
}

// SelectedDraftText returns the block of non-blank lines under the cursor.
func (s *ShellScreen) SelectedDraftText() string {
	return selectBlock(s.editor.Value(), s.editor.Line())
}

// SetControlsEnabled toggles the editor and toolbar.
func (s *ShellScreen) SetControlsEnabled(enabled bool) {
	s.controlsEnabled = enabled
	for _, b := range []*key.Binding{&s.keys.Run, &s.keys.Undo, &s.keys.Redo, &s.keys.Indent, &s.keys.Snippets} {
		b.SetEnabled(enabled)
	}
	if !enabled && s.focus == focusEditor {
		s.setFocus(focusConnect)
	}
	if enabled && s.focus != focusEditor {
		s.setFocus(focusEditor)
	}
}

// ControlsEnabled reports whether the editor and toolbar accept input.
func (s *ShellScreen) ControlsEnabled() bool {
	return s.controlsEnabled
}

// SetConnectEnabled toggles the connect button.
func (s *ShellScreen) SetConnectEnabled(enabled bool) {
	s.connectEnabled = enabled
}

// ConnectEnabled reports whether the connect button can be pressed.
func (s *ShellScreen) ConnectEnabled() bool {
	return s.connectEnabled
}

// SetReceiveText replaces the receive pane with text.
func (s *ShellScreen) SetReceiveText(text string) {
	s.receiveRaw = text
	s.status.SetReceived(len(text))
	s.renderReceive()
	s.receive.GotoTop()
}

// ReceiveText returns the raw text shown in the receive pane.
func (s *ShellScreen) ReceiveText() string {
	return s.receiveRaw
}

// SetStatus records a session state change for the status bar.
func (s *ShellScreen) SetStatus(u StatusChanged) {
	s.status.Apply(u)
	s.keys.Disconnect.SetEnabled(u.State != StateDisconnected)
}

func (s *ShellScreen) renderReceive() {
	width := s.receive.Width
	if width < 10 {
		width = 10
	}
	content := highlightXML(s.receiveRaw, s.model.prefs.HighlightStyle)
	s.receive.SetContent(wrap.String(wordwrap.String(content, width), width))
}

func (s *ShellScreen) cycleFocus(delta int) {
	next := s.focus
	for range focusCount {
		next = (next + shellFocus(delta) + focusCount) % focusCount
		if next == focusEditor && !s.controlsEnabled {
			continue
		}
		break
	}
	s.setFocus(next)
}

func (s *ShellScreen) setFocus(f shellFocus) {
	s.focus = f
	s.jidInput.Blur()
	s.passwordInput.Blur()
	s.editor.Blur()
	s.typing = false

	switch f {
	case focusJID:
		s.jidInput.Focus()
	case focusPassword:
		s.passwordInput.Focus()
	case focusEditor:
		s.editor.Focus()
	}
}

// View implements tea.Model
func (s *ShellScreen) View() string {
	title := style.Gradient("xmpp-shell", style.GradientFrom, style.GradientTo)

	loginRow := lipgloss.JoinHorizontal(
		lipgloss.Center,
		s.renderField("JID", s.jidInput.View(), s.focus == focusJID),
		" ",
		s.renderField("Password", s.passwordInput.View(), s.focus == focusPassword),
		" ",
		s.renderButton(s.connectLabel(), s.connectEnabled, s.focus == focusConnect),
	)

	toolbar := lipgloss.JoinHorizontal(
		lipgloss.Left,
		s.renderToolbarItem(s.keys.Undo),
		s.renderToolbarItem(s.keys.Redo),
		s.renderToolbarItem(s.keys.Indent),
		s.renderToolbarItem(s.keys.Snippets),
		style.ToolbarSeparator,
		s.renderToolbarItem(s.keys.Run),
	)

	editorView := s.paneStyle(s.focus == focusEditor, s.controlsEnabled).Render(s.editor.View())
	receiveView := s.paneStyle(s.focus == focusReceive, true).Render(s.receive.View())

	var panes string
	if s.sideBySide() {
		panes = lipgloss.JoinHorizontal(lipgloss.Top, editorView, receiveView)
	} else {
		panes = lipgloss.JoinVertical(lipgloss.Left, editorView, receiveView)
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		loginRow,
		toolbar,
		panes,
		s.status.View(s.width),
		s.help.View(s.keys),
	)
}

func (s *ShellScreen) connectLabel() string {
	switch s.model.state {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	}
	return "Connect"
}

func (s *ShellScreen) renderField(label, view string, focused bool) string {
	fieldStyle := style.FieldStyle
	if focused {
		fieldStyle = style.FocusedFieldStyle
	}
	return lipgloss.JoinHorizontal(
		lipgloss.Center,
		style.LabelStyle.Render(label),
		fieldStyle.Width(s.fieldWidth()).Render(view),
	)
}

func (s *ShellScreen) renderButton(label string, enabled, focused bool) string {
	switch {
	case !enabled:
		return style.DisabledButtonStyle.Render(label)
	case focused:
		return style.FocusedButtonStyle.Render(label)
	default:
		return style.ButtonStyle.Render(label)
	}
}

func (s *ShellScreen) renderToolbarItem(b key.Binding) string {
	h := b.Help()
	if !b.Enabled() {
		return style.ToolbarDisabledStyle.Render(h.Key + " " + h.Desc)
	}
	return style.ToolbarStyle.Render(style.HotkeyStyle.Render(h.Key) + " " + h.Desc)
}

func (s *ShellScreen) paneStyle(focused, enabled bool) lipgloss.Style {
	border := lipgloss.RoundedBorder()
	color := style.ColorCyan
	if focused {
		border = lipgloss.DoubleBorder()
	}
	if !enabled {
		color = style.ColorDarkGrey
	}
	return lipgloss.NewStyle().Border(border).BorderForeground(color)
}

func (s *ShellScreen) sideBySide() bool {
	return s.width >= 100
}

func (s *ShellScreen) fieldWidth() int {
	w := (s.width - 40) / 2
	if w < 16 {
		w = 16
	}
	return w
}

// SetSize updates dimensions
func (s *ShellScreen) SetSize(width, height int) {
	s.width = width
	s.height = height

	// title, login row (3), toolbar, status, help
	const chrome = 7
	const border = 2

	paneHeight := height - chrome - border
	paneWidth := width - border
	if s.sideBySide() {
		paneWidth = width/2 - border
	} else {
		paneHeight = (height-chrome)/2 - border
	}
	if paneHeight < 3 {
		paneHeight = 3
	}
	if paneWidth < 20 {
		paneWidth = 20
	}

	s.editor.SetWidth(paneWidth)
	s.editor.SetHeight(paneHeight)
	s.receive.Width = paneWidth
	s.receive.Height = paneHeight
	s.jidInput.Width = s.fieldWidth() - 2
	s.passwordInput.Width = s.fieldWidth() - 2
	s.help.Width = width

	s.renderReceive()
}
