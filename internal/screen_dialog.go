package internal

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/jhalter/xmpp-shell/internal/style"
	"github.com/muesli/reflow/wordwrap"
)

type dialogKind int

const (
	dialogConnectFailed dialogKind = iota
	dialogConnectionLost
	dialogDisconnect
)

func (k dialogKind) title() string {
	switch k {
	case dialogConnectFailed:
		return "Connection Error"
	case dialogConnectionLost:
		return "Connection Lost"
	default:
		return "Disconnect"
	}
}

// DialogClosedMsg reports how a SessionDialog was closed. Confirmed is false
// for the negative button and for esc.
type DialogClosedMsg struct {
	Kind      dialogKind
	Confirmed bool
}

// SessionDialog describes the session it acts on and asks one question:
// reconnect after a failure, or close a live session.
type SessionDialog struct {
	kind  dialogKind
	jid   string
	state SessionState
	err   error
	at    time.Time

	confirm bool
	form    *huh.Form

	width, height int
}

// newSessionDialog builds the dialog for kind. state is where the session
// stood when the dialog was raised.
func newSessionDialog(kind dialogKind, jid string, state SessionState, err error, m *Model) *SessionDialog {
	d := &SessionDialog{
		kind:   kind,
		jid:    jid,
		state:  state,
		err:    err,
		at:     time.Now(),
		width:  m.width,
		height: m.height,
	}

	question, yes, no := "Try again?", "Reconnect", "Dismiss"
	if kind == dialogDisconnect {
		question, yes, no = "Close the session?", "Disconnect", "Cancel"
	}

	keyMap := huh.NewDefaultKeyMap()
	keyMap.Confirm.Toggle.SetKeys("left", "right", "h", "l", "tab")

	theme := huh.ThemeCharm()
	theme.Focused.Base = theme.Focused.Base.UnsetBorderLeft().UnsetBorderStyle()

	d.form = huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative(yes).
			Negative(no).
			Value(&d.confirm),
	)).
		WithWidth(50).
		WithShowHelp(false).
		WithShowErrors(false).
		WithKeyMap(keyMap).
		WithTheme(theme)

	return d
}

func (d *SessionDialog) Init() tea.Cmd {
	return d.form.Init()
}

func (d *SessionDialog) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		d.SetSize(msg.Width, msg.Height)
		return d, nil
	case tea.KeyMsg:
		if msg.String() == "esc" {
			return d, d.closed(false)
		}
	}

	form, cmd := d.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		d.form = f
	}
	if d.form.State == huh.StateCompleted {
		return d, d.closed(d.confirm)
	}
	return d, cmd
}

func (d *SessionDialog) closed(confirmed bool) tea.Cmd {
	kind := d.kind
	return func() tea.Msg { return DialogClosedMsg{Kind: kind, Confirmed: confirmed} }
}

func (d *SessionDialog) View() string {
	rows := []string{
		dialogRow("JID", d.jid),
		dialogRow("State", d.state.String()),
	}
	if d.err != nil {
		rows = append(rows, dialogRow("Error", wordwrap.String(d.err.Error(), 40)))
	}
	if d.kind != dialogDisconnect {
		rows = append(rows, dialogRow("When", humanize.Time(d.at)))
	}

	details := lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
	return style.RenderDialog(d.width, d.height, d.kind.title(), details, d.form.View())
}

func dialogRow(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, style.LabelStyle.Width(8).Render(label), value)
}

func (d *SessionDialog) SetSize(width, height int) {
	d.width = width
	d.height = height
}
