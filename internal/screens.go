package internal

import (
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/jhalter/xmpp-shell/internal/style"
)

// statusBar tracks what the bottom line of the shell shows.
type statusBar struct {
	state    SessionState
	jid      string
	since    time.Time
	lastSize int
	lastAt   time.Time
	err      error
	note     string
	now      func() time.Time
}

// Apply records a session state change.
func (b *statusBar) Apply(u StatusChanged) {
	if u.State != b.state {
		b.since = b.clock()
	}
	b.state = u.State
	b.jid = u.JID
	b.note = ""
	if u.Err != nil || u.State != StateDisconnected {
		b.err = u.Err
	}
}

// SetReceived records the size of the latest inbound stanza.
func (b *statusBar) SetReceived(size int) {
	b.lastSize = size
	b.lastAt = b.clock()
}

func (b *statusBar) SetError(err error) {
	b.err = err
	b.note = ""
}

func (b *statusBar) SetNote(note string) {
	b.note = note
	b.err = nil
}

func (b *statusBar) clock() time.Time {
	if b.now != nil {
		return b.now()
	}
	return time.Now()
}

// Text renders the status line without styling.
func (b *statusBar) Text() string {
	parts := []string{b.state.String()}

	if b.jid != "" {
		parts = append(parts, b.jid)
	}
	if b.state == StateConnected && !b.since.IsZero() {
		parts = append(parts, "since "+humanize.RelTime(b.since, b.clock(), "ago", "from now"))
	}
	if !b.lastAt.IsZero() {
		parts = append(parts, "last stanza "+humanize.Bytes(uint64(b.lastSize))+" "+humanize.RelTime(b.lastAt, b.clock(), "ago", "from now"))
	}
	if b.note != "" {
		parts = append(parts, b.note)
	}

	return strings.Join(parts, " │ ")
}

// View renders the status bar to width.
func (b *statusBar) View(width int) string {
	stateStyle := style.StatusStyle
	switch b.state {
	case StateConnecting:
		stateStyle = style.StatusConnectingStyle
	case StateConnected:
		stateStyle = style.StatusConnectedStyle
	}

	line := stateStyle.Render(b.Text())
	if b.err != nil {
		line = lipgloss.JoinHorizontal(lipgloss.Left, line, " ", style.StatusErrorStyle.Render(b.err.Error()))
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(line)
}
