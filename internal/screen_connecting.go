package internal

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/jhalter/xmpp-shell/internal/protocol"
	"github.com/jhalter/xmpp-shell/internal/style"
)

// ConnectCancelledMsg abandons the attempt shown by ConnectingScreen.
type ConnectCancelledMsg struct{}

// ConnectingScreen covers the shell while an attempt is outstanding. It shows
// who is connecting, where to and for how long.
type ConnectingScreen struct {
	spinner spinner.Model
	jid     string
	addr    ServerAddress
	started time.Time
	now     func() time.Time

	width, height int
}

func NewConnectingScreen(jid string, addr ServerAddress, m *Model) (*ConnectingScreen, tea.Cmd) {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(style.ColorFuscia)

	s := &ConnectingScreen{
		spinner: sp,
		jid:     jid,
		addr:    addr,
		started: time.Now(),
		now:     time.Now,
		width:   m.width,
		height:  m.height,
	}
	return s, s.spinner.Tick
}

func (s *ConnectingScreen) Init() tea.Cmd {
	return s.spinner.Tick
}

func (s *ConnectingScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
	case tea.KeyMsg:
		if msg.String() == "esc" {
			return s, func() tea.Msg { return ConnectCancelledMsg{} }
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		s.spinner, cmd = s.spinner.Update(msg)
		return s, cmd
	}
	return s, nil
}

// target describes where the attempt is going.
func (s *ConnectingScreen) target() string {
	if s.addr.Host == "" {
		_, domain := splitJID(s.jid)
		return "SRV lookup for " + domain
	}
	port := s.addr.Port
	if port == 0 {
		port = protocol.DefaultPort
	}
	return net.JoinHostPort(s.addr.Host, strconv.Itoa(port))
}

func (s *ConnectingScreen) elapsed() time.Duration {
	return s.now().Sub(s.started).Truncate(time.Second)
}

func (s *ConnectingScreen) View() string {
	body := lipgloss.NewStyle().Padding(1).Width(50).Render(lipgloss.JoinVertical(
		lipgloss.Left,
		s.spinner.View()+" "+s.jid,
		dialogRow("Server", s.target()),
		dialogRow("Elapsed", fmt.Sprint(s.elapsed())),
	))
	hint := lipgloss.NewStyle().Foreground(style.ColorDarkGrey).Render("esc to cancel")

	return style.RenderDialog(s.width, s.height, "Connecting", body, hint)
}

func (s *ConnectingScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
}
