package internal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) (*Model, *fakeLibrary) {
	t.Helper()

	lib := newFakeLibrary()
	c := newTestController(t, lib)

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	m := NewModel(cfgPath, DefaultSettings(), c, Credentials{}, discardLogger(), &DebugBuffer{})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, lib
}

// pump applies controller updates to m until done reports true.
func pump(t *testing.T, m *Model, done func(Update) bool) {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-m.controller.Updates():
			require.True(t, ok, "updates channel closed")
			m.Update(u)
			if done(u) {
				return
			}
		case <-timeout:
			t.Fatal("timed out waiting for update")
		}
	}
}

func untilState(state SessionState) func(Update) bool {
	return func(u Update) bool {
		s, ok := u.(StatusChanged)
		return ok && s.State == state
	}
}

func untilReceive(u Update) bool {
	_, ok := u.(ReceiveText)
	return ok
}

func typeText(m *Model, text string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func press(m *Model, k tea.KeyType) tea.Cmd {
	_, cmd := m.Update(tea.KeyMsg{Type: k})
	return cmd
}

// follow runs cmd and feeds the resulting message back into m.
func follow(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	m.Update(cmd())
}

// connectModel drives the login row and completes the connection.
func connectModel(t *testing.T, m *Model, lib *fakeLibrary) *fakeConn {
	t.Helper()

	typeText(m, "alice@example.com")
	press(m, tea.KeyTab)
	typeText(m, "secret")
	follow(t, m, press(m, tea.KeyEnter))

	pump(t, m, untilState(StateConnecting))
	require.Equal(t, ScreenConnecting, m.CurrentScreen())
	require.False(t, m.shellScreen.ConnectEnabled())

	conn := lib.conn(lib.connCount() - 1)
	conn.obs().OnConnected()
	pump(t, m, untilState(StateConnected))
	return conn
}

func TestConnectGate(t *testing.T) {
	tests := []struct {
		name     string
		jid      string
		password string
		want     bool
	}{
		{name: "both empty", want: false},
		{name: "whitespace jid", jid: " ", password: "x", want: false},
		{name: "whitespace password", jid: "a", password: "  ", want: false},
		{name: "both set", jid: "a", password: "b", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := newTestModel(t)

			if tt.jid != "" {
				typeText(m, tt.jid)
			}
			press(m, tea.KeyTab)
			if tt.password != "" {
				typeText(m, tt.password)
			}

			assert.Equal(t, tt.want, m.shellScreen.ConnectEnabled())
			assert.Equal(t, tt.jid, m.creds.JID)
			assert.Equal(t, tt.password, m.creds.Password)
		})
	}
}

func TestConnectPressedWhileGatedIsIgnored(t *testing.T) {
	m, lib := newTestModel(t)

	typeText(m, "alice@example.com")
	assert.Nil(t, press(m, tea.KeyEnter))
	assert.Equal(t, 0, lib.connCount())
}

func TestConnectScenario(t *testing.T) {
	m, lib := newTestModel(t)
	assert.False(t, m.shellScreen.ControlsEnabled())

	conn := connectModel(t, m, lib)

	assert.Equal(t, ScreenShell, m.CurrentScreen())
	assert.Equal(t, StateConnected, m.state)
	assert.True(t, m.shellScreen.ControlsEnabled())
	assert.Equal(t, focusEditor, m.shellScreen.focus)

	snap := conn.snapshot()
	assert.Equal(t, "alice@example.com", snap.jid)
	assert.Equal(t, "secret", snap.password)
	assert.Len(t, snap.handlers, 1)
	assert.Contains(t, m.shellScreen.status.Text(), "Connected")

	// The connect control stays disabled while the session is up.
	assert.False(t, m.shellScreen.ConnectEnabled())
	m.Update(ShellConnectMsg{})
	assert.Equal(t, StateConnected, m.controller.State())
	assert.Equal(t, 1, lib.connCount())
}

func TestConnectingScreenTarget(t *testing.T) {
	m, _ := newTestModel(t)

	s, _ := NewConnectingScreen("alice@example.com/laptop", ServerAddress{}, m)
	assert.Equal(t, "SRV lookup for example.com", s.target())

	s, _ = NewConnectingScreen("alice@example.com", ServerAddress{Host: "xmpp.example.net"}, m)
	assert.Equal(t, "xmpp.example.net:5222", s.target())

	s, _ = NewConnectingScreen("alice@example.com", ServerAddress{Host: "xmpp.example.net", Port: 5223}, m)
	assert.Equal(t, "xmpp.example.net:5223", s.target())

	s.now = func() time.Time { return s.started.Add(4*time.Second + 300*time.Millisecond) }
	assert.Equal(t, 4*time.Second, s.elapsed())
	assert.Contains(t, s.View(), "xmpp.example.net:5223")
}

func TestConnectOnStartup(t *testing.T) {
	lib := newFakeLibrary()
	c := newTestController(t, lib)
	creds := Credentials{JID: "alice@example.com", Password: "secret"}
	c.Connect(creds)

	m := NewModel(filepath.Join(t.TempDir(), "config.yaml"), DefaultSettings(), c, creds, discardLogger(), &DebugBuffer{})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.True(t, m.shellScreen.ConnectEnabled())

	pump(t, m, untilState(StateConnecting))
	assert.Equal(t, ScreenConnecting, m.CurrentScreen())
	assert.False(t, m.shellScreen.ConnectEnabled())

	lib.conn(0).obs().OnConnected()
	pump(t, m, untilState(StateConnected))
	assert.True(t, m.shellScreen.ControlsEnabled())
}

func TestReceivePaneShowsLatestStanza(t *testing.T) {
	m, lib := newTestModel(t)
	conn := connectModel(t, m, lib)
	h := conn.handler(t)

	h.OnMessage(`<message id="1"/>`)
	pump(t, m, untilReceive)
	assert.Equal(t, `<message id="1"/>`, m.shellScreen.ReceiveText())

	h.OnMessage(`<presence from="bob@example.com"/>`)
	pump(t, m, untilReceive)
	assert.Equal(t, `<presence from="bob@example.com"/>`, m.shellScreen.ReceiveText())
	assert.Contains(t, m.shellScreen.status.Text(), "last stanza")
}

func TestRunSendsBlockUnderCursor(t *testing.T) {
	m, lib := newTestModel(t)
	conn := connectModel(t, m, lib)

	typeText(m, "<presence/>")
	press(m, tea.KeyEnter)
	press(m, tea.KeyEnter)
	typeText(m, `<iq type="get" id="1"/>`)

	follow(t, m, press(m, tea.KeyCtrlR))

	require.Eventually(t, func() bool {
		return len(conn.snapshot().sent) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{`<iq type="get" id="1"/>`}, conn.snapshot().sent)
}

func TestRunBlankSelectionIsNoop(t *testing.T) {
	m, lib := newTestModel(t)
	connectModel(t, m, lib)

	m.shellScreen.editor.SetValue("<presence/>\n\n   ")
	assert.Nil(t, press(m, tea.KeyCtrlR))
}

func TestRunWhileDisconnectedIsNoop(t *testing.T) {
	m, _ := newTestModel(t)

	m.shellScreen.editor.SetValue("<presence/>")
	assert.Nil(t, press(m, tea.KeyCtrlR))
}

func TestEditorUndoRedo(t *testing.T) {
	m, lib := newTestModel(t)
	connectModel(t, m, lib)

	typeText(m, "<presence/>")
	assert.Equal(t, "<presence/>", m.shellScreen.editor.Value())

	press(m, tea.KeyCtrlZ)
	assert.Equal(t, "", m.shellScreen.editor.Value())

	press(m, tea.KeyCtrlY)
	assert.Equal(t, "<presence/>", m.shellScreen.editor.Value())
}

func TestEditorIndent(t *testing.T) {
	m, lib := newTestModel(t)
	connectModel(t, m, lib)

	m.shellScreen.editor.SetValue(`<iq><query/></iq>`)
	press(m, tea.KeyCtrlG)
	assert.Equal(t, "<iq>\n  <query></query>\n</iq>", m.shellScreen.editor.Value())

	press(m, tea.KeyCtrlZ)
	assert.Equal(t, `<iq><query/></iq>`, m.shellScreen.editor.Value())

	m.shellScreen.editor.SetValue(`<iq><query></iq>`)
	press(m, tea.KeyCtrlG)
	assert.Equal(t, `<iq><query></iq>`, m.shellScreen.editor.Value())
	assert.Error(t, m.shellScreen.status.err)
}

func TestConnectFailureShowsError(t *testing.T) {
	m, lib := newTestModel(t)

	lib.mu.Lock()
	lib.connectErr = errors.New("connection refused")
	lib.mu.Unlock()

	typeText(m, "alice@example.com")
	press(m, tea.KeyTab)
	typeText(m, "secret")
	follow(t, m, press(m, tea.KeyEnter))

	pump(t, m, untilState(StateDisconnected))

	require.Equal(t, ScreenDialog, m.CurrentScreen())
	assert.Equal(t, dialogConnectFailed, m.dialog.kind)
	assert.Equal(t, StateConnecting, m.dialog.state)
	assert.EqualError(t, m.dialog.err, "connection refused")
	view := m.dialog.View()
	assert.Contains(t, view, "alice@example.com")
	assert.Contains(t, view, "connection refused")
	assert.True(t, m.shellScreen.ConnectEnabled())
	assert.False(t, m.shellScreen.ControlsEnabled())

	m.Update(DialogClosedMsg{Kind: dialogConnectFailed})
	assert.Equal(t, ScreenShell, m.CurrentScreen())
	assert.Equal(t, 1, lib.connCount())
}

func TestConnectFailureReconnect(t *testing.T) {
	m, lib := newTestModel(t)

	lib.mu.Lock()
	lib.connectErr = errors.New("connection refused")
	lib.mu.Unlock()

	typeText(m, "alice@example.com")
	press(m, tea.KeyTab)
	typeText(m, "secret")
	follow(t, m, press(m, tea.KeyEnter))
	pump(t, m, untilState(StateDisconnected))
	require.Equal(t, ScreenDialog, m.CurrentScreen())

	lib.mu.Lock()
	lib.connectErr = nil
	lib.mu.Unlock()

	m.Update(DialogClosedMsg{Kind: dialogConnectFailed, Confirmed: true})
	pump(t, m, untilState(StateConnecting))
	assert.Equal(t, []Screen{ScreenShell, ScreenConnecting}, m.screenHistory)
	assert.Equal(t, 2, lib.connCount())

	live, maxLive := lib.liveCount()
	assert.Equal(t, 1, live)
	assert.Equal(t, 1, maxLive)
}

func TestConnectionLost(t *testing.T) {
	m, lib := newTestModel(t)
	conn := connectModel(t, m, lib)

	conn.obs().OnDisconnected(errors.New("stream closed"))
	pump(t, m, untilState(StateDisconnected))

	require.Equal(t, ScreenDialog, m.CurrentScreen())
	assert.Equal(t, dialogConnectionLost, m.dialog.kind)
	assert.Equal(t, StateConnected, m.dialog.state)
	assert.False(t, m.shellScreen.ControlsEnabled())
	assert.Equal(t, 1, conn.snapshot().releases)
}

func TestCancelConnectingAbandonsAttempt(t *testing.T) {
	m, lib := newTestModel(t)

	typeText(m, "alice@example.com")
	press(m, tea.KeyTab)
	typeText(m, "secret")
	follow(t, m, press(m, tea.KeyEnter))
	pump(t, m, untilState(StateConnecting))
	require.Equal(t, ScreenConnecting, m.CurrentScreen())

	m.Update(ConnectCancelledMsg{})
	assert.Equal(t, ScreenShell, m.CurrentScreen())
	pump(t, m, untilState(StateDisconnected))

	conn := lib.conn(0)
	conn.obs().OnConnected()
	assert.Equal(t, StateDisconnected, m.controller.State())
	assert.Equal(t, 1, conn.snapshot().releases)
}

func TestDisconnectConfirmation(t *testing.T) {
	m, lib := newTestModel(t)
	conn := connectModel(t, m, lib)

	follow(t, m, press(m, tea.KeyEsc))
	require.Equal(t, ScreenDialog, m.CurrentScreen())
	assert.Equal(t, dialogDisconnect, m.dialog.kind)
	assert.Contains(t, m.dialog.View(), "alice@example.com")

	m.Update(DialogClosedMsg{Kind: dialogDisconnect})
	assert.Equal(t, ScreenShell, m.CurrentScreen())
	assert.Equal(t, StateConnected, m.controller.State())

	follow(t, m, press(m, tea.KeyEsc))
	m.Update(DialogClosedMsg{Kind: dialogDisconnect, Confirmed: true})
	pump(t, m, untilState(StateDisconnected))

	assert.Equal(t, ScreenShell, m.CurrentScreen())
	assert.False(t, m.shellScreen.ControlsEnabled())
	assert.Equal(t, 1, conn.snapshot().releases)

	// No session, nothing to confirm.
	assert.Nil(t, press(m, tea.KeyEsc))
}

func TestQuitShutsDownSession(t *testing.T) {
	m, lib := newTestModel(t)
	conn := connectModel(t, m, lib)

	cmd := press(m, tea.KeyCtrlQ)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())

	lib.mu.Lock()
	stopped := lib.stopped
	lib.mu.Unlock()
	assert.True(t, stopped)

	snap := conn.snapshot()
	assert.Equal(t, 1, snap.disconnects)
	assert.Equal(t, 1, snap.releases)

	for range m.controller.Updates() {
	}
}

func TestSnippetInsertion(t *testing.T) {
	m, lib := newTestModel(t)
	connectModel(t, m, lib)

	typeText(m, "<presence/>")

	m.Update(ShellOpenSnippetsMsg{})
	require.Equal(t, ScreenSnippets, m.CurrentScreen())

	m.Update(SnippetSelectedMsg{Snippet: Snippet{Name: "Ping", Body: `<iq to="$domain"/>`}})
	assert.Equal(t, ScreenShell, m.CurrentScreen())
	assert.Equal(t, "<presence/>\n\n<iq to=\"example.com\"/>", m.shellScreen.editor.Value())
	assert.Equal(t, `<iq to="example.com"/>`, m.shellScreen.SelectedDraftText())
}

func TestAccountSelection(t *testing.T) {
	m, _ := newTestModel(t)
	m.prefs.AddAccount("Work", "alice@example.com", "secret")

	m.Update(ShellOpenAccountsMsg{})
	require.Equal(t, ScreenAccounts, m.CurrentScreen())

	m.Update(AccountSelectedMsg{Account: m.prefs.Accounts[0]})
	assert.Equal(t, []Screen{ScreenShell}, m.screenHistory)
	assert.Equal(t, Credentials{JID: "alice@example.com", Password: "secret"}, m.creds)
	assert.Equal(t, m.creds, m.shellScreen.Credentials())
	assert.True(t, m.shellScreen.ConnectEnabled())
}

func TestAccountSavedIsPersisted(t *testing.T) {
	m, _ := newTestModel(t)

	m.Update(ShellOpenAccountsMsg{})
	m.Update(AccountCreateMsg{})
	require.Equal(t, []Screen{ScreenShell, ScreenAccountForm}, m.screenHistory)

	acct := Account{Name: "Home", JID: "bob@example.org", Password: "hunter2"}
	m.Update(AccountSavedMsg{Account: acct, Index: -1})
	assert.Equal(t, []Screen{ScreenShell, ScreenAccounts}, m.screenHistory)
	assert.Len(t, m.accountsScreen.list.Items(), 1)

	saved, err := ReadConfig(m.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, []Account{acct}, saved.Accounts)

	m.Update(AccountDeletedMsg{Account: acct})
	saved, err = ReadConfig(m.cfgPath)
	require.NoError(t, err)
	assert.Empty(t, saved.Accounts)
}

func TestSettingsSaved(t *testing.T) {
	m, lib := newTestModel(t)

	m.Update(ShellOpenSettingsMsg{})
	require.Equal(t, ScreenSettings, m.CurrentScreen())

	m.Update(SettingsSavedMsg{Host: "chat.example.net", Port: 5223, HighlightStyle: "dracula"})
	assert.Equal(t, ScreenShell, m.CurrentScreen())
	assert.Equal(t, "dracula", m.prefs.HighlightStyle)

	saved, err := ReadConfig(m.cfgPath)
	require.NoError(t, err)
	assert.Equal(t, ServerAddress{Host: "chat.example.net", Port: 5223}, saved.ServerAddress())

	conn := connectModel(t, m, lib)
	snap := conn.snapshot()
	assert.Equal(t, "chat.example.net", snap.host)
	assert.Equal(t, 5223, snap.port)
}

func TestAccountFormCancelReturnsToList(t *testing.T) {
	m, _ := newTestModel(t)
	m.prefs.AddAccount("Work", "alice@example.com", "secret")

	m.Update(ShellOpenAccountsMsg{})
	m.Update(AccountEditMsg{Account: m.prefs.Accounts[0], Index: 0})
	require.Equal(t, []Screen{ScreenShell, ScreenAccountForm}, m.screenHistory)

	m.Update(AccountFormCancelledMsg{})
	assert.Equal(t, []Screen{ScreenShell, ScreenAccounts}, m.screenHistory)
	assert.Equal(t, "Work", m.prefs.Accounts[0].Name)
}
