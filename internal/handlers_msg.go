package internal

import (
	"fmt"
	"reflect"

	tea "github.com/charmbracelet/bubbletea"
)

type msgHandler = func(msg tea.Msg) (tea.Model, tea.Cmd)

// registerHandler registers a message handler for the given message type.
// The msgType parameter should be a zero-value instance of the message type.
func (m *Model) registerHandler(msgType tea.Msg, handler msgHandler) {
	t := reflect.TypeOf(msgType)
	m.msgHandlers[t] = handler
}

// sessionClosedMsg is delivered once the controller closes its update channel.
type sessionClosedMsg struct{}

// listenForUpdates waits for the next controller update. Each update handler
// re-arms it, so updates are applied on the UI goroutine in order.
func (m *Model) listenForUpdates() tea.Cmd {
	updates := m.controller.Updates()
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return sessionClosedMsg{}
		}
		return u
	}
}

func (m *Model) handleWindowResize(msg tea.Msg) (tea.Model, tea.Cmd) {
	windowMsg := msg.(tea.WindowSizeMsg)
	m.width = windowMsg.Width
	m.height = windowMsg.Height
	m.resizeAllScreens(windowMsg.Width, windowMsg.Height)
	return m, nil
}

func (m *Model) resizeAllScreens(w, h int) {
	if m.shellScreen != nil {
		m.shellScreen.SetSize(w, h)
	}
	if m.accountsScreen != nil {
		m.accountsScreen.SetSize(w, h)
	}
	if m.accountFormScreen != nil {
		m.accountFormScreen.SetSize(w, h)
	}
	if m.snippetsScreen != nil {
		m.snippetsScreen.SetSize(w, h)
	}
	if m.settingsScreen != nil {
		m.settingsScreen.SetSize(w, h)
	}
	if m.logsScreen != nil {
		m.logsScreen.SetSize(w, h)
	}
	if m.dialog != nil {
		m.dialog.SetSize(w, h)
	}
	if m.connectingScreen != nil {
		m.connectingScreen.SetSize(w, h)
	}
}

// refreshConnectGate enables the connect button iff both credentials are set
// and no session is pending or established.
func (m *Model) refreshConnectGate() {
	m.shellScreen.SetConnectEnabled(m.creds.IsReadyToConnect() && m.state == StateDisconnected)
}

// Session update handlers

func (m *Model) handleControlsEnabled(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.shellScreen.SetControlsEnabled(msg.(ControlsEnabled).Enabled)
	return m, m.listenForUpdates()
}

func (m *Model) handleReceiveText(msg tea.Msg) (tea.Model, tea.Cmd) {
	text := msg.(ReceiveText).Text
	m.shellScreen.SetReceiveText(text)
	m.soundPlayer.PlayAsync(SoundStanza)
	m.notifier.Send("Stanza received", text)
	return m, m.listenForUpdates()
}

func (m *Model) handleStatusChanged(msg tea.Msg) (tea.Model, tea.Cmd) {
	u := msg.(StatusChanged)
	prev := m.state
	m.state = u.State
	m.shellScreen.SetStatus(u)
	m.refreshConnectGate()

	cmds := []tea.Cmd{m.listenForUpdates()}

	switch u.State {
	case StateConnecting:
		if m.CurrentScreen() != ScreenConnecting {
			var cmd tea.Cmd
			m.connectingScreen, cmd = NewConnectingScreen(u.JID, m.prefs.ServerAddress(), m)
			m.PushScreen(ScreenConnecting)
			cmds = append(cmds, cmd)
		}

	case StateConnected:
		m.removeScreen(ScreenConnecting)
		if u.Err != nil {
			m.logger.Warn("Session error", "err", u.Err)
			m.soundPlayer.PlayAsync(SoundError)
		} else if prev != StateConnected {
			m.soundPlayer.PlayAsync(SoundConnected)
		}

	case StateDisconnected:
		m.removeScreen(ScreenConnecting)
		m.removeScreen(ScreenDialog)
		if u.Err != nil {
			kind := dialogConnectFailed
			if prev == StateConnected {
				kind = dialogConnectionLost
			}
			m.soundPlayer.PlayAsync(SoundError)
			m.dialog = newSessionDialog(kind, u.JID, prev, u.Err, m)
			m.PushScreen(ScreenDialog)
			cmds = append(cmds, m.dialog.Init())
		} else if prev != StateDisconnected {
			m.soundPlayer.PlayAsync(SoundDisconnected)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) handleSessionClosed(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.logger.Debug("Session update channel closed")
	return m, nil
}

// ShellScreen message handlers

func (m *Model) handleShellCredentialsChangedMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	changed := msg.(ShellCredentialsChangedMsg)
	m.creds.SetIdentifier(changed.JID)
	m.creds.SetSecret(changed.Password)
	m.refreshConnectGate()
	return m, nil
}

func (m *Model) handleShellConnectMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	if !m.creds.IsReadyToConnect() || m.state != StateDisconnected {
		return m, nil
	}
	m.controller.Reconnect(m.creds)
	return m, nil
}

func (m *Model) handleShellSendMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.controller.Send(msg.(ShellSendMsg).Text)
	return m, nil
}

func (m *Model) handleShellDisconnectRequestedMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.state == StateDisconnected {
		return m, nil
	}
	m.dialog = newSessionDialog(dialogDisconnect, m.creds.JID, m.state, nil, m)
	m.PushScreen(ScreenDialog)
	return m, m.dialog.Init()
}

func (m *Model) handleShellOpenAccountsMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.accountsScreen = NewAccountsScreen(m.prefs.Accounts, m)
	m.PushScreen(ScreenAccounts)
	return m, nil
}

func (m *Model) handleShellOpenSnippetsMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.snippetsScreen = NewSnippetsScreen(m.prefs.Snippets, m)
	m.PushScreen(ScreenSnippets)
	return m, nil
}

func (m *Model) handleShellOpenSettingsMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.settingsScreen, cmd = NewSettingsScreen(m.prefs, m)
	m.PushScreen(ScreenSettings)
	return m, cmd
}

// AccountsScreen message handlers

func (m *Model) handleAccountSelectedMsg(msg AccountSelectedMsg) {
	var creds Credentials
	creds.SetIdentifier(msg.Account.JID)
	creds.SetSecret(msg.Account.Password)

	m.creds = creds
	m.shellScreen.SetCredentials(creds)
	m.refreshConnectGate()
	m.NavigateTo(ScreenShell)
}

func (m *Model) handleAccountEditMsg(msg AccountEditMsg) tea.Cmd {
	var cmd tea.Cmd
	m.accountFormScreen, cmd = NewAccountFormScreenForEdit(msg.Account, msg.Index, m)
	m.ReplaceScreen(ScreenAccountForm)
	return cmd
}

func (m *Model) handleAccountCreateMsg() tea.Cmd {
	var cmd tea.Cmd
	m.accountFormScreen, cmd = NewAccountFormScreen(m.creds, m)
	m.ReplaceScreen(ScreenAccountForm)
	return cmd
}

func (m *Model) handleAccountDeletedMsg(msg AccountDeletedMsg) {
	m.prefs.RemoveAccount(msg.Account)
	m.persist()
}

func (m *Model) handleAccountSavedMsg(msg AccountSavedMsg) tea.Cmd {
	if msg.Index < 0 {
		m.prefs.AddAccount(msg.Account.Name, msg.Account.JID, msg.Account.Password)
	} else {
		m.prefs.UpdateAccount(msg.Index, msg.Account)
	}
	m.persist()

	m.ReplaceScreen(ScreenAccounts)
	return m.accountsScreen.SetAccounts(m.prefs.Accounts)
}

func (m *Model) handleAccountFormCancelledMsg() {
	m.ReplaceScreen(ScreenAccounts)
}

// SnippetsScreen message handlers

func (m *Model) handleSnippetSelectedMsg(msg SnippetSelectedMsg) {
	m.PopScreen()
	m.shellScreen.InsertDraft(msg.Snippet.Expand(m.creds.JID))
}

// SettingsScreen message handlers

func (m *Model) handleSettingsSavedMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	settingsMsg := msg.(SettingsSavedMsg)

	// Update preferences
	m.prefs.Server.Host = settingsMsg.Host
	m.prefs.Server.Port = settingsMsg.Port
	m.prefs.HighlightStyle = settingsMsg.HighlightStyle
	m.prefs.EnableSounds = settingsMsg.EnableSounds
	m.prefs.EnableNotifications = settingsMsg.EnableNotifications

	m.controller.SetServerAddress(m.prefs.ServerAddress())
	m.soundPlayer.SetEnabled(m.prefs.EnableSounds)
	m.notifier.SetEnabled(m.prefs.EnableNotifications)
	m.shellScreen.renderReceive()

	m.persist()

	m.PopScreen()
	return m, nil
}

func (m *Model) handleSettingsCancelledMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.PopScreen()
	return m, nil
}

// persist saves preferences, reporting failures in the status bar.
func (m *Model) persist() {
	if err := m.savePreferences(); err != nil {
		m.logger.Error("Failed to save preferences", "err", err)
		m.shellScreen.status.SetError(fmt.Errorf("save config: %w", err))
	}
}
