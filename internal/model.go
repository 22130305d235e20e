package internal

import (
	"fmt"
	"log/slog"
	"reflect"

	tea "github.com/charmbracelet/bubbletea"
)

// Screen types
type Screen int

// ScreenModel is the interface that all screens must implement
type ScreenModel interface {
	Update(tea.Msg) (ScreenModel, tea.Cmd)
	View() string
}

const (
	ScreenShell Screen = iota
	ScreenAccounts
	ScreenAccountForm
	ScreenSnippets
	ScreenSettings
	ScreenLogs
	ScreenDialog
	ScreenConnecting
)

// Model
type Model struct {
	program *tea.Program

	// Configuration
	cfgPath     string
	prefs       *Settings
	logger      *slog.Logger
	debugBuffer *DebugBuffer
	soundPlayer *SoundPlayer
	notifier    *Notifier

	msgHandlers map[reflect.Type]msgHandler

	// Screen state
	screenHistory []Screen // Stack of screens, current screen is last element

	width  int
	height int

	// Session
	controller *Controller
	creds      Credentials
	state      SessionState

	// Screens
	shellScreen       *ShellScreen
	accountsScreen    *AccountsScreen
	accountFormScreen *AccountFormScreen
	snippetsScreen    *SnippetsScreen
	settingsScreen    *SettingsScreen
	logsScreen        *LogsScreen
	dialog            *SessionDialog
	connectingScreen  *ConnectingScreen
}

// CurrentScreen returns the current screen, or ScreenShell if history is empty
func (m *Model) CurrentScreen() Screen {
	if len(m.screenHistory) == 0 {
		return ScreenShell
	}
	return m.screenHistory[len(m.screenHistory)-1]
}

// PushScreen adds a new screen to history (modal/overlay pattern)
func (m *Model) PushScreen(screen Screen) {
	m.screenHistory = append(m.screenHistory, screen)
}

// PopScreen removes current screen and returns to previous
// Returns the screen we're now on
func (m *Model) PopScreen() Screen {
	if len(m.screenHistory) <= 1 {
		m.screenHistory = []Screen{ScreenShell}
		return ScreenShell
	}
	m.screenHistory = m.screenHistory[:len(m.screenHistory)-1]
	return m.screenHistory[len(m.screenHistory)-1]
}

// ReplaceScreen replaces the current screen without adding to history
// Used when switching between peer screens (Accounts <-> AccountForm)
func (m *Model) ReplaceScreen(screen Screen) {
	if len(m.screenHistory) == 0 {
		m.screenHistory = []Screen{screen}
	} else {
		m.screenHistory[len(m.screenHistory)-1] = screen
	}
}

// NavigateTo clears history and jumps to a screen (hard navigation)
func (m *Model) NavigateTo(screen Screen) {
	m.screenHistory = []Screen{screen}
}

// removeScreen drops every occurrence of screen from the history, keeping
// the shell at the bottom.
func (m *Model) removeScreen(screen Screen) {
	kept := m.screenHistory[:0]
	for _, s := range m.screenHistory {
		if s != screen {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		kept = append(kept, ScreenShell)
	}
	m.screenHistory = kept
}

// currentScreen returns the current screen as a ScreenModel interface
func (m *Model) currentScreen() ScreenModel {
	switch m.CurrentScreen() {
	case ScreenShell:
		return m.shellScreen
	case ScreenAccounts:
		return m.accountsScreen
	case ScreenAccountForm:
		return m.accountFormScreen
	case ScreenSnippets:
		return m.snippetsScreen
	case ScreenSettings:
		return m.settingsScreen
	case ScreenLogs:
		return m.logsScreen
	case ScreenDialog:
		return m.dialog
	case ScreenConnecting:
		return m.connectingScreen
	}
	return nil
}

// NewModel creates the root UI model. creds pre-fill the login row.
func NewModel(cfgPath string, prefs *Settings, controller *Controller, creds Credentials, logger *slog.Logger, db *DebugBuffer) *Model {
	soundPlayer, err := NewSoundPlayer(prefs.EnableSounds)
	if err != nil {
		logger.Error("Failed to initialize sound player", "err", err)
	}

	m := &Model{
		msgHandlers:   make(map[reflect.Type]msgHandler),
		cfgPath:       cfgPath,
		prefs:         prefs,
		logger:        logger,
		debugBuffer:   db,
		soundPlayer:   soundPlayer,
		notifier:      NewNotifier(prefs.EnableNotifications, logger),
		controller:    controller,
		creds:         creds,
		screenHistory: []Screen{ScreenShell},
	}
	m.shellScreen = NewShellScreen(creds, m)
	m.registerHandlers()
	return m
}

func (m *Model) registerHandlers() {
	m.registerHandler(tea.WindowSizeMsg{}, m.handleWindowResize)

	// Session updates
	m.registerHandler(ControlsEnabled{}, m.handleControlsEnabled)
	m.registerHandler(ReceiveText{}, m.handleReceiveText)
	m.registerHandler(StatusChanged{}, m.handleStatusChanged)
	m.registerHandler(sessionClosedMsg{}, m.handleSessionClosed)

	// Shell
	m.registerHandler(ShellCredentialsChangedMsg{}, m.handleShellCredentialsChangedMsg)
	m.registerHandler(ShellConnectMsg{}, m.handleShellConnectMsg)
	m.registerHandler(ShellSendMsg{}, m.handleShellSendMsg)
	m.registerHandler(ShellDisconnectRequestedMsg{}, m.handleShellDisconnectRequestedMsg)
	m.registerHandler(ShellOpenAccountsMsg{}, m.handleShellOpenAccountsMsg)
	m.registerHandler(ShellOpenSnippetsMsg{}, m.handleShellOpenSnippetsMsg)
	m.registerHandler(ShellOpenSettingsMsg{}, m.handleShellOpenSettingsMsg)

	m.registerHandler(SettingsSavedMsg{}, m.handleSettingsSavedMsg)
	m.registerHandler(SettingsCancelledMsg{}, m.handleSettingsCancelledMsg)
	m.registerHandler(DialogClosedMsg{}, m.handleDialogClosedMsg)
	m.registerHandler(ConnectCancelledMsg{}, m.handleConnectCancelledMsg)
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.shellScreen.Init(), m.listenForUpdates())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.logger.Debug("Update UI", "tea.Msg", fmt.Sprintf("%T", msg), "currentScreen", m.CurrentScreen())

	// Handle global keybindings
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "ctrl+q", "ctrl+c":
			return m, m.quit()
		case "ctrl+l":
			if m.CurrentScreen() != ScreenLogs {
				m.logsScreen = NewLogsScreen(m.debugBuffer, m)
				m.PushScreen(ScreenLogs)
			}
			return m, nil
		}
	}

	// Check if we have a registered handler for this message type
	msgType := reflect.TypeOf(msg)
	if handler, ok := m.msgHandlers[msgType]; ok {
		return handler(msg)
	}

	if screen := m.currentScreen(); screen != nil {
		_, cmd := screen.Update(msg)
		return m, cmd
	}

	return m, nil
}

// quit shuts the session down before leaving the program.
func (m *Model) quit() tea.Cmd {
	return func() tea.Msg {
		m.controller.Shutdown()
		return tea.QuitMsg{}
	}
}

// handleConnectCancelledMsg abandons the connection attempt in progress
func (m *Model) handleConnectCancelledMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	m.removeScreen(ScreenConnecting)
	m.controller.Disconnect()
	return m, nil
}

// handleDialogClosedMsg acts on the session dialog's answer
func (m *Model) handleDialogClosedMsg(msg tea.Msg) (tea.Model, tea.Cmd) {
	closed := msg.(DialogClosedMsg)
	m.removeScreen(ScreenDialog)
	if !closed.Confirmed {
		return m, nil
	}

	switch closed.Kind {
	case dialogDisconnect:
		m.controller.Disconnect()
	case dialogConnectFailed, dialogConnectionLost:
		if m.creds.IsReadyToConnect() && m.state == StateDisconnected {
			m.controller.Reconnect(m.creds)
		}
	}
	return m, nil
}

func (m *Model) View() string {
	if screen := m.currentScreen(); screen != nil {
		return screen.View()
	}
	return ""
}

// Start runs the program until the user quits. The session controller is
// shut down before Start returns.
func (m *Model) Start() error {
	m.program = tea.NewProgram(m, tea.WithAltScreen())

	_, err := m.program.Run()

	m.controller.Shutdown()
	m.soundPlayer.Close()
	return err
}

func (m *Model) savePreferences() error {
	return WriteConfig(m.cfgPath, m.prefs)
}
