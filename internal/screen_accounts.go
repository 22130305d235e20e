package internal

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jhalter/xmpp-shell/internal/style"
)

// Messages sent from AccountsScreen to parent
type AccountSelectedMsg struct {
	Account Account
}

type AccountEditMsg struct {
	Account Account
	Index   int
}

type AccountCreateMsg struct{}

type AccountsCancelledMsg struct{}

type AccountDeletedMsg struct {
	Account Account
}

// AccountsScreen lists saved accounts
type AccountsScreen struct {
	list          list.Model
	width, height int
	model         *Model
}

// NewAccountsScreen creates a new accounts screen with the given accounts
func NewAccountsScreen(accounts []Account, m *Model) *AccountsScreen {
	// Calculate dimensions accounting for app style padding
	h, v := style.AppStyle.GetFrameSize()

	l := list.New(accountItems(accounts), newAccountDelegate(), m.width-h, m.height-v)
	l.Title = "Accounts"
	l.Filter = fuzzyFilter
	l.SetFilteringEnabled(true)
	l.SetShowStatusBar(true)
	l.SetShowTitle(true)
	l.SetShowHelp(true)
	l.SetStatusBarItemName("account", "accounts")
	l.DisableQuitKeybindings()

	return &AccountsScreen{
		list:   l,
		width:  m.width,
		height: m.height,
		model:  m,
	}
}

func accountItems(accounts []Account) []list.Item {
	items := make([]list.Item, len(accounts))
	for i, a := range accounts {
		items[i] = accountItem{account: a, index: i}
	}
	return items
}

// Init implements tea.Model
func (s *AccountsScreen) Init() tea.Cmd {
	return nil
}

// Update implements ScreenModel
func (s *AccountsScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case AccountSelectedMsg:
		s.model.handleAccountSelectedMsg(msg)
	case AccountEditMsg:
		return s, s.model.handleAccountEditMsg(msg)
	case AccountCreateMsg:
		return s, s.model.handleAccountCreateMsg()
	case AccountsCancelledMsg:
		s.model.PopScreen()
	case AccountDeletedMsg:
		s.model.handleAccountDeletedMsg(msg)

	case tea.KeyMsg:
		// Handle custom keys when NOT actively filtering
		if s.list.FilterState() != list.Filtering {
			switch msg.String() {
			case "esc":
				if s.list.FilterState() == list.FilterApplied {
					s.list.ResetFilter()
					return s, nil
				}
				return s, func() tea.Msg { return AccountsCancelledMsg{} }

			case "enter":
				if item, ok := s.list.SelectedItem().(accountItem); ok {
					return s, func() tea.Msg {
						return AccountSelectedMsg{Account: item.account}
					}
				}
				return s, nil

			case "e":
				if item, ok := s.list.SelectedItem().(accountItem); ok {
					acct, idx := item.account, item.index
					return s, func() tea.Msg {
						return AccountEditMsg{Account: acct, Index: idx}
					}
				}
				return s, nil

			case "n":
				return s, func() tea.Msg { return AccountCreateMsg{} }

			case "x":
				if item, ok := s.list.SelectedItem().(accountItem); ok {
					acct := item.account
					// Remove from list UI
					index := s.list.Index()
					if index >= 0 && index < len(s.list.Items()) {
						s.list.RemoveItem(index)
					}
					// Emit message for parent to handle persistence
					var statusCmd tea.Cmd
					if len(s.list.Items()) == 0 {
						statusCmd = s.list.NewStatusMessage("All accounts deleted")
					} else {
						statusCmd = s.list.NewStatusMessage("Deleted account")
					}
					return s, tea.Batch(
						statusCmd,
						func() tea.Msg { return AccountDeletedMsg{Account: acct} },
					)
				}
				return s, nil
			}
		}
	}

	// Delegate all other messages to the list
	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

// View implements tea.Model
func (s *AccountsScreen) View() string {
	return style.AppStyle.Render(s.list.View())
}

// SetSize updates the screen dimensions
func (s *AccountsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	h, v := style.AppStyle.GetFrameSize()
	s.list.SetSize(width-h, height-v)
}

// SetAccounts replaces the listed accounts
func (s *AccountsScreen) SetAccounts(accounts []Account) tea.Cmd {
	return s.list.SetItems(accountItems(accounts))
}

// accountItem represents an account in the list
type accountItem struct {
	account Account
	index   int
}

func (i accountItem) FilterValue() string {
	return i.account.Name + " " + i.account.JID
}

func (i accountItem) Title() string {
	if i.account.Name == "" {
		return i.account.JID
	}
	return i.account.Name
}

func (i accountItem) Description() string { return i.account.JID }

// newAccountDelegate creates a custom delegate for account list items
func newAccountDelegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()

	choose := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "use"))
	edit := key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit"))
	create := key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new"))
	remove := key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "delete"))

	d.ShortHelpFunc = func() []key.Binding {
		return []key.Binding{choose, edit, create, remove}
	}
	d.FullHelpFunc = func() [][]key.Binding {
		return [][]key.Binding{
			{choose, edit, create, remove, key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter"))},
		}
	}

	return d
}
