package internal

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/jhalter/xmpp-shell/internal/style"
)

// Messages sent from SnippetsScreen to parent
type SnippetSelectedMsg struct {
	Snippet Snippet
}

type SnippetsCancelledMsg struct{}

// SnippetsScreen lists stanza templates that can be inserted into the draft
type SnippetsScreen struct {
	list          list.Model
	width, height int
	model         *Model
}

func NewSnippetsScreen(snippets []Snippet, m *Model) *SnippetsScreen {
	items := make([]list.Item, len(snippets))
	for i, sn := range snippets {
		items[i] = snippetItem{snippet: sn}
	}

	h, v := style.AppStyle.GetFrameSize()

	d := list.NewDefaultDelegate()
	insert := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "insert"))
	d.ShortHelpFunc = func() []key.Binding { return []key.Binding{insert} }
	d.FullHelpFunc = func() [][]key.Binding { return [][]key.Binding{{insert}} }

	l := list.New(items, d, m.width-h, m.height-v)
	l.Title = "Snippets"
	l.Filter = fuzzyFilter
	l.SetFilteringEnabled(true)
	l.SetShowStatusBar(true)
	l.SetStatusBarItemName("snippet", "snippets")
	l.DisableQuitKeybindings()

	return &SnippetsScreen{
		list:   l,
		width:  m.width,
		height: m.height,
		model:  m,
	}
}

// Init implements tea.Model
func (s *SnippetsScreen) Init() tea.Cmd {
	return nil
}

// Update implements ScreenModel
func (s *SnippetsScreen) Update(msg tea.Msg) (ScreenModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.SetSize(msg.Width, msg.Height)
		return s, nil

	case SnippetSelectedMsg:
		s.model.handleSnippetSelectedMsg(msg)
		return s, nil
	case SnippetsCancelledMsg:
		s.model.PopScreen()
		return s, nil

	case tea.KeyMsg:
		if s.list.FilterState() != list.Filtering {
			switch msg.String() {
			case "esc":
				if s.list.FilterState() == list.FilterApplied {
					s.list.ResetFilter()
					return s, nil
				}
				return s, func() tea.Msg { return SnippetsCancelledMsg{} }
			case "enter":
				if item, ok := s.list.SelectedItem().(snippetItem); ok {
					return s, func() tea.Msg { return SnippetSelectedMsg{Snippet: item.snippet} }
				}
				return s, nil
			}
		}
	}

	var cmd tea.Cmd
	s.list, cmd = s.list.Update(msg)
	return s, cmd
}

// View implements tea.Model
func (s *SnippetsScreen) View() string {
	return style.AppStyle.Render(s.list.View())
}

// SetSize updates the screen dimensions
func (s *SnippetsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	h, v := style.AppStyle.GetFrameSize()
	s.list.SetSize(width-h, height-v)
}

type snippetItem struct {
	snippet Snippet
}

func (i snippetItem) FilterValue() string { return i.snippet.Name }
func (i snippetItem) Title() string       { return i.snippet.Name }
func (i snippetItem) Description() string { return i.snippet.Body }
