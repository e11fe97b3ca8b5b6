package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/nftvault/internal/browser"
	"github.com/naveenspark/nftvault/pkg/client"
	"github.com/naveenspark/nftvault/pkg/domain"
)

// InventoryLoader fetches the items held for a user.
type InventoryLoader interface {
	ListInventory(ctx context.Context, userID string) ([]domain.Item, error)
}

// -- messages --

type inventoryLoadedMsg struct {
	items []domain.Item
	err   error
}

// withdrawRequestedMsg asks the app to open the withdrawal flow for an item.
type withdrawRequestedMsg struct {
	itemID string
}

type copyResultMsg struct{ err error }

type openResultMsg struct{ err error }

// -- model --

type inventoryModel struct {
	loader  InventoryLoader
	userID  string
	items   []domain.Item
	cursor  int
	err     string
	status  string
	loading bool
	loaded  bool
	width   int
	height  int
}

func newInventoryModel(l InventoryLoader, userID string) inventoryModel {
	return inventoryModel{loader: l, userID: userID, loading: true}
}

func (m inventoryModel) Init() tea.Cmd {
	return m.load()
}

func (m inventoryModel) load() tea.Cmd {
	l := m.loader
	userID := m.userID
	return func() tea.Msg {
		items, err := l.ListInventory(context.Background(), userID)
		return inventoryLoadedMsg{items: items, err: err}
	}
}

// selected returns the item under the cursor.
func (m inventoryModel) selected() (domain.Item, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return domain.Item{}, false
	}
	return m.items[m.cursor], true
}

func (m inventoryModel) Update(msg tea.Msg) (inventoryModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case inventoryLoadedMsg:
		m.loading = false
		m.loaded = true
		if msg.err != nil {
			m.err = client.UserMessage(msg.err)
			m.items = nil
		} else {
			m.items = msg.items
			m.err = ""
			if m.cursor >= len(m.items) {
				m.cursor = 0
			}
		}

	case copyResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("copy failed: %v", msg.err)
		} else {
			m.status = "link copied"
		}

	case openResultMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("open failed: %v", msg.err)
		}

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m inventoryModel) handleKey(msg tea.KeyMsg) (inventoryModel, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case "k", "up":
		if m.cursor > 0 {
			m.cursor--
		}
	case "w", "enter":
		if item, ok := m.selected(); ok {
			m.status = ""
			id := item.ID
			return m, func() tea.Msg { return withdrawRequestedMsg{itemID: id} }
		}
	case "o":
		if item, ok := m.selected(); ok {
			link := item.Link
			return m, func() tea.Msg {
				return openResultMsg{err: browser.Open(link)}
			}
		}
	case "c":
		if item, ok := m.selected(); ok {
			link := item.Link
			return m, func() tea.Msg {
				return copyResultMsg{err: clipboard.WriteAll(link)}
			}
		}
	case "r":
		m.loading = true
		m.status = ""
		return m, m.load()
	}
	return m, nil
}

func (m inventoryModel) View() string {
	var b strings.Builder

	b.WriteString(" " + sectionHeaderStyle.Render("Your NFTs") + "\n\n")

	if m.loading && !m.loaded {
		b.WriteString(" " + dimStyle.Render("loading...") + "\n")
		return b.String()
	}
	if m.err != "" {
		b.WriteString(" " + errorStyle.Render("Error: "+m.err) + "\n")
		return b.String()
	}
	if len(m.items) == 0 {
		b.WriteString(" " + dimStyle.Render("Your inventory is empty.") + "\n")
		return b.String()
	}

	linkWidth := m.width - 28
	for i, item := range m.items {
		cursor := " "
		name := normalStyle.Render(fmt.Sprintf("%-20s", item.DisplayName()))
		if i == m.cursor {
			cursor = accentStyle.Render("▸")
			name = selectedRowBg.Inherit(selectedStyle).Render(fmt.Sprintf("%-20s", item.DisplayName()))
		}
		row := fmt.Sprintf(" %s %s  %s", cursor, name, metaStyle.Render(truncStr(item.Link, linkWidth)))
		b.WriteString(row + "\n")
	}

	if item, ok := m.selected(); ok {
		b.WriteString("\n " + metaStyle.Render("icon  "+truncStr(item.IconURL(), m.width-8)) + "\n")
	}

	if m.loading {
		b.WriteString("\n " + dimStyle.Render("refreshing...") + "\n")
	}
	if m.status != "" {
		b.WriteString("\n " + warnStyle.Render(m.status) + "\n")
	}
	return b.String()
}

func (m inventoryModel) helpKeys() string {
	return helpBar(
		helpEntry("j/k", "nav"),
		helpEntry("w", "withdraw"),
		helpEntry("o", "open"),
		helpEntry("c", "copy"),
		helpEntry("r", "reload"),
		helpEntry("h", "help"),
		helpEntry("q", "quit"),
	)
}
