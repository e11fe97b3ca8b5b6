package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/nftvault/internal/withdraw"
	"github.com/naveenspark/nftvault/pkg/domain"
)

// App is the root Bubbletea model.
type App struct {
	auth      *withdraw.Authorizer
	inventory inventoryModel
	flow      withdrawModel
	flowOpen  bool
	helpOpen  bool
	pending   string // item to withdraw once the inventory arrives
	width     int
	height    int
	frame     int // logo shimmer animation frame
}

// NewApp creates the TUI for userID's inventory. Withdrawals go through auth.
func NewApp(l InventoryLoader, auth *withdraw.Authorizer, userID string) App {
	return App{
		auth:      auth,
		inventory: newInventoryModel(l, userID),
	}
}

// WithWithdrawal opens the withdrawal flow for itemID as soon as the inventory
// has loaded, if the item is in it.
func (a App) WithWithdrawal(itemID string) App {
	a.pending = itemID
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.inventory.Init(), shimmerTickCmd())
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: header(2) + help(1) = 3 lines
		a.inventory, _ = a.inventory.Update(tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 3})
		return a, nil

	case shimmerTickMsg:
		a.frame++
		a.flow, _ = a.flow.Update(msg)
		return a, shimmerTickCmd()

	case inventoryLoadedMsg:
		a.inventory, _ = a.inventory.Update(msg)
		if a.pending != "" && msg.err == nil {
			id := a.pending
			a.pending = ""
			if _, ok := domain.FindItem(a.inventory.items, id); !ok {
				a.inventory.status = fmt.Sprintf("%s is not in your inventory", id)
				return a, nil
			}
			return a.openFlow(id)
		}
		return a, nil

	case withdrawRequestedMsg:
		return a.openFlow(msg.itemID)

	case loginResultMsg, withdrawResultMsg:
		// Results always reach the authorizer, which drops stale ones.
		if a.flow.auth == nil {
			return a, nil
		}
		a.flow, _ = a.flow.Update(msg)
		return a, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			if a.flowOpen {
				a.auth.Cancel()
			}
			return a, tea.Quit
		}

		if a.helpOpen {
			switch msg.String() {
			case "h", "esc":
				a.helpOpen = false
			case "q":
				return a, tea.Quit
			}
			return a, nil
		}

		// The flow captures all keys when open
		if a.flowOpen {
			var cmd tea.Cmd
			a.flow, cmd = a.flow.Update(msg)
			if a.flow.closed {
				return a.closeFlow()
			}
			return a, cmd
		}

		switch msg.String() {
		case "h":
			a.helpOpen = true
			return a, nil
		case "q":
			return a, tea.Quit
		}
	}

	var cmd tea.Cmd
	a.inventory, cmd = a.inventory.Update(msg)
	return a, cmd
}

func (a App) openFlow(itemID string) (App, tea.Cmd) {
	if err := a.auth.Begin(itemID); err != nil {
		a.inventory.status = err.Error()
		return a, nil
	}
	item, ok := domain.FindItem(a.inventory.items, itemID)
	if !ok {
		item = domain.Item{ID: itemID}
	}
	a.flow = newWithdrawModel(a.auth, item)
	a.flowOpen = true
	a.helpOpen = false
	return a, nil
}

func (a App) closeFlow() (App, tea.Cmd) {
	a.flowOpen = false
	if a.flow.completed {
		a.inventory.status = fmt.Sprintf("withdrawal of %s submitted", a.flow.item.DisplayName())
		a.inventory.loading = true
		return a, a.inventory.load()
	}
	return a, nil
}

func (a App) View() string {
	logo := renderShimmerLogo(a.frame)
	logoPad := (a.width - lipgloss.Width(logo)) / 2
	if logoPad < 0 {
		logoPad = 0
	}
	header := strings.Repeat(" ", logoPad) + logo + "\n"

	var body, help string
	switch {
	case a.helpOpen:
		body = helpView()
		help = helpBar(helpEntry("esc", "close"), helpEntry("q", "quit"))
	case a.flowOpen:
		body = a.flow.View()
		help = a.flow.helpKeys()
	default:
		body = a.inventory.View()
		help = a.inventory.helpKeys()
	}

	chrome := 3
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n%s\n%s", header, body, help)
}
