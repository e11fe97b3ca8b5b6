package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/nftvault/pkg/client"
	"github.com/naveenspark/nftvault/pkg/domain"
)

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestInventoryModel(items []domain.Item) inventoryModel {
	m := newInventoryModel(&fakeLoader{items: items}, "4242")
	m.width = 80
	m.height = 30
	m, _ = m.Update(inventoryLoadedMsg{items: items})
	return m
}

func TestInventoryRendersItems(t *testing.T) {
	m := newTestInventoryModel(testItems)
	view := m.View()
	for _, want := range []string{"Gem-1", "Ring-2", "vault.example/nft/Gem-1"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected %q in inventory view, got:\n%s", want, view)
		}
	}
}

func TestInventoryTruncatesLongNames(t *testing.T) {
	m := newTestInventoryModel([]domain.Item{{ID: "AnExtremelyLongCollectibleName-99", Link: "https://vault.example/nft/x"}})
	view := m.View()
	if !strings.Contains(view, "AnExtremelyLongCo...") {
		t.Errorf("expected truncated name, got:\n%s", view)
	}
	if strings.Contains(view, "AnExtremelyLongCollectibleName-99") {
		t.Error("full name should not be rendered")
	}
}

func TestInventoryEmpty(t *testing.T) {
	m := newTestInventoryModel(nil)
	if !strings.Contains(m.View(), "Your inventory is empty.") {
		t.Errorf("expected empty message, got:\n%s", m.View())
	}
}

func TestInventoryBackendError(t *testing.T) {
	m := newInventoryModel(&fakeLoader{}, "4242")
	m, _ = m.Update(inventoryLoadedMsg{err: &client.RejectedError{StatusCode: 200, Message: "User not found"}})
	if !strings.Contains(m.View(), "Error: User not found") {
		t.Errorf("expected backend error, got:\n%s", m.View())
	}

	m, _ = m.Update(inventoryLoadedMsg{err: errors.New("dial tcp: refused")})
	if !strings.Contains(m.View(), "Error: "+client.ConnectivityMessage) {
		t.Errorf("expected connectivity message, got:\n%s", m.View())
	}
}

func TestInventoryLoadingState(t *testing.T) {
	m := newInventoryModel(&fakeLoader{}, "4242")
	if !strings.Contains(m.View(), "loading...") {
		t.Errorf("expected loading state, got:\n%s", m.View())
	}
}

func TestInventoryNavigation(t *testing.T) {
	m := newTestInventoryModel(testItems)
	m, _ = m.Update(runeKey("j"))
	if m.cursor != 1 {
		t.Fatalf("cursor = %d after j, want 1", m.cursor)
	}
	m, _ = m.Update(runeKey("j"))
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want clamp at 1", m.cursor)
	}
	m, _ = m.Update(runeKey("k"))
	if m.cursor != 0 {
		t.Errorf("cursor = %d after k, want 0", m.cursor)
	}
}

func TestInventoryWithdrawKeyEmitsRequest(t *testing.T) {
	m := newTestInventoryModel(testItems)
	m, _ = m.Update(runeKey("j"))
	_, cmd := m.Update(runeKey("w"))
	if cmd == nil {
		t.Fatal("expected a command from w")
	}
	msg, ok := cmd().(withdrawRequestedMsg)
	if !ok || msg.itemID != "Ring-2" {
		t.Errorf("got %#v, want withdrawRequestedMsg{Ring-2}", msg)
	}
}

func TestInventoryActionsNeedSelection(t *testing.T) {
	m := newTestInventoryModel(nil)
	for _, k := range []string{"w", "o", "c"} {
		if _, cmd := m.Update(runeKey(k)); cmd != nil {
			t.Errorf("key %q on empty inventory returned a command", k)
		}
	}
}

func TestInventoryReload(t *testing.T) {
	loader := &fakeLoader{items: testItems}
	m := newInventoryModel(loader, "4242")
	m, _ = m.Update(inventoryLoadedMsg{items: testItems})

	m, cmd := m.Update(runeKey("r"))
	if cmd == nil || !m.loading {
		t.Fatal("expected reload command and loading state")
	}
	msg := cmd()
	if _, ok := msg.(inventoryLoadedMsg); !ok || loader.calls != 1 {
		t.Errorf("reload produced %T, loader calls = %d", msg, loader.calls)
	}
}

func TestInventoryCopyStatus(t *testing.T) {
	m := newTestInventoryModel(testItems)
	m, _ = m.Update(copyResultMsg{})
	if !strings.Contains(m.View(), "link copied") {
		t.Errorf("expected copy status, got:\n%s", m.View())
	}
	m, _ = m.Update(copyResultMsg{err: errors.New("no clipboard")})
	if !strings.Contains(m.View(), "copy failed: no clipboard") {
		t.Errorf("expected copy failure, got:\n%s", m.View())
	}
}

func TestInventoryShowsSelectedIcon(t *testing.T) {
	m := newTestInventoryModel([]domain.Item{
		{ID: "Gem-1", Link: "https://vault.example/nft/Gem-1"},
		{ID: "Ring-2", Link: "https://vault.example/nft/Ring-2", Icon: "https://img.example/ring.png"},
	})
	if !strings.Contains(m.View(), "icon  "+domain.DefaultIcon) {
		t.Errorf("expected default icon for Gem-1, got:\n%s", m.View())
	}
	m, _ = m.Update(runeKey("j"))
	if !strings.Contains(m.View(), "icon  https://img.example/ring.png") {
		t.Errorf("expected Ring-2 icon, got:\n%s", m.View())
	}
}
