package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kevshake/isogateway/internal/store"
)

func TestStatusModelRendersActiveTerminals(t *testing.T) {
	t.Parallel()
	repo := store.NewMemRepository()
	_, err := repo.SaveTerminal(context.Background(), &store.Terminal{
		TerminalID: "TERM0001",
		Status:     store.TerminalActive,
		KeyRef:     "K1",
	})
	if err != nil {
		t.Fatalf("SaveTerminal: %v", err)
	}

	model := NewStatusModel(repo)
	terminals, err := repo.ActiveTerminals(context.Background())
	if err != nil {
		t.Fatalf("ActiveTerminals: %v", err)
	}

	updated, _ := model.Update(snapshotMsg{terminals: terminals})
	m := updated.(StatusModel)

	view := m.View()
	if !strings.Contains(view, "TERM0001") {
		t.Errorf("expected view to list terminal, got: %s", view)
	}
	if !strings.Contains(view, "K1") {
		t.Errorf("expected view to list key ref, got: %s", view)
	}
}

func TestStatusModelQuitsOnQ(t *testing.T) {
	t.Parallel()
	model := NewStatusModel(store.NewMemRepository())

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m := updated.(StatusModel)
	if !m.quitting {
		t.Error("expected quitting to be set")
	}
	if cmd == nil {
		t.Error("expected a quit command")
	}
}

func TestStatusModelShowsEmptyState(t *testing.T) {
	t.Parallel()
	model := NewStatusModel(store.NewMemRepository())

	updated, _ := model.Update(snapshotMsg{terminals: nil})
	m := updated.(StatusModel)

	if !strings.Contains(m.View(), "no active terminals") {
		t.Error("expected empty-state message")
	}
}
