// Package tui implements the "isogateway status" administrative dashboard:
// a read-only, periodically refreshed view over the terminal/key store.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kevshake/isogateway/internal/store"
)

const refreshInterval = 2 * time.Second

type tickMsg time.Time

type snapshotMsg struct {
	terminals []*store.Terminal
	err       error
}

// StatusModel is a bubbletea model listing every active terminal, its key
// reference, and key-change count, refreshed every refreshInterval.
type StatusModel struct {
	repo      store.Repository
	terminals []*store.Terminal
	err       error
	quitting  bool
}

// NewStatusModel builds a status dashboard model reading from repo.
func NewStatusModel(repo store.Repository) StatusModel {
	return StatusModel{repo: repo}
}

// Init starts the refresh loop.
func (m StatusModel) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m StatusModel) refresh() tea.Cmd {
	return func() tea.Msg {
		terminals, err := m.repo.ActiveTerminals(context.Background())

		return snapshotMsg{terminals: terminals, err: err}
	}
}

// Update handles refresh ticks and quit keys.
func (m StatusModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true

			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.refresh(), tick())
	case snapshotMsg:
		m.terminals = msg.terminals
		m.err = msg.err
	}

	return m, nil
}

// View renders the terminal table.
func (m StatusModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString("isogateway status\n")
	b.WriteString(strings.Repeat("=", 60) + "\n")

	if m.err != nil {
		fmt.Fprintf(&b, "error loading terminals: %v\n", m.err)

		return b.String()
	}

	if len(m.terminals) == 0 {
		b.WriteString("no active terminals\n")
	} else {
		fmt.Fprintf(&b, "%-12s %-10s %-12s %s\n", "TERMINAL", "STATUS", "KEY REF", "CHANGES")
		for _, t := range m.terminals {
			fmt.Fprintf(&b, "%-12s %-10s %-12s %d\n", t.TerminalID, t.Status, t.KeyRef, t.KeyChangeCount)
		}
	}

	b.WriteString("\nq: quit\n")

	return b.String()
}
