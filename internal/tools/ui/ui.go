package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	spinnerChars = []string{"|", "/", "-", "\\"}
)

type doneMsg struct {
	details []string
	err     error
}

type tickMsg struct{}

type model struct {
	title   string
	frame   int
	done    bool
	details []string
	err     error
}

func (m model) Init() tea.Cmd { return tick() }

func tick() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame++
		return m, tick()
	case doneMsg:
		m.done = true
		m.details = msg.details
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			m.err = context.Canceled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	if m.done {
		if m.err != nil {
			b.WriteString(failStyle.Render("✗ " + m.title))
		} else {
			b.WriteString(okStyle.Render("✓ " + m.title))
		}
	} else {
		b.WriteString(titleStyle.Render(spinnerChars[m.frame%len(spinnerChars)] + " " + m.title))
	}
	b.WriteString("\n")
	for _, d := range m.details {
		b.WriteString(detailStyle.Render("  " + d))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(failStyle.Render("  error: " + m.err.Error()))
		b.WriteString("\n")
	}
	return b.String()
}

// Run executes fn under a spinner and returns its detail lines. Meant for
// the interactive CLI path; CI callers invoke fn directly.
func Run(title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	p := tea.NewProgram(model{title: title})
	var (
		details []string
		runErr  error
	)
	go func() {
		details, runErr = fn(ctx)
		p.Send(doneMsg{details: details, err: runErr})
	}()

	if _, err := p.Run(); err != nil {
		return details, fmt.Errorf("run ui: %w", err)
	}
	return details, runErr
}
