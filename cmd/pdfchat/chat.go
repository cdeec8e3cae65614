package main

import (
	tea "github.com/charmbracelet/bubbletea"

	"pdfchat/internal/tui"
)

// Run executes the chat command.
func (c *ChatCmd) Run(deps *Dependencies) error {
	m := tui.New(deps.Ctx, deps.Session, deps.Indexes, deps.Diagnostics)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(deps.Ctx))
	_, err := p.Run()
	return err
}
