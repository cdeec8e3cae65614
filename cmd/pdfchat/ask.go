package main

import (
	"errors"
	"fmt"
	"strings"

	"pdfchat/internal/domain"
)

// Run executes the ask command.
func (c *AskCmd) Run(deps *Dependencies) error {
	question := strings.TrimSpace(strings.Join(c.Question, " "))
	if question == "" {
		return errors.New("question required")
	}

	out, err := deps.Indexes.Index(deps.Ctx)
	if err != nil {
		fmt.Fprintln(deps.Stderr, "Failed to load or create the index. Please check your data and try again.")
		return err
	}
	reportOutcome(deps.Stderr, out)

	answer, err := deps.Session.Submit(deps.Ctx, question)
	if err != nil {
		if errors.Is(err, domain.ErrIndexUnavailable) {
			fmt.Fprintln(deps.Stderr, "Failed to load or create the index. Please check your data and try again.")
		}
		return err
	}

	fmt.Fprintln(deps.Stdout, answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Fprintf(deps.Stdout, "\nSources: %s\n", strings.Join(answer.Sources, ", "))
	}
	return nil
}
