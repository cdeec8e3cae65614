package main

import "fmt"

// Run executes the clear command.
func (c *ClearCmd) Run(deps *Dependencies) error {
	if err := deps.Indexes.Clear(); err != nil {
		return fmt.Errorf("error clearing index: %w", err)
	}
	fmt.Fprintln(deps.Stdout, "Index cleared successfully!")
	return nil
}
