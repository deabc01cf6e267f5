package main

import (
	"context"
	"fmt"
)

// LoadPersonasCmd imports persona JSON files into the store.
type LoadPersonasCmd struct {
	Dir string `arg:"" help:"Directory containing persona *.json files"`
}

// Run implements the load-personas command.
func (c *LoadPersonasCmd) Run(cli *CLI) error {
	harness, cleanup, err := buildHarness(cli, 0)
	if err != nil {
		return err
	}
	defer cleanup()

	loaded, skipped, err := harness.LoadPersonas(context.Background(), c.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("loaded %d personas, skipped %d existing\n", loaded, skipped)
	return nil
}
