package main

import (
	"github.com/hupe1980/personamesh"
	"github.com/hupe1980/personamesh/store"
)

// buildHarness assembles a Harness from the global CLI flags. A gateWidth of
// zero keeps the default. The returned cleanup closes the store.
func buildHarness(cli *CLI, gateWidth int) (*personamesh.Harness, func(), error) {
	logger := createLogger(cli.LogLevel, cli.LogFormat)

	var s store.Store
	if cli.Database != "" {
		db, err := store.Open(cli.Database)
		if err != nil {
			return nil, nil, err
		}
		s = db
	} else {
		s = store.NewMemory()
	}

	harness, err := personamesh.New(func(o *personamesh.Options) {
		o.ConfigRoot = cli.ConfigRoot
		o.Store = s
		o.Logger = logger
		if gateWidth > 0 {
			o.GateWidth = gateWidth
		}
	})
	if err != nil {
		s.Close()
		return nil, nil, err
	}

	return harness, func() { s.Close() }, nil
}
