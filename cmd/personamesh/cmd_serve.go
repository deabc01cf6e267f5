package main

import (
	"fmt"
	"net/http"
	"time"
)

// ServeCmd starts the HTTP API server.
type ServeCmd struct {
	Addr      string `default:":8080" help:"Listen address"`
	GateWidth int    `default:"3" help:"Max concurrent sessions per batch"`
}

// Run implements the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	logger := createLogger(cli.LogLevel, cli.LogFormat)

	harness, cleanup, err := buildHarness(cli, c.GateWidth)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              c.Addr,
		Handler:           harness.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server listening", "addr", c.Addr, "config_root", cli.ConfigRoot)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
