package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// CLI represents the main CLI structure
type CLI struct {
	ConfigRoot string `default:"configs" help:"Directory holding agent config documents"`
	Database   string `help:"Path to the sqlite database (in-memory store when empty)"`
	LogLevel   string `default:"info" help:"Log level (debug, info, warn, error)"`
	LogFormat  string `default:"text" enum:"text,json" help:"Log output format (text, json)"`

	Serve        ServeCmd        `cmd:"" help:"Start the HTTP API server"`
	Run          RunCmd          `cmd:"" help:"Run a single persona session"`
	LoadPersonas LoadPersonasCmd `cmd:"" name:"load-personas" help:"Import persona JSON files into the store"`
}

func main() {
	// Best effort; API keys usually arrive via .env in development.
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("personamesh"),
		kong.Description("Persona-driven testing harness for conversational AI systems"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	err := ctx.Run(&cli)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
