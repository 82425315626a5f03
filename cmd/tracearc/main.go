package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tobert/tracearc/internal/cli"
	cliframework "github.com/urfave/cli/v3"
)

const version = "0.1.0-dev"

func main() {
	app := &cliframework.Command{
		Name:    "tracearc",
		Usage:   "Turn raw distributed-job traces into a linked, annotated archive",
		Version: version,
		Commands: []*cliframework.Command{
			cli.BuildCommand(),
			cli.ServeCommand(),
			cli.DoctorCommand(version),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "❌ error: %v\n", err)
		os.Exit(1)
	}
}
