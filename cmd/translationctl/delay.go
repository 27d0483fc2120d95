package main

import (
	"context"
	"fmt"
	"strings"

	cli "github.com/urfave/cli/v3"

	"translation-orchestrator/internal/domain"
)

// newDelayCommand normalizes retry delay text the way settings are read,
// so operators can check a value before storing it.
func newDelayCommand() *cli.Command {
	return &cli.Command{
		Name:      "delay",
		Usage:     "Parse a retry delay (e.g. 1h30m, 90, 2d) and print its normalized form",
		ArgsUsage: "<delay>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "saturate",
				Usage: "Clamp out-of-range values instead of rejecting them",
			},
		},
		Action: func(_ context.Context, command *cli.Command) error {
			text := strings.Join(command.Args().Slice(), " ")
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("delay text is required")
			}

			parse := domain.ParseRetryDelay
			if command.Bool("saturate") {
				parse = domain.SaturatedParseRetryDelay
			}
			delay, err := parse(text)
			if err != nil {
				return fmt.Errorf("invalid delay %q: %w", text, err)
			}
			fmt.Fprintf(command.Root().Writer, "%s (%d seconds)\n", delay, delay.Seconds())
			return nil
		},
	}
}
