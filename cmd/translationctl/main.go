package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
)

func main() {
	if err := newApp(dialTemporal).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp(dial dialFunc) *cli.Command {
	return &cli.Command{
		Name:                  "translationctl",
		Usage:                 "Operate translation workflows",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "temporal-address",
				Usage:   "Temporal frontend host:port",
				Value:   "localhost:7233",
				Sources: cli.EnvVars("TEMPORAL_ADDRESS"),
			},
			&cli.StringFlag{
				Name:    "namespace",
				Usage:   "Temporal namespace",
				Value:   "default",
				Sources: cli.EnvVars("TEMPORAL_NAMESPACE"),
			},
			&cli.StringFlag{
				Name:    "workflow-prefix",
				Usage:   "Prefix of translation workflow ids",
				Value:   "translation",
				Sources: cli.EnvVars("WORKFLOW_ID_PREFIX"),
			},
		},
		Commands: []*cli.Command{
			newSignalCommand("retry", "Retry an escalated action now", dial),
			newSignalCommand("cancel", "Withdraw the submission from the provider", dial),
			newSignalCommand("abort", "Stop the workflow without contacting the provider", dial),
			newStatusCommand(dial),
			newDelayCommand(),
		},
	}
}
