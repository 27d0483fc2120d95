package main

import (
	"context"
	"encoding/json"
	"fmt"

	cli "github.com/urfave/cli/v3"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"

	appTemporal "translation-orchestrator/internal/temporal"
)

type workflowClient interface {
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
	Close()
}

type dialFunc func(command *cli.Command) (workflowClient, error)

func dialTemporal(command *cli.Command) (workflowClient, error) {
	c, err := client.Dial(client.Options{
		HostPort:  command.String("temporal-address"),
		Namespace: command.String("namespace"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect temporal: %w", err)
	}
	return c, nil
}

func workflowID(command *cli.Command) (string, error) {
	requestID := command.Args().First()
	if requestID == "" {
		return "", fmt.Errorf("request id is required")
	}
	return fmt.Sprintf("%s-%s", command.String("workflow-prefix"), requestID), nil
}

func newSignalCommand(name, usage string, dial dialFunc) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<request-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "operator",
				Usage:   "Who sends the signal",
				Sources: cli.EnvVars("USER"),
			},
			&cli.StringFlag{
				Name:  "reason",
				Usage: "Free text recorded with the signal",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := workflowID(command)
			if err != nil {
				return err
			}
			c, err := dial(command)
			if err != nil {
				return err
			}
			defer c.Close()

			signal := appTemporal.ControlSignal{
				Operator: command.String("operator"),
				Reason:   command.String("reason"),
			}
			if err := c.SignalWorkflow(ctx, id, "", appTemporal.SignalNames[name], signal); err != nil {
				return fmt.Errorf("signal %s: %w", id, err)
			}
			fmt.Fprintf(command.Root().Writer, "%s signal sent to %s\n", name, id)
			return nil
		},
	}
}

func newStatusCommand(dial dialFunc) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "Show the live state of a translation workflow",
		ArgsUsage: "<request-id>",
		Action: func(ctx context.Context, command *cli.Command) error {
			id, err := workflowID(command)
			if err != nil {
				return err
			}
			c, err := dial(command)
			if err != nil {
				return err
			}
			defer c.Close()

			val, err := c.QueryWorkflow(ctx, id, "", appTemporal.StatusQueryName)
			if err != nil {
				return fmt.Errorf("query %s: %w", id, err)
			}
			var view appTemporal.StatusView
			if err := val.Get(&view); err != nil {
				return fmt.Errorf("decode status: %w", err)
			}

			enc := json.NewEncoder(command.Root().Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(view)
		},
	}
}
