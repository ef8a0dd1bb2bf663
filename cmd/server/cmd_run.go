package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/duragraph/duragraph/cmd/server/config"
	"github.com/duragraph/duragraph/internal/infrastructure/cli"
	"github.com/duragraph/duragraph/internal/infrastructure/composition"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var input string
	var sessionID string
	var stream bool

	cmd := &cobra.Command{
		Use:   "run <graph.json>",
		Short: "Run a workflow graph once against an input and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := cli.LoadGraph(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			rt := composition.Build(cfg, eventbus.New(), nil, nil)
			opts := rt.Options
			opts.SessionID = sessionID
			if stream {
				opts.Callbacks.OnToken = func(tok string) { fmt.Print(tok) }
			}

			result, err := rt.Engine.Run(context.Background(), graph, input, nil, opts)
			if err != nil {
				return err
			}

			if stream {
				fmt.Println()
				return nil
			}

			out, _ := json.MarshalIndent(map[string]interface{}{
				"output":       result.Output,
				"nodeChain":    result.NodeChain,
				"nodeStatuses": result.NodeStatuses,
			}, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "initial input text for the run's start node")
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to share memory/history across runs")
	cmd.Flags().BoolVar(&stream, "stream", false, "print tokens as they stream instead of the final JSON result")
	return cmd
}
