package main

import (
	"fmt"
	"os"

	"github.com/duragraph/duragraph/internal/domain/workflow"
	"github.com/duragraph/duragraph/internal/infrastructure/cli"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <graph.json>",
		Short: "Run static checks against a graph definition and report issues",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			graph, err := cli.LoadGraph(args[0])
			if err != nil {
				return err
			}

			validator := workflow.NewValidator(nil)
			issues := validator.Validate(graph)

			for _, issue := range issues {
				loc := issue.NodeID
				if loc == "" {
					loc = issue.EdgeID
				}
				fmt.Printf("[%s] %s: %s (%s)\n", issue.Severity, issue.Code, issue.Message, loc)
			}

			if workflow.HasErrors(issues) {
				fmt.Fprintln(os.Stderr, "validation failed")
				os.Exit(1)
			}

			fmt.Println("graph is valid")
			return nil
		},
	}
}
