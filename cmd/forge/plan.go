package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/orchestrator"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "print the build schedule without compiling anything",
	RunE:  runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	opts, err := buildOptions()
	if err != nil {
		return err
	}
	opts.DryRun = true

	summary, err := orchestrator.New(opts).Run(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Println(summary.Plan)
	return nil
}
