// Command forge is the CLI front-end for the build orchestrator in
// internal/orchestrator. It resolves flags and the host platform into
// options, then hands off to the core; none of the orchestration logic
// lives here (spec §1's CLI/core split).
//
// Grounded on theRebelliousNerd-codenerd's cmd/nerd/main.go rootCmd +
// PersistentFlags layout, adapted from one monolithic interactive agent
// command to forge's build/plan/clean subcommands.
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/target"
)

var (
	flagRoot    string
	flagTarget  string
	flagProfile string
	flagJobs    int
	flagVerbose bool

	errColor = color.New(color.FgRed, color.Bold).SprintFunc()
	okColor  = color.New(color.FgGreen).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge builds polyglot projects from a dependency graph of modules",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return resolveNativeTarget()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVar(&flagTarget, "target", "native", "build target (alias or triple)")
	rootCmd.PersistentFlags().StringVar(&flagProfile, "profile", "debug", "cache profile (e.g. debug, release)")
	rootCmd.PersistentFlags().IntVar(&flagJobs, "jobs", 0, "max concurrent compiles per layer (0 = hardware parallelism)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose progress output")

	rootCmd.AddCommand(buildCmd, planCmd, cleanCmd)
}

// resolveNativeTarget registers the actual host triple once at startup
// (target.Native stays host-agnostic otherwise; spec §4.2).
func resolveNativeTarget() error {
	goarch := runtime.GOARCH
	arch := goarch
	switch goarch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	}
	t, err := target.Parse(fmt.Sprintf("%s-%s", arch, runtime.GOOS))
	if err != nil {
		return err
	}
	target.SetNative(t)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errColor("error:"), err)
		os.Exit(1)
	}
}
