package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/forgebuild/forge/internal/config"
	"github.com/forgebuild/forge/internal/orchestrator"
	"github.com/forgebuild/forge/internal/plugin"
	"github.com/forgebuild/forge/internal/target"
)

var buildCmd = &cobra.Command{
	Use:   "build [module]",
	Short: "build the project, or a single module and its dependencies",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBuild,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "remove the output directory and the incremental cache",
	RunE:  runClean,
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts, err := buildOptions()
	if err != nil {
		return err
	}

	o := orchestrator.New(opts)

	var summary *orchestrator.BuildRunSummary
	if len(args) == 1 {
		summary, err = o.BuildTarget(ctx, args[0])
	} else {
		summary, err = o.Run(ctx)
	}
	if err != nil {
		return err
	}
	printSummary(summary)
	if len(summary.ModulesFailed) > 0 {
		return fmt.Errorf("%d module(s) failed to build", len(summary.ModulesFailed))
	}
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	proj, err := config.Load(flagRoot, plugin.Default().IsRegistered)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(proj.OutputDir); err != nil {
		return err
	}
	cacheDir := proj.Root + "/.forge"
	if err := os.RemoveAll(cacheDir); err != nil {
		return err
	}
	fmt.Println(okColor("clean:"), "removed", proj.OutputDir, "and", cacheDir)
	return nil
}

// buildOptions resolves CLI flags into an orchestrator.Options, loading
// forge.json and validating module languages against the plugin host.
func buildOptions() (orchestrator.Options, error) {
	host := plugin.Default()

	proj, err := config.Load(flagRoot, host.IsRegistered)
	if err != nil {
		return orchestrator.Options{}, err
	}
	if flagJobs > 0 {
		proj.MaxJobs = flagJobs
	}

	t := target.Native()
	if flagTarget != "" && flagTarget != "native" {
		t, err = target.Parse(flagTarget)
		if err != nil {
			return orchestrator.Options{}, err
		}
	}

	return orchestrator.Options{
		Project:  proj,
		Host:     host,
		Target:   t,
		Profile:  flagProfile,
		Progress: progressReporter(),
	}, nil
}

// progressReporter renders phase progress as colored status lines, but
// only when stdout is an actual terminal (spec's CLI-only status output
// stays silent for scripted/piped invocations).
func progressReporter() orchestrator.ProgressFunc {
	interactive := isatty.IsTerminal(os.Stdout.Fd())
	return func(phase orchestrator.Phase, message string, current, total int) {
		if !interactive && !flagVerbose {
			return
		}
		label := color.New(color.FgCyan).Sprintf("[%s]", phase)
		if total > 0 {
			fmt.Printf("%s %s (%d/%d)\n", label, message, current, total)
		} else {
			fmt.Printf("%s %s\n", label, message)
		}
	}
}

func printSummary(s *orchestrator.BuildRunSummary) {
	if s.Plan != "" {
		fmt.Println(s.Plan)
		return
	}
	fmt.Printf("%s %d built, %d cached, %d failed (%s)\n",
		okColor("build complete:"), len(s.ModulesBuilt), len(s.ModulesCached), len(s.ModulesFailed),
		s.FinishedAt.Sub(s.StartedAt))
	for _, m := range s.ModulesFailed {
		fmt.Println(" ", errColor("FAILED"), m)
	}
}
