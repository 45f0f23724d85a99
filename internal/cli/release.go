package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/packforge/packforge/internal/buildproc"
)

var (
	releaseMessage        string
	releaseVariants       []int
	releaseProcess        string
	releaseSkipRepoErrors bool
	releaseNoLatest       bool
	releaseIgnoreTag      bool
)

var releaseCmd = &cobra.Command{
	Use:   "release [path]",
	Short: "Build and release the package",
	Long: `Release the package in the given directory (default: the current
directory).

A release runs the safety checks first: the working copy must be clean,
the release tag must not exist yet, the package identity must match the
released history, and the version must be newer than anything already
released. Every variant is then built against the shared package paths
and installed into the release path, the working copy is tagged, and
the release hooks run.

Nothing is rolled back when a late variant fails; the release tag is
only created after every variant installed.

Examples:
  # Release with a message
  packforge release -m "maya 2024.1 rollout"

  # Re-release after a partial failure, skipping the tag check
  packforge release --ignore-existing-tag

  # Release even though the repository is flaky
  packforge release --skip-repo-errors`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRelease,
}

func init() {
	rootCmd.AddCommand(releaseCmd)
	releaseCmd.Flags().StringVarP(&releaseMessage, "message", "m", "", "release message recorded with the tag")
	releaseCmd.Flags().IntSliceVar(&releaseVariants, "variants", nil, "variant indices to release (default: all)")
	releaseCmd.Flags().StringVar(&releaseProcess, "process", buildproc.ProcessLocal, "build process strategy")
	releaseCmd.Flags().BoolVar(&releaseSkipRepoErrors, "skip-repo-errors", false, "downgrade repository errors to warnings")
	releaseCmd.Flags().BoolVar(&releaseNoLatest, "no-latest", false, "allow releasing a version older than the latest release")
	releaseCmd.Flags().BoolVar(&releaseIgnoreTag, "ignore-existing-tag", false, "skip the tag collision check for this run")
}

func runRelease(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ws, err := openWorkspace(args)
	if err != nil {
		return err
	}

	printTitle(fmt.Sprintf("Releasing %s", ws.pkg.QualifiedName()))
	fmt.Println()

	adapter, err := ws.openVCS()
	if err != nil {
		return err
	}

	loaded, manager, err := ws.loadHooks()
	if err != nil {
		return err
	}
	defer manager.Close()

	pcfg, err := ws.processConfig(adapter, loaded)
	if err != nil {
		return err
	}

	// Per-run flags override the configuration.
	if releaseSkipRepoErrors {
		pcfg.SkipErrors = true
	}
	if releaseNoLatest {
		pcfg.EnsureLatest = false
	}
	if releaseIgnoreTag {
		pcfg.IgnoreExistingTag = true
	}

	proc, err := buildproc.NewProcess(releaseProcess, pcfg)
	if err != nil {
		return err
	}

	result, err := proc.Release(ctx, buildproc.ReleaseOptions{
		Message:  releaseMessage,
		Variants: releaseVariants,
	})
	if err != nil {
		return err
	}

	printReleaseResult(result)
	debugSnapshot()
	return nil
}

func printReleaseResult(result *buildproc.ReleaseResult) {
	fmt.Println()
	printSuccess(fmt.Sprintf("Released %s (%d variants)", result.Package, result.Visited))
	printSubtle(fmt.Sprintf("  tag:      %s", result.TagName))
	if result.Revision != "" {
		printSubtle(fmt.Sprintf("  revision: %s", result.Revision))
	}
	if result.PreviousVersion != "" {
		printSubtle(fmt.Sprintf("  previous: %s", result.PreviousVersion))
	}
	if verbose {
		for _, tr := range result.Transitions {
			printSubtle(fmt.Sprintf("  %-7s %s -> %s", tr.Event, tr.From, tr.To))
		}
	}
}
