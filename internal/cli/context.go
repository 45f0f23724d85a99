package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/resolver"
)

var (
	contextVariant int
	contextFile    string
	contextEnviron bool
)

var contextCmd = &cobra.Command{
	Use:   "context [path]",
	Short: "Inspect a variant's persisted build context",
	Long: `Print the build context persisted by the last build of a variant.

Build contexts stay on disk even when resolution failed, so this is the
first stop when a build cannot resolve its environment.

Examples:
  # Context of variant 0 in the current directory
  packforge context

  # Context of variant 2
  packforge context --variant 2

  # A context file somewhere else
  packforge context --file /tmp/build/build.rctx`,
	Args: cobra.MaximumNArgs(1),
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)
	contextCmd.Flags().IntVar(&contextVariant, "variant", 0, "variant index to inspect")
	contextCmd.Flags().StringVar(&contextFile, "file", "", "context file to inspect instead of a variant's")
	contextCmd.Flags().BoolVar(&contextEnviron, "environ", false, "print the resolved environment")
}

func runContext(cmd *cobra.Command, args []string) error {
	path := contextFile
	if path == "" {
		ws, err := openWorkspace(args)
		if err != nil {
			return err
		}
		variant, ok := ws.pkg.Variant(contextVariant)
		if !ok {
			return pferrors.Buildf("cli.context", "package does not contain the variants: %d", contextVariant)
		}
		path = filepath.Join(ws.variantBuildDir(variant), resolver.ContextFileName)
	}

	bctx, err := resolver.LoadContext(path)
	if err != nil {
		return err
	}

	printTitle(fmt.Sprintf("Build context %s", path))
	fmt.Println()

	switch {
	case bctx.Solved():
		printSuccess(fmt.Sprintf("status: %s", bctx.Status))
	default:
		printError(fmt.Sprintf("status: %s", bctx.Status))
		if bctx.FailureDescription != "" {
			printWarning(bctx.FailureDescription)
		}
	}
	printSubtle(fmt.Sprintf("created: %s", bctx.CreatedAt.Format("2006-01-02 15:04:05 MST")))
	fmt.Println()

	printSubtle("requests:")
	for _, req := range bctx.Requests {
		fmt.Printf("  %s\n", req)
	}

	if len(bctx.Resolved) > 0 {
		fmt.Println()
		printSubtle("resolved:")
		for _, rp := range bctx.Resolved {
			fmt.Printf("  %-24s %s\n", rp.Name+"-"+rp.Version, rp.Root)
		}
	}

	if contextEnviron && len(bctx.Environ) > 0 {
		fmt.Println()
		printSubtle("environ:")
		for _, kv := range bctx.EnvironList() {
			fmt.Printf("  %s\n", kv)
		}
	}

	return nil
}
