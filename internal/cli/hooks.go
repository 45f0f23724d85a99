package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/packforge/packforge/internal/hooks"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks [path]",
	Short: "List the release hooks and which are active",
	Long: `List the builtin hooks, the hook plugins found in the hooks
directory, and the hooks that would run for the package in the given
directory.

Hook order matters: hooks run in the order they are configured, and the
first veto stops the release.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHooks,
}

func init() {
	rootCmd.AddCommand(hooksCmd)
}

func runHooks(cmd *cobra.Command, args []string) error {
	printTitle("Release hooks")
	fmt.Println()

	printSubtle("builtin:")
	for _, name := range hooks.BuiltinNames() {
		fmt.Printf("  %s\n", name)
	}

	plugins := pluginHookNames(cfg.Hooks.Dir)
	if len(plugins) > 0 {
		fmt.Println()
		printSubtle(fmt.Sprintf("plugins (%s):", cfg.Hooks.Dir))
		for _, name := range plugins {
			fmt.Printf("  %s\n", name)
		}
	}

	ws, err := openWorkspace(args)
	if err != nil {
		// No package here; the inventory above is still useful.
		logger.Debug("no package metadata", "error", err)
		return nil
	}

	fmt.Println()
	active := ws.hookNames()
	if len(active) == 0 {
		printInfo(fmt.Sprintf("no hooks configured for %s", ws.pkg.QualifiedName()))
		return nil
	}

	source := "tool configuration"
	if len(ws.pkg.Config.ReleaseHooks) > 0 {
		source = "package override"
	}
	printSubtle(fmt.Sprintf("active for %s (%s):", ws.pkg.QualifiedName(), source))
	for i, name := range active {
		fmt.Printf("  %d. %s\n", i+1, name)
	}
	return nil
}

// pluginHookNames scans the hooks directory for executables, stripping
// the optional packforge-hook- prefix.
func pluginHookNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.Mode()&0o111 == 0 {
			continue
		}
		names = append(names, strings.TrimPrefix(filepath.Base(entry.Name()), "packforge-hook-"))
	}
	sort.Strings(names)
	return names
}
