// Package cli provides the command-line interface for Packforge.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/packforge/packforge/internal/config"
	"github.com/packforge/packforge/internal/observability"
)

var (
	// Version information set by main.
	versionInfo struct {
		Version string
		Commit  string
		Date    string
	}

	// Global flags
	cfgFile  string
	verbose  bool
	noColor  bool
	logLevel string

	// Global config
	cfg *config.Config

	// Logger
	logger *log.Logger
)

// Terminal styles for the status line helpers below.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "117"})
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "28", Dark: "40"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "124", Dark: "203"})
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "130", Dark: "215"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "25", Dark: "45"})
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "245", Dark: "240"})
)

// SetVersionInfo sets the version information from main.
func SetVersionInfo(version, commit, date string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.Date = date
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "packforge",
	Short: "Build and release multi-variant packages",
	Long: `Packforge builds and releases packages that ship multiple variants,
one resolved environment per variant.

It reads the package definition from package.toml, resolves each
variant's requirements through the configured resolution engine, runs
the package's build command inside the resolved environment, and
installs the payload into a package repository. Releasing adds the
safety checks a shared repository needs: a clean working copy, tag
collision detection, version monotonicity, and release hooks.

Key features:
  • Declarative variants, built in declaration order
  • Persisted build contexts for debugging failed resolves
  • Tag-driven releases with guard checks and audit records
  • Hook plugins for release gating and notification
  • Watch mode for local edit-build loops

Get started with 'packforge init' to set up a project.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch cmd.Name() {
		case "init", "version", "help":
			// These run before a project configuration exists.
			return nil
		}
		return initConfig()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with a context for graceful shutdown.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Log format and level are configured in initConfig based on flags.
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		ReportCaller:    false,
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "config file (default: packforge.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVar(&noColor, "no-color", false, "disable colored output")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("output.verbose", flags.Lookup("verbose"))
	_ = viper.BindPFlag("output.log_level", flags.Lookup("log-level"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig loads the project configuration, layers the global flags on
// top, and points the logger and metrics at the result.
func initConfig() error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader.WithConfigPath(cfgFile)
	}

	loaded, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	validator := config.NewValidator()
	if err := validator.Validate(loaded); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, warning := range validator.Warnings() {
		logger.Warn(warning)
	}
	cfg = loaded

	applyFlagOverrides()
	configureLogger()
	observability.InitGlobal(versionInfo.Version)
	return nil
}

// applyFlagOverrides layers the global flags over the loaded config.
// Flags win over the file and the environment.
func applyFlagOverrides() {
	if verbose {
		cfg.Output.Verbose = true
	}
	if logLevel != "" {
		cfg.Output.LogLevel = logLevel
	}
	if noColor {
		cfg.Output.Color = false
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

// logLevels maps the configured names onto charmbracelet levels. Unknown
// names fall back to info.
var logLevels = map[string]log.Level{
	"debug": log.DebugLevel,
	"info":  log.InfoLevel,
	"warn":  log.WarnLevel,
	"error": log.ErrorLevel,
}

// configureLogger applies the output settings to the global logger.
func configureLogger() {
	if cfg.Output.Format == "json" {
		logger.SetFormatter(log.JSONFormatter)
		logger.SetReportTimestamp(true)
	} else if !cfg.Output.Color {
		logger.SetFormatter(log.TextFormatter)
	}

	level, ok := logLevels[cfg.Output.LogLevel]
	if !ok {
		level = log.InfoLevel
	}
	if cfg.Output.Verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("packforge %s\n", versionInfo.Version)
		if verbose {
			fmt.Printf("  commit: %s\n", versionInfo.Commit)
			fmt.Printf("  built:  %s\n", versionInfo.Date)
		}
	},
}

// Status line helpers shared by the subcommands.

func printSuccess(msg string) {
	fmt.Println(successStyle.Render("✓ " + msg))
}

func printError(msg string) {
	fmt.Println(errorStyle.Render("✗ " + msg))
}

func printWarning(msg string) {
	fmt.Println(warningStyle.Render("! " + msg))
}

func printInfo(msg string) {
	fmt.Println(infoStyle.Render("* " + msg))
}

func printTitle(msg string) {
	fmt.Println(titleStyle.Render(msg))
}

func printSubtle(msg string) {
	fmt.Println(subtleStyle.Render(msg))
}

// debugSnapshot logs the process metrics after an operation when verbose
// output is on.
func debugSnapshot() {
	if cfg == nil || !cfg.Output.Verbose {
		return
	}
	snap := observability.Global().Snapshot()
	logger.Debug("process metrics",
		"builds", snap.BuildsTotal,
		"builds_failed", snap.BuildsFailed,
		"releases", snap.ReleasesTotal,
		"releases_failed", snap.ReleasesFailed,
		"resolves", snap.ResolvesTotal,
		"hook_runs", snap.HookRunsTotal,
		"uptime", snap.Uptime)
}
