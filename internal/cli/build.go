package cli

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/packforge/packforge/internal/buildproc"
	"github.com/packforge/packforge/internal/fileutil"
	"github.com/packforge/packforge/internal/observability"
)

// watchDebounce coalesces bursts of file events into one rebuild.
const watchDebounce = 500 * time.Millisecond

var (
	buildVariants []int
	buildClean    bool
	buildInstall  bool
	buildPrefix   string
	buildProcess  string
	buildWatch    bool
	metricsAddr   string
)

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build the package's variants",
	Long: `Build every variant of the package in the given directory (default:
the current directory).

Each variant gets its own build directory under the build root, holding
the persisted build context (build.rctx) for that variant's resolved
environment. With --install the built payload lands in the local
package path; --prefix installs somewhere else entirely.

Examples:
  # Build all variants in place
  packforge build

  # Clean build of one variant, installed locally
  packforge build --variants 1 --clean --install

  # Rebuild on every source change, exposing metrics
  packforge build --watch --metrics-addr :9090`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().IntSliceVar(&buildVariants, "variants", nil, "variant indices to build (default: all)")
	buildCmd.Flags().BoolVar(&buildClean, "clean", false, "build from scratch")
	buildCmd.Flags().BoolVarP(&buildInstall, "install", "i", false, "install into the local package path")
	buildCmd.Flags().StringVarP(&buildPrefix, "prefix", "p", "", "install into a custom repository path (implies --install)")
	buildCmd.Flags().StringVar(&buildProcess, "process", buildproc.ProcessLocal, "build process strategy")
	buildCmd.Flags().BoolVarP(&buildWatch, "watch", "w", false, "rebuild whenever source files change")
	buildCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching")
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ws, err := openWorkspace(args)
	if err != nil {
		return err
	}

	if buildWatch {
		return runBuildWatch(ctx, ws)
	}

	result, err := buildOnce(ctx, ws)
	if err != nil {
		return err
	}

	printBuildResult(result)
	debugSnapshot()
	return nil
}

func buildOptions() buildproc.BuildOptions {
	opts := buildproc.BuildOptions{
		Variants:    buildVariants,
		Clean:       buildClean,
		Install:     buildInstall,
		InstallPath: buildPrefix,
	}
	if buildPrefix != "" {
		opts.Install = true
	}
	return opts
}

// buildOnce wires a build process for the workspace and runs one build.
func buildOnce(ctx context.Context, ws *workspace) (*buildproc.BuildResult, error) {
	loaded, manager, err := ws.loadHooks()
	if err != nil {
		return nil, err
	}
	defer manager.Close()

	pcfg, err := ws.processConfig(nil, loaded)
	if err != nil {
		return nil, err
	}

	proc, err := buildproc.NewProcess(buildProcess, pcfg)
	if err != nil {
		return nil, err
	}

	return proc.Build(ctx, buildOptions())
}

func printBuildResult(result *buildproc.BuildResult) {
	fmt.Println()
	printSuccess(fmt.Sprintf("Built %s (%d variants)", result.Package, result.Visited))
	for _, v := range result.Variants {
		if v.InstallPath != "" {
			printSubtle(fmt.Sprintf("  [%d] installed to %s", v.Variant, v.InstallPath))
		} else {
			printSubtle(fmt.Sprintf("  [%d] built in %s", v.Variant, v.BuildPath))
		}
	}
}

// runBuildWatch rebuilds the package whenever its source tree changes.
// The build directory and hidden directories are not watched.
func runBuildWatch(ctx context.Context, ws *workspace) error {
	if metricsAddr != "" {
		stop := startMetricsServer(metricsAddr)
		defer stop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchSourceTree(watcher, ws); err != nil {
		return fmt.Errorf("failed to watch %s: %w", ws.dir, err)
	}

	printInfo(fmt.Sprintf("Watching %s (ctrl-c to stop)", ws.dir))
	watchBuild(ctx, ws)

	debounce := time.NewTimer(watchDebounce)
	if !debounce.Stop() {
		<-debounce.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			printInfo("Stopping watch mode")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ws.ignoredPath(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}
			logger.Debug("source changed", "file", event.Name, "op", event.Op.String())
			// New directories need watching before events arrive from
			// inside them.
			if event.Op&fsnotify.Create != 0 && fileutil.IsDir(event.Name) {
				_ = watcher.Add(event.Name)
			}
			pending = true
			debounce.Reset(watchDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-debounce.C:
			if !pending {
				continue
			}
			pending = false
			if err := ws.reload(); err != nil {
				printError(err.Error())
				continue
			}
			watchBuild(ctx, ws)
		}
	}
}

// watchBuild runs one build iteration, reporting instead of aborting on
// failure so the watch loop keeps running.
func watchBuild(ctx context.Context, ws *workspace) {
	result, err := buildOnce(ctx, ws)
	if err != nil {
		printError(err.Error())
		return
	}
	printBuildResult(result)
}

// watchSourceTree registers the workspace's directories with the watcher,
// skipping hidden directories and the build root.
func watchSourceTree(watcher *fsnotify.Watcher, ws *workspace) error {
	buildRoot := ws.buildRoot()
	return filepath.WalkDir(ws.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != ws.dir {
			if strings.HasPrefix(d.Name(), ".") || path == buildRoot {
				return filepath.SkipDir
			}
		}
		return watcher.Add(path)
	})
}

// ignoredPath reports whether a changed path is outside the watched
// source tree: under the build root or inside a hidden directory.
func (w *workspace) ignoredPath(path string) bool {
	rel, err := filepath.Rel(w.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return true
	}
	if buildRel, err := filepath.Rel(w.buildRoot(), path); err == nil && !strings.HasPrefix(buildRel, "..") {
		return true
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") && part != "." {
			return true
		}
	}
	return false
}

// buildRoot returns the workspace's build scratch root.
func (w *workspace) buildRoot() string {
	dir := cfg.Build.Directory
	if dir == "" {
		dir = "build"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(w.dir, dir)
	}
	return dir
}

// startMetricsServer exposes the process metrics over HTTP until the
// returned stop function runs.
func startMetricsServer(addr string) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Global().Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK\n"))
	})

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}
