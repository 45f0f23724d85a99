package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/packforge/packforge/internal/config"
	"github.com/packforge/packforge/internal/pkgmeta"
)

var (
	initForce   bool
	initPackage string
)

// packageManifestTemplate is the starter package.toml. The build command
// receives the resolved environment plus PACKFORGE_* variables.
const packageManifestTemplate = `name = "%s"
version = "0.1.0"
uuid = "%s"
description = ""

requires = []
build_requires = []

# variants = [["platform-linux"], ["platform-windows"]]

[build]
command = "./build.sh"
`

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Initialize a Packforge project",
	Long: `Write a packforge.yaml with the default configuration into the given
directory (default: the current directory).

With --package a starter package.toml is written too, stamped with a
fresh UUID. The UUID ties the package name to this package forever;
releases of a different package under the same name are rejected.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite existing files")
	initCmd.Flags().StringVar(&initPackage, "package", "", "also write a package.toml with this package name")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", abs, err)
	}

	configPath := filepath.Join(abs, config.ConfigFileNames[0]+".yaml")
	if config.ConfigExists(abs) && !initForce {
		printWarning(fmt.Sprintf("%s already has a configuration, use --force to overwrite", abs))
	} else {
		if err := config.WriteDefaultConfig(configPath); err != nil {
			return err
		}
		printSuccess(fmt.Sprintf("Wrote %s", configPath))
	}

	if initPackage != "" {
		if err := writePackageManifest(abs, initPackage); err != nil {
			return err
		}
	}

	printInfo("Edit packforge.yaml to point packages.release_path at your shared repository")
	return nil
}

func writePackageManifest(dir, name string) error {
	path := filepath.Join(dir, pkgmeta.MetadataFile)
	if _, err := os.Stat(path); err == nil && !initForce {
		printWarning(fmt.Sprintf("%s already exists, use --force to overwrite", path))
		return nil
	}

	manifest := fmt.Sprintf(packageManifestTemplate, name, uuid.NewString())
	if err := os.WriteFile(path, []byte(manifest), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	printSuccess(fmt.Sprintf("Wrote %s", path))
	return nil
}
