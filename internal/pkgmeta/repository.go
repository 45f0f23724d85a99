package pkgmeta

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	pferrors "github.com/packforge/packforge/internal/errors"
)

// defaultScanParallelism bounds concurrent metadata loads during a
// repository scan. Release repositories often live on network
// filesystems where a little parallelism pays off.
const defaultScanParallelism = 8

// Repository reads released packages from a release repository root laid
// out as <root>/<name>/<version>/package.toml.
type Repository struct {
	root        string
	parallelism int
}

// NewRepository creates a repository reader for the given root.
func NewRepository(root string) *Repository {
	return &Repository{root: root, parallelism: defaultScanParallelism}
}

// Root returns the repository root path.
func (r *Repository) Root() string {
	return r.root
}

// ListReleased returns every released package with the given name, sorted
// by version descending. Version directories without a valid package
// definition are ignored. The listing is read fresh on every call.
func (r *Repository) ListReleased(ctx context.Context, name string) ([]*Package, error) {
	const op = "pkgmeta.ListReleased"

	dir := filepath.Join(r.root, name)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, pferrors.IOWrap(err, op, "failed to read release repository")
	}

	loaded := make([]*Package, len(entries))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)

	for i, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		g.Go(func() error {
			pkg, err := Load(filepath.Join(dir, entry.Name()))
			if err != nil {
				// Stray directories are not released packages.
				return nil
			}
			if pkg.Name != name {
				return nil
			}
			loaded[i] = pkg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, pferrors.IOWrap(err, op, "release repository scan failed")
	}
	if err := ctx.Err(); err != nil {
		return nil, pferrors.Wrap(err, pferrors.KindCanceled, op, "scan canceled")
	}

	packages := make([]*Package, 0, len(loaded))
	for _, pkg := range loaded {
		if pkg != nil {
			packages = append(packages, pkg)
		}
	}

	sort.Slice(packages, func(i, j int) bool {
		return packages[i].Version.GreaterThan(packages[j].Version)
	})
	return packages, nil
}
