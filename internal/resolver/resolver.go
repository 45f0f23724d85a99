// Package resolver defines the build-environment resolution contract and
// the resolved build context. The resolution algorithm itself lives in an
// external engine; Packforge only hands it a requirement list and search
// paths, and consumes the solved environment it returns.
package resolver

import (
	"context"

	"github.com/packforge/packforge/internal/pkgmeta"
)

// Request describes one resolution attempt.
type Request struct {
	// Requirements is the full requirement list for the variant.
	Requirements []pkgmeta.Requirement
	// SearchPaths are the package repositories visible to the engine,
	// ordered by precedence.
	SearchPaths []string
	// Building tells the engine this environment is for a build, so it
	// can special-case build-time-only requirements.
	Building bool
}

// Resolver resolves requirement lists into build contexts. An error means
// the engine itself misbehaved; an unsolved resolution is reported through
// the returned context's status.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (*BuildContext, error)
}
