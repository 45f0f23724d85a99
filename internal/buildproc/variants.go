package buildproc

import (
	"fmt"
	"sort"
	"strings"

	pferrors "github.com/packforge/packforge/internal/errors"
	"github.com/packforge/packforge/internal/pkgmeta"
)

// VisitVariants applies fn to every variant of pkg selected by filter, in
// declaration order, and returns the visited count plus fn's results in
// visit order.
//
// An empty filter selects all variants. A filter naming any index the
// package does not have fails with a build error listing the invalid
// indices, before any variant is visited. Variants excluded by a
// non-empty filter are reported through onSkip (position and variant
// count, both 1-based) and not executed.
//
// Iteration is strictly sequential; build side effects are not reentrant
// across variants.
func VisitVariants[T any](pkg *pkgmeta.Package, filter []int, onSkip func(position, total int), fn func(*pkgmeta.Variant) (T, error)) (int, []T, error) {
	const op = "buildproc.VisitVariants"

	selected := make(map[int]bool, len(filter))
	if len(filter) > 0 {
		var invalid []int
		for _, index := range filter {
			if _, ok := pkg.Variant(index); !ok {
				invalid = append(invalid, index)
			}
			selected[index] = true
		}
		if len(invalid) > 0 {
			sort.Ints(invalid)
			parts := make([]string, len(invalid))
			for i, index := range invalid {
				parts[i] = fmt.Sprintf("%d", index)
			}
			return 0, nil, pferrors.Buildf(op, "package does not contain the variants: %s",
				strings.Join(parts, ", "))
		}
	}

	total := pkg.NumVariants()
	visited := 0
	results := make([]T, 0, total)

	for _, variant := range pkg.Variants() {
		if len(selected) > 0 && !selected[variant.Index] {
			if onSkip != nil {
				onSkip(variant.Index+1, total)
			}
			continue
		}

		result, err := fn(variant)
		if err != nil {
			return visited, results, err
		}
		results = append(results, result)
		visited++
	}

	return visited, results, nil
}
