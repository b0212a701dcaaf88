// ABOUTME: Covering request parameters and their contract checks
// ABOUTME: Budget/precision trade-off owned by the caller

package grid

import "fmt"

// CoveringParams bounds a covering request: the level range cells may
// come from and the maximum number of cells. Coarser levels and fewer
// cells mean cheaper queries with more slack; finer levels approximate
// the region more tightly.
type CoveringParams struct {
	MinLevel int
	MaxLevel int
	MaxCells int
}

// Validate checks p against sys's hierarchy. MaxLevel must stay
// strictly below the system's maximum depth: prefix translation
// descends one level into each covering cell, so every covering cell
// must still have children.
func (p CoveringParams) Validate(sys System) error {
	if p.MinLevel < 0 {
		return fmt.Errorf("%w: min level %d is negative", ErrBadParams, p.MinLevel)
	}
	if p.MinLevel > p.MaxLevel {
		return fmt.Errorf("%w: min level %d above max level %d", ErrBadParams, p.MinLevel, p.MaxLevel)
	}
	if p.MaxLevel >= sys.MaxLevel() {
		return fmt.Errorf("%w: max level %d must stay strictly below the hierarchy maximum %d",
			ErrBadParams, p.MaxLevel, sys.MaxLevel())
	}
	if p.MaxCells < 1 {
		return fmt.Errorf("%w: max cells %d must be at least 1", ErrBadParams, p.MaxCells)
	}
	return nil
}

// DefaultCoveringParams returns a conservative budget for sys: up to
// 16 cells anywhere between the root and half the hierarchy depth.
func DefaultCoveringParams(sys System) CoveringParams {
	return CoveringParams{
		MinLevel: 0,
		MaxLevel: sys.MaxLevel() / 2,
		MaxCells: 16,
	}
}
