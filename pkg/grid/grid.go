// ABOUTME: Narrow contract between the prefix index core and a concrete grid system
// ABOUTME: Token source, cell hierarchy navigation, and region coverings

package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrLevelOutOfRange indicates a hierarchy level outside [0, MaxLevel].
	ErrLevelOutOfRange = errors.New("grid: level out of range")

	// ErrBadCoordinate indicates a latitude/longitude outside valid bounds.
	ErrBadCoordinate = errors.New("grid: coordinate out of range")

	// ErrBadRegion indicates a region that fails validation.
	ErrBadRegion = errors.New("grid: invalid region")

	// ErrBadParams indicates covering parameters that fail validation.
	ErrBadParams = errors.New("grid: invalid covering parameters")
)

// Cell is one cell of a hierarchical space partition.
type Cell interface {
	// Token returns the cell's canonical token string over the
	// system's alphabet.
	Token() string

	// Level returns the cell's hierarchy depth, 0 being the coarsest.
	Level() int

	// Children returns the cell's direct children in deterministic
	// order. The slice is empty for cells at the system's maximum
	// level.
	Children() []Cell
}

// System is everything the index core needs from a grid system:
// tokens for coordinates, hierarchy navigation, and region coverings.
// Implementations must produce tokens over a fixed alphabet with a
// fixed fan-out hierarchy; beyond that the core is agnostic to the
// concrete grid.
type System interface {
	// Name identifies the system ("s2", "geohash", ...).
	Name() string

	// Alphabet returns the characters tokens are composed of.
	Alphabet() string

	// FanOut returns the number of children per non-leaf cell.
	FanOut() int

	// MaxLevel returns the deepest hierarchy level.
	MaxLevel() int

	// MaxTokenLength returns the length of the longest token the
	// system can produce.
	MaxTokenLength() int

	// CellAt returns the cell containing the coordinate at the given
	// level.
	CellAt(lat, lng float64, level int) (Cell, error)

	// TokenAt returns the token of the cell containing the coordinate
	// at the given level.
	TokenAt(lat, lng float64, level int) (string, error)

	// Covering returns a set of cells whose union contains the
	// region, bounded by params. The cells over-approximate the
	// region; callers needing exactness filter afterwards.
	Covering(r Region, p CoveringParams) ([]Cell, error)
}

// CheckLatLng validates coordinate bounds on behalf of adapters.
func CheckLatLng(lat, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("%w: lat=%v lng=%v", ErrBadCoordinate, lat, lng)
	}
	return nil
}

// CheckLevel validates a hierarchy level on behalf of adapters.
func CheckLevel(level, maxLevel int) error {
	if level < 0 || level > maxLevel {
		return fmt.Errorf("%w: level %d, hierarchy maximum %d", ErrLevelOutOfRange, level, maxLevel)
	}
	return nil
}
