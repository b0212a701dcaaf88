// ABOUTME: Geohash grid system adapter
// ABOUTME: Base-32 tokens, fan-out 32, coverings by bounding-box sweep

package geohashgrid

import (
	"fmt"
	"math"
	"sort"

	"github.com/TomiHiltunen/geohash-golang"

	"github.com/nainya/geotrie/pkg/grid"
)

const (
	maxPrecision = 12
	base32       = "0123456789bcdefghjkmnpqrstuvwxyz"
)

// System implements grid.System on the geohash hierarchy. Geohash
// encoding is unpadded: each level appends one character, so a cell's
// token is a plain string prefix of every descendant's token. The
// covering translator's descend-then-trim rule therefore degenerates
// to the cell's own token, and translated prefixes select exactly the
// cell's descendants.
type System struct{}

// New returns the geohash grid system.
func New() *System {
	return &System{}
}

// Name identifies the system.
func (*System) Name() string { return "geohash" }

// Alphabet returns the geohash base-32 characters.
func (*System) Alphabet() string { return base32 }

// FanOut returns 32: one more character per level.
func (*System) FanOut() int { return 32 }

// MaxLevel returns 12, the finest standard geohash precision.
func (*System) MaxLevel() int { return maxPrecision }

// MaxTokenLength equals MaxLevel: one character per level.
func (*System) MaxTokenLength() int { return maxPrecision }

// CellAt returns the cell containing the coordinate at the level.
// Level 0 is the root cell with the empty token.
func (*System) CellAt(lat, lng float64, level int) (grid.Cell, error) {
	if err := grid.CheckLatLng(lat, lng); err != nil {
		return nil, err
	}
	if err := grid.CheckLevel(level, maxPrecision); err != nil {
		return nil, err
	}
	if level == 0 {
		return Cell{}, nil
	}
	return Cell{token: geohash.EncodeWithPrecision(lat, lng, level)}, nil
}

// TokenAt returns the geohash of the coordinate at the level.
func (s *System) TokenAt(lat, lng float64, level int) (string, error) {
	c, err := s.CellAt(lat, lng, level)
	if err != nil {
		return "", err
	}
	return c.Token(), nil
}

// Covering covers the region's bounding rectangle with geohash cells
// at the finest precision within the params' range whose cell count
// fits the MaxCells budget, coarsening one level at a time otherwise.
// A region that still exceeds the budget at MinLevel is rejected with
// ErrBadParams before any cells are enumerated; MinLevel 0 degrades to
// the root cell instead. Sample spacing stays below the cell size, so
// no intersected row or column of cells is skipped.
func (*System) Covering(r grid.Region, p grid.CoveringParams) ([]grid.Cell, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	rect := boundingRect(r)
	precision := p.MaxLevel
	if precision > maxPrecision {
		precision = maxPrecision
	}

	for ; precision >= 1; precision-- {
		n := cellCount(rect, precision)
		if n > p.MaxCells {
			if precision == p.MinLevel {
				return nil, budgetError(n, precision, p.MaxCells)
			}
			continue
		}
		tokens := sweep(rect, precision)
		if len(tokens) > p.MaxCells {
			if precision == p.MinLevel {
				return nil, budgetError(len(tokens), precision, p.MaxCells)
			}
			continue
		}
		cells := make([]grid.Cell, 0, len(tokens))
		for _, tok := range tokens {
			cells = append(cells, Cell{token: tok})
		}
		return cells, nil
	}

	// Only reachable with MinLevel 0: the whole world as one cell.
	return []grid.Cell{Cell{}}, nil
}

func budgetError(cells, precision, budget int) error {
	return fmt.Errorf("%w: covering needs %d cells at level %d, budget is %d",
		grid.ErrBadParams, cells, precision, budget)
}

// Cell is one geohash cell; the zero value is the root (whole world).
type Cell struct {
	token string
}

// CellFromToken wraps an existing geohash string.
func CellFromToken(token string) Cell {
	return Cell{token: token}
}

// Token returns the cell's geohash.
func (c Cell) Token() string { return c.token }

// Level returns the cell's precision: one character per level.
func (c Cell) Level() int { return len(c.token) }

// Children returns the 32 subcells in base-32 character order, or nil
// at maximum precision.
func (c Cell) Children() []grid.Cell {
	if len(c.token) >= maxPrecision {
		return nil
	}
	out := make([]grid.Cell, 0, len(base32))
	for i := 0; i < len(base32); i++ {
		out = append(out, Cell{token: c.token + string(base32[i])})
	}
	return out
}

// cellDims returns the height and width in degrees of a cell at the
// given precision. A geohash interleaves bits longitude-first: of the
// 5*precision bits, longitude takes the ceiling half.
func cellDims(precision int) (height, width float64) {
	bits := 5 * precision
	lngBits := (bits + 1) / 2
	latBits := bits / 2
	return 180 / math.Pow(2, float64(latBits)), 360 / math.Pow(2, float64(lngBits))
}

// cellCount returns how many cells at the given precision the
// rectangle touches. Cells of one precision form a regular grid, so
// the count follows from the row and column index ranges without
// enumerating anything.
func cellCount(rect grid.Rect, precision int) int {
	h, w := cellDims(precision)
	rows := axisSpan(rect.MinLat, rect.MaxLat, -90, 180, h)
	cols := axisSpan(rect.MinLng, rect.MaxLng, -180, 360, w)
	return rows * cols
}

// axisSpan counts the size-wide bands of [origin, origin+extent] that
// the interval [lo, hi] touches. A point exactly on the far edge
// belongs to the last band, matching how encoding bisects the axis.
func axisSpan(lo, hi, origin, extent, size float64) int {
	first := int(math.Floor((lo - origin) / size))
	last := int(math.Floor((hi - origin) / size))
	if max := int(math.Round(extent/size)) - 1; last > max {
		last = max
	}
	return last - first + 1
}

// sweep samples the rectangle at sub-cell spacing and collects the
// distinct geohashes, sorted.
func sweep(rect grid.Rect, precision int) []string {
	h, w := cellDims(precision)
	set := map[string]struct{}{}
	for _, lat := range samples(rect.MinLat, rect.MaxLat, h) {
		for _, lng := range samples(rect.MinLng, rect.MaxLng, w) {
			set[geohash.EncodeWithPrecision(lat, lng, precision)] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for tok := range set {
		out = append(out, tok)
	}
	sort.Strings(out)
	return out
}

// samples returns points from lo to hi inclusive, spaced slightly
// tighter than step.
func samples(lo, hi, step float64) []float64 {
	out := []float64{}
	for v := lo; v < hi; v += step * 0.99 {
		out = append(out, v)
	}
	return append(out, hi)
}

// boundingRect reduces any region to a lat/lng rectangle.
func boundingRect(r grid.Region) grid.Rect {
	switch v := r.(type) {
	case grid.Circle:
		dLat := v.RadiusMeters / 111320
		cosLat := math.Cos(v.Lat * math.Pi / 180)
		if cosLat < 0.01 {
			cosLat = 0.01
		}
		dLng := v.RadiusMeters / (111320 * cosLat)
		return grid.Rect{
			MinLat: math.Max(v.Lat-dLat, -90),
			MinLng: math.Max(v.Lng-dLng, -180),
			MaxLat: math.Min(v.Lat+dLat, 90),
			MaxLng: math.Min(v.Lng+dLng, 180),
		}
	case grid.Rect:
		return v
	default:
		return grid.Rect{MinLat: -90, MinLng: -180, MaxLat: 90, MaxLng: 180}
	}
}
