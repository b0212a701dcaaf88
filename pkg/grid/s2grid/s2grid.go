// ABOUTME: S2 grid system adapter
// ABOUTME: Hex cell tokens, fan-out 4, coverings via s2.RegionCoverer

package s2grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/nainya/geotrie/pkg/grid"
)

const (
	maxLevel = 30
	alphabet = "0123456789abcdef"

	// Mean earth radius used to convert metres into angles on the
	// unit sphere.
	earthRadiusMeters = 6371010.0
)

// ErrBadToken indicates a string that does not parse into a valid
// S2 cell token.
var ErrBadToken = errors.New("s2grid: malformed cell token")

// System implements grid.System on the S2 cell hierarchy. S2 tokens
// are hex-encoded and padded: a cell's string can coincide with a
// descendant's in all but the final character, which is exactly the
// ambiguity the covering translator's descend-then-trim rule exists
// for.
type System struct{}

// New returns the S2 grid system.
func New() *System {
	return &System{}
}

// Name identifies the system.
func (*System) Name() string { return "s2" }

// Alphabet returns the hex characters S2 tokens are composed of.
func (*System) Alphabet() string { return alphabet }

// FanOut returns 4: each cell splits into four children.
func (*System) FanOut() int { return 4 }

// MaxLevel returns 30, the S2 leaf level.
func (*System) MaxLevel() int { return maxLevel }

// MaxTokenLength returns 16: a leaf token is the full 64-bit id in hex.
func (*System) MaxTokenLength() int { return 16 }

// CellAt returns the cell containing the coordinate at the level.
func (*System) CellAt(lat, lng float64, level int) (grid.Cell, error) {
	if err := grid.CheckLatLng(lat, lng); err != nil {
		return nil, err
	}
	if err := grid.CheckLevel(level, maxLevel); err != nil {
		return nil, err
	}
	id := s2.CellIDFromLatLng(s2.LatLngFromDegrees(lat, lng)).Parent(level)
	return Cell{id: id}, nil
}

// TokenAt returns the token of the cell containing the coordinate at
// the level.
func (s *System) TokenAt(lat, lng float64, level int) (string, error) {
	c, err := s.CellAt(lat, lng, level)
	if err != nil {
		return "", err
	}
	return c.Token(), nil
}

// Covering asks the S2 region coverer for cells containing the region
// within the params' level range and cell budget. The coverer
// subdivides every candidate below MinLevel no matter the budget, so a
// level floor whose covering cannot fit MaxCells is rejected up front
// with ErrBadParams instead of being enumerated.
func (*System) Covering(r grid.Region, p grid.CoveringParams) ([]grid.Cell, error) {
	region, err := s2Region(r)
	if err != nil {
		return nil, err
	}
	if p.MinLevel > 0 {
		// Cells at MinLevel have area at most MaxAreaMetric, which
		// lower-bounds the covering size at the floor. Finer levels only
		// need more cells.
		need := regionArea(region) / s2.MaxAreaMetric.Value(p.MinLevel)
		if need > float64(p.MaxCells) {
			return nil, fmt.Errorf("%w: covering needs at least %.0f cells at level %d, budget is %d",
				grid.ErrBadParams, math.Ceil(need), p.MinLevel, p.MaxCells)
		}
	}
	rc := &s2.RegionCoverer{
		MinLevel: p.MinLevel,
		MaxLevel: p.MaxLevel,
		LevelMod: 1,
		MaxCells: p.MaxCells,
	}
	union := rc.Covering(region)
	out := make([]grid.Cell, 0, len(union))
	for _, id := range union {
		out = append(out, Cell{id: id})
	}
	return out, nil
}

// Cell wraps one s2.CellID.
type Cell struct {
	id s2.CellID
}

// CellFromToken parses a canonical token back into a cell.
func CellFromToken(token string) (Cell, error) {
	id := s2.CellIDFromToken(token)
	if !id.IsValid() {
		return Cell{}, fmt.Errorf("%w: %q", ErrBadToken, token)
	}
	return Cell{id: id}, nil
}

// Token returns the cell's canonical S2 token.
func (c Cell) Token() string { return c.id.ToToken() }

// Level returns the cell's hierarchy level.
func (c Cell) Level() int { return c.id.Level() }

// Children returns the four child cells, or nil for leaves.
func (c Cell) Children() []grid.Cell {
	if c.id.IsLeaf() {
		return nil
	}
	kids := c.id.Children()
	out := make([]grid.Cell, 0, len(kids))
	for _, k := range kids {
		out = append(out, Cell{id: k})
	}
	return out
}

// CellID exposes the wrapped id for callers that work with the S2
// library directly.
func (c Cell) CellID() s2.CellID { return c.id }

// regionArea returns the region's surface area in steradians. Only the
// two shapes s2Region produces occur here.
func regionArea(region s2.Region) float64 {
	switch v := region.(type) {
	case s2.Cap:
		return v.Area()
	case s2.Rect:
		return v.Area()
	}
	return 0
}

// s2Region maps the contract's region types onto native S2 shapes.
func s2Region(r grid.Region) (s2.Region, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	switch v := r.(type) {
	case grid.Circle:
		center := s2.PointFromLatLng(s2.LatLngFromDegrees(v.Lat, v.Lng))
		return s2.CapFromCenterAngle(center, s1.Angle(v.RadiusMeters/earthRadiusMeters)), nil
	case grid.Rect:
		rect := s2.RectFromLatLng(s2.LatLngFromDegrees(v.MinLat, v.MinLng))
		rect = rect.AddPoint(s2.LatLngFromDegrees(v.MaxLat, v.MaxLng))
		return rect, nil
	default:
		return nil, fmt.Errorf("%w: unsupported region type %T", grid.ErrBadRegion, r)
	}
}
