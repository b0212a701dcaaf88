// ABOUTME: Deterministic in-memory quadkey grid for tests
// ABOUTME: Flat lat/lng quadtree; coverings are computable or scripted per test

package gridtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/nainya/geotrie/pkg/grid"
)

const alphabet = "0123"

// Quad is a quadtree grid over an equirectangular projection of the
// lat/lng plane. Tokens are base-4 digit paths, one digit per level,
// so a cell's token is a plain string prefix of its descendants'
// tokens. Geometry is deliberately flat; the point of this system is
// determinism in tests, not cartographic fidelity.
type Quad struct {
	maxLevel int
	scripted []grid.Cell
}

// NewQuad creates a quadkey grid with the given maximum depth.
func NewQuad(maxLevel int) *Quad {
	if maxLevel < 1 {
		panic("gridtest: maxLevel must be at least 1")
	}
	return &Quad{maxLevel: maxLevel}
}

// Cell is one quadkey cell.
type Cell struct {
	sys   *Quad
	token string
}

// Token returns the cell's base-4 digit path.
func (c Cell) Token() string { return c.token }

// Level returns the cell's depth; tokens grow one digit per level.
func (c Cell) Level() int { return len(c.token) }

// Children returns the four subcells, in digit order, or nil at the
// maximum level.
func (c Cell) Children() []grid.Cell {
	if len(c.token) >= c.sys.maxLevel {
		return nil
	}
	out := make([]grid.Cell, 0, 4)
	for i := 0; i < 4; i++ {
		out = append(out, Cell{sys: c.sys, token: c.token + string(alphabet[i])})
	}
	return out
}

// MustCell builds a cell from its token, panicking on malformed input.
// Intended for test setup.
func (q *Quad) MustCell(token string) Cell {
	if len(token) > q.maxLevel {
		panic(fmt.Sprintf("gridtest: token %q deeper than max level %d", token, q.maxLevel))
	}
	for i := 0; i < len(token); i++ {
		if token[i] < '0' || token[i] > '3' {
			panic(fmt.Sprintf("gridtest: token %q has non-quadkey digit", token))
		}
	}
	return Cell{sys: q, token: token}
}

// ScriptCovering makes every subsequent Covering call return exactly
// the cells named by tokens, bypassing the geometric computation.
func (q *Quad) ScriptCovering(tokens ...string) {
	cells := make([]grid.Cell, 0, len(tokens))
	for _, tok := range tokens {
		cells = append(cells, q.MustCell(tok))
	}
	q.scripted = cells
}

// Name identifies the system.
func (q *Quad) Name() string { return "quadtest" }

// Alphabet returns the quadkey digits.
func (q *Quad) Alphabet() string { return alphabet }

// FanOut returns 4.
func (q *Quad) FanOut() int { return 4 }

// MaxLevel returns the deepest level.
func (q *Quad) MaxLevel() int { return q.maxLevel }

// MaxTokenLength equals MaxLevel: one digit per level.
func (q *Quad) MaxTokenLength() int { return q.maxLevel }

// CellAt returns the cell containing the coordinate at the level.
func (q *Quad) CellAt(lat, lng float64, level int) (grid.Cell, error) {
	tok, err := q.TokenAt(lat, lng, level)
	if err != nil {
		return nil, err
	}
	return Cell{sys: q, token: tok}, nil
}

// TokenAt returns the quadkey of the coordinate at the level.
func (q *Quad) TokenAt(lat, lng float64, level int) (string, error) {
	if err := grid.CheckLatLng(lat, lng); err != nil {
		return "", err
	}
	if err := grid.CheckLevel(level, q.maxLevel); err != nil {
		return "", err
	}
	ix, iy := q.indices(lat, lng, level)
	return tokenFromIndices(ix, iy, level), nil
}

// Covering returns the scripted cells if a script is set, otherwise
// cells covering the region's bounding rectangle at the finest level
// whose cell count fits the MaxCells budget. A region still over
// budget at MinLevel fails with ErrBadParams rather than ignoring the
// budget.
func (q *Quad) Covering(r grid.Region, p grid.CoveringParams) ([]grid.Cell, error) {
	if q.scripted != nil {
		return q.scripted, nil
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}

	rect := boundingRect(r)
	level := p.MaxLevel
	if level > q.maxLevel {
		level = q.maxLevel
	}
	for {
		ix0, iy0 := q.indices(rect.MinLat, rect.MinLng, level)
		ix1, iy1 := q.indices(rect.MaxLat, rect.MaxLng, level)
		count := (ix1 - ix0 + 1) * (iy1 - iy0 + 1)
		if count <= p.MaxCells {
			tokens := make([]string, 0, count)
			for ix := ix0; ix <= ix1; ix++ {
				for iy := iy0; iy <= iy1; iy++ {
					tokens = append(tokens, tokenFromIndices(ix, iy, level))
				}
			}
			sort.Strings(tokens)
			cells := make([]grid.Cell, 0, len(tokens))
			for _, tok := range tokens {
				cells = append(cells, Cell{sys: q, token: tok})
			}
			return cells, nil
		}
		if level <= p.MinLevel {
			return nil, fmt.Errorf("%w: covering needs %d cells at level %d, budget is %d",
				grid.ErrBadParams, count, level, p.MaxCells)
		}
		level--
	}
}

// indices maps a coordinate to cell indices at the level.
func (q *Quad) indices(lat, lng float64, level int) (int, int) {
	n := 1 << uint(level)
	x := (lng + 180) / 360
	y := (lat + 90) / 180
	ix := int(x * float64(n))
	iy := int(y * float64(n))
	if ix >= n {
		ix = n - 1
	}
	if iy >= n {
		iy = n - 1
	}
	return ix, iy
}

// tokenFromIndices interleaves index bits most-significant first, one
// digit per level: digit = (ybit << 1) | xbit.
func tokenFromIndices(ix, iy, level int) string {
	buf := make([]byte, level)
	for l := 0; l < level; l++ {
		shift := uint(level - 1 - l)
		xbit := (ix >> shift) & 1
		ybit := (iy >> shift) & 1
		buf[l] = alphabet[ybit<<1|xbit]
	}
	return string(buf)
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
		panic("gridtest: unknown region type")
	}
}
