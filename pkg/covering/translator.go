// ABOUTME: Translates region coverings into safe token prefix sets
// ABOUTME: Descends one level per covering cell and trims the last token character

package covering

import (
	"errors"
	"fmt"
	"sort"

	"github.com/nainya/geotrie/pkg/grid"
)

var (
	// ErrLeafCell indicates a covering cell at the hierarchy's maximum
	// depth: it has no children to descend into, which violates the
	// translator's input contract. Coverings must be requested with a
	// max level strictly below the hierarchy maximum.
	ErrLeafCell = errors.New("covering: cell at maximum depth has no children")

	// ErrEmptyChildToken indicates a grid system produced a child cell
	// with an empty token, which cannot be trimmed.
	ErrEmptyChildToken = errors.New("covering: child cell has empty token")
)

// Translator derives token prefixes from covering cells. A covering
// cell's own token is generally unsafe to match against tokens of
// records indexed at finer levels: padded encodings let a coarse
// cell's string and a descendant's string coincide in all but the
// final character, so naive truncation over- or under-matches.
// Enumerating the cell's direct children and dropping the last
// character of each child token removes the ambiguity at the covering
// cell's own level.
type Translator struct {
	sys grid.System
}

// New creates a translator for the given grid system.
func New(sys grid.System) *Translator {
	return &Translator{sys: sys}
}

// Prefixes converts covering cells into safe prefixes: for each cell,
// each direct child's token minus its last character. The result is a
// deduplicated, lexicographically sorted set; it depends neither on
// the order of cells nor on duplicates among them. An empty covering
// yields an empty set. Matching every returned prefix against the
// index covers at least the full area of every input cell; slack
// beyond the queried geometry is the caller's post-filter problem.
func (tr *Translator) Prefixes(cells []grid.Cell) ([]string, error) {
	if len(cells) == 0 {
		return nil, nil
	}

	set := make(map[string]struct{}, len(cells)*tr.sys.FanOut())
	for _, cell := range cells {
		children := cell.Children()
		if len(children) == 0 {
			return nil, fmt.Errorf("%w: cell %q at level %d of %d",
				ErrLeafCell, cell.Token(), cell.Level(), tr.sys.MaxLevel())
		}
		for _, child := range children {
			tok := child.Token()
			if tok == "" {
				return nil, fmt.Errorf("%w: child of cell %q", ErrEmptyChildToken, cell.Token())
			}
			set[tok[:len(tok)-1]] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}
