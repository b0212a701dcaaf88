// ABOUTME: Query engine composing grid coverings, prefix translation, and trie search
// ABOUTME: Near-queries return a deduplicated superset of in-region records

package query

import (
	"time"

	"github.com/nainya/geotrie/pkg/covering"
	"github.com/nainya/geotrie/pkg/grid"
	"github.com/nainya/geotrie/pkg/trie"
)

// Engine answers "which records fall near this location" by string
// prefix matching: it obtains a covering for the query region from the
// grid system, translates it into safe prefixes, runs one trie search
// per prefix, and merges the results.
//
// Indexing is a single-writer phase; once built, the engine may serve
// any number of concurrent QueryNear/SearchPrefix callers. Callers
// that interleave writes with reads must synchronize externally.
type Engine[R Record] struct {
	sys        grid.System
	translator *covering.Translator
	index      *trie.Trie[R]
	indexLevel int
}

// Option configures an Engine at construction time.
type Option[R Record] func(*Engine[R])

// WithIndexLevel sets the hierarchy level IndexAt tokenizes records
// at. Deeper levels mean longer tokens and finer selectivity.
func WithIndexLevel[R Record](level int) Option[R] {
	return func(e *Engine[R]) { e.indexLevel = level }
}

// NewEngine creates an engine over the given grid system with an
// empty index. The default index level is two thirds of the
// hierarchy depth.
func NewEngine[R Record](sys grid.System, opts ...Option[R]) *Engine[R] {
	e := &Engine[R]{
		sys:        sys,
		translator: covering.New(sys),
		indexLevel: sys.MaxLevel() * 2 / 3,
		index: trie.New[R](
			trie.NewAlphabet(sys.Alphabet()),
			trie.WithMaxTokenLength(sys.MaxTokenLength()),
		),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Index stores rec under an externally produced token.
func (e *Engine[R]) Index(token string, rec R) error {
	return e.index.Insert(token, rec)
}

// IndexAt tokenizes the coordinate at the engine's index level and
// stores rec under the resulting token.
func (e *Engine[R]) IndexAt(lat, lng float64, rec R) error {
	token, err := e.sys.TokenAt(lat, lng, e.indexLevel)
	if err != nil {
		return err
	}
	return e.index.Insert(token, rec)
}

// QueryNear returns all indexed records whose cell lies inside the
// region's covering, deduplicated by RecordID with the first
// occurrence winning. The result is a superset of the records truly
// within the region; the covering's slack is not filtered here. An
// empty covering yields an empty result, not an error.
func (e *Engine[R]) QueryNear(region grid.Region, params grid.CoveringParams) (*Result[R], error) {
	start := time.Now()

	if err := region.Validate(); err != nil {
		return nil, err
	}
	if err := params.Validate(e.sys); err != nil {
		return nil, err
	}

	cells, err := e.sys.Covering(region, params)
	if err != nil {
		return nil, err
	}
	prefixes, err := e.translator.Prefixes(cells)
	if err != nil {
		return nil, err
	}

	var (
		records []R
		matches int
		seen    = make(map[string]struct{})
	)
	for _, prefix := range prefixes {
		e.index.WalkPrefix(prefix, func(_ string, rec R) bool {
			matches++
			id := rec.RecordID()
			if _, dup := seen[id]; dup {
				return true
			}
			seen[id] = struct{}{}
			records = append(records, rec)
			return true
		})
	}

	return &Result[R]{
		Records: records,
		Stats: QueryStats{
			CoveringCells: len(cells),
			Prefixes:      len(prefixes),
			Matches:       matches,
			Unique:        len(records),
			Elapsed:       time.Since(start),
		},
	}, nil
}

// SearchPrefix exposes the raw index search, mainly for diagnostics.
func (e *Engine[R]) SearchPrefix(prefix string) []trie.Entry[R] {
	return e.index.Search(prefix)
}

// Get returns the records stored under exactly token.
func (e *Engine[R]) Get(token string) []R {
	return e.index.Get(token)
}

// Stats returns the size counters of the underlying index.
func (e *Engine[R]) Stats() trie.Stats {
	return e.index.Stats()
}

// System returns the grid system the engine was built over.
func (e *Engine[R]) System() grid.System {
	return e.sys
}

// IndexLevel returns the level IndexAt tokenizes at.
func (e *Engine[R]) IndexLevel() int {
	return e.indexLevel
}
