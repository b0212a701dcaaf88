// ABOUTME: Query engine types
// ABOUTME: Record contract, near-query results, and per-query statistics

package query

import (
	"time"
)

// Record is the payload the engine indexes and deduplicates. RecordID
// must be stable for the record's lifetime: deduplication keys on
// identity, not value, since two distinct records may share a
// coordinate.
type Record interface {
	RecordID() string
}

// Result is the outcome of a near-query: a deduplicated superset of
// the records within the queried region. Callers needing exactness
// apply a geometric containment test afterwards.
type Result[R Record] struct {
	Records []R
	Stats   QueryStats
}

// QueryStats describes the work one near-query did.
type QueryStats struct {
	CoveringCells int           // cells in the region covering
	Prefixes      int           // safe prefixes after translation
	Matches       int           // prefix search hits before deduplication
	Unique        int           // records returned
	Elapsed       time.Duration // wall time for the whole query
}
