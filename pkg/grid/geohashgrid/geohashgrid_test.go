// ABOUTME: Tests for the geohash grid adapter
// ABOUTME: Pins known geohashes and checks covering and translation behavior

package geohashgrid

import (
	"errors"
	"strings"
	"testing"

	"github.com/nainya/geotrie/pkg/covering"
	"github.com/nainya/geotrie/pkg/grid"
)

func TestEncodePinsKnownGeohashes(t *testing.T) {
	sys := New()

	tok, err := sys.TokenAt(42.605, -5.603, 5)
	if err != nil {
		t.Fatalf("TokenAt failed: %v", err)
	}
	if tok != "ezs42" {
		t.Errorf("Expected token ezs42, got %s", tok)
	}

	tok, err = sys.TokenAt(57.64911, 10.40744, 11)
	if err != nil {
		t.Fatalf("TokenAt failed: %v", err)
	}
	if tok != "u4pruydqqvj" {
		t.Errorf("Expected token u4pruydqqvj, got %s", tok)
	}
}

func TestTokenLengthMatchesLevel(t *testing.T) {
	sys := New()
	for level := 1; level <= sys.MaxLevel(); level++ {
		tok, err := sys.TokenAt(48.8566, 2.3522, level)
		if err != nil {
			t.Fatalf("TokenAt level %d failed: %v", level, err)
		}
		if len(tok) != level {
			t.Errorf("Expected token length %d at level %d, got %d (%s)", level, level, len(tok), tok)
		}
		for i := 0; i < len(tok); i++ {
			if !strings.ContainsRune(base32, rune(tok[i])) {
				t.Errorf("Token %s contains %q outside the base-32 alphabet", tok, tok[i])
			}
		}
	}
}

func TestAncestryIsPlainPrefix(t *testing.T) {
	sys := New()
	prev := ""
	for level := 1; level <= sys.MaxLevel(); level++ {
		tok, err := sys.TokenAt(-33.8688, 151.2093, level)
		if err != nil {
			t.Fatalf("TokenAt level %d failed: %v", level, err)
		}
		if !strings.HasPrefix(tok, prev) {
			t.Fatalf("Expected %s to extend its parent %s", tok, prev)
		}
		prev = tok
	}
}

func TestCellAtValidation(t *testing.T) {
	sys := New()

	if _, err := sys.CellAt(91, 0, 5); err == nil {
		t.Error("Expected error for latitude out of range")
	}
	if _, err := sys.CellAt(0, 181, 5); err == nil {
		t.Error("Expected error for longitude out of range")
	}
	if _, err := sys.CellAt(0, 0, -1); err == nil {
		t.Error("Expected error for negative level")
	}
	if _, err := sys.CellAt(0, 0, 13); err == nil {
		t.Error("Expected error for level beyond max precision")
	}

	root, err := sys.CellAt(0, 0, 0)
	if err != nil {
		t.Fatalf("CellAt level 0 failed: %v", err)
	}
	if root.Token() != "" || root.Level() != 0 {
		t.Errorf("Expected root cell with empty token, got %q at level %d", root.Token(), root.Level())
	}
}

func TestChildrenEnumerateBase32(t *testing.T) {
	c := CellFromToken("u4p")
	kids := c.Children()
	if len(kids) != 32 {
		t.Fatalf("Expected 32 children, got %d", len(kids))
	}
	if kids[0].Token() != "u4p0" {
		t.Errorf("Expected first child u4p0, got %s", kids[0].Token())
	}
	if kids[31].Token() != "u4pz" {
		t.Errorf("Expected last child u4pz, got %s", kids[31].Token())
	}
	for i, k := range kids {
		if k.Level() != 4 {
			t.Errorf("Child %d at level %d, expected 4", i, k.Level())
		}
	}

	leaf := CellFromToken("u4pruydqqvjb")
	if got := leaf.Children(); got != nil {
		t.Errorf("Expected nil children at max precision, got %d", len(got))
	}
}

func TestCoveringStaysWithinBudget(t *testing.T) {
	sys := New()
	region := grid.Circle{Lat: 48.8566, Lng: 2.3522, RadiusMeters: 50000}
	params := grid.CoveringParams{MinLevel: 1, MaxLevel: 6, MaxCells: 32}

	cells, err := sys.Covering(region, params)
	if err != nil {
		t.Fatalf("Covering failed: %v", err)
	}
	if len(cells) == 0 {
		t.Fatal("Expected a non-empty covering")
	}
	if len(cells) > params.MaxCells {
		t.Errorf("Expected at most %d cells, got %d", params.MaxCells, len(cells))
	}
	level := cells[0].Level()
	if level < params.MinLevel || level > params.MaxLevel {
		t.Errorf("Covering level %d outside [%d, %d]", level, params.MinLevel, params.MaxLevel)
	}
	for _, c := range cells {
		if c.Level() != level {
			t.Errorf("Expected a uniform covering level, got %d and %d", level, c.Level())
		}
	}
}

func TestCoveringContainsRectCorners(t *testing.T) {
	sys := New()
	region := grid.Rect{MinLat: 40.70, MinLng: -74.02, MaxLat: 40.71, MaxLng: -74.01}
	params := grid.CoveringParams{MinLevel: 5, MaxLevel: 5, MaxCells: 16}

	cells, err := sys.Covering(region, params)
	if err != nil {
		t.Fatalf("Covering failed: %v", err)
	}
	have := map[string]bool{}
	for _, c := range cells {
		have[c.Token()] = true
	}

	points := [][2]float64{
		{40.70, -74.02},
		{40.70, -74.01},
		{40.71, -74.02},
		{40.71, -74.01},
		{40.705, -74.015},
	}
	for _, pt := range points {
		tok, err := sys.TokenAt(pt[0], pt[1], 5)
		if err != nil {
			t.Fatalf("TokenAt failed: %v", err)
		}
		if !have[tok] {
			t.Errorf("Expected covering to contain cell %s for point (%v, %v)", tok, pt[0], pt[1])
		}
	}
}

func TestCoveringCoarsensWideRegions(t *testing.T) {
	sys := New()
	region := grid.Rect{MinLat: -80, MinLng: -170, MaxLat: 80, MaxLng: 170}
	params := grid.CoveringParams{MinLevel: 1, MaxLevel: 4, MaxCells: 40}

	cells, err := sys.Covering(region, params)
	if err != nil {
		t.Fatalf("Covering failed: %v", err)
	}
	if len(cells) == 0 || len(cells) > params.MaxCells {
		t.Fatalf("Expected between 1 and %d cells, got %d", params.MaxCells, len(cells))
	}
	if cells[0].Level() != 1 {
		t.Errorf("Expected the sweep to coarsen to level 1, got %d", cells[0].Level())
	}
}

func TestCoveringRejectsBudgetOverrunAtMinLevel(t *testing.T) {
	// With the level floor pinned, a near-global region cannot coarsen
	// its way under the cell budget; it must fail fast instead of
	// enumerating tens of thousands of cells.
	sys := New()
	region := grid.Rect{MinLat: -60, MinLng: -170, MaxLat: 60, MaxLng: 170}

	for _, level := range []int{3, 4} {
		_, err := sys.Covering(region, grid.CoveringParams{
			MinLevel: level, MaxLevel: level, MaxCells: 8,
		})
		if err == nil {
			t.Fatalf("Expected an error for level %d pinned over budget", level)
		}
		if !errors.Is(err, grid.ErrBadParams) {
			t.Errorf("Expected ErrBadParams at level %d, got %v", level, err)
		}
	}

	// Without a floor the same region degrades to the root cell.
	cells, err := sys.Covering(region, grid.CoveringParams{
		MinLevel: 0, MaxLevel: 4, MaxCells: 8,
	})
	if err != nil {
		t.Fatalf("Covering failed: %v", err)
	}
	if len(cells) != 1 || cells[0].Level() != 0 {
		t.Errorf("Expected the root cell, got %d cells", len(cells))
	}
}

func TestTranslatedPrefixesEqualCellTokens(t *testing.T) {
	sys := New()
	region := grid.Circle{Lat: 34.05, Lng: -118.24, RadiusMeters: 3000}
	params := grid.CoveringParams{MinLevel: 1, MaxLevel: 6, MaxCells: 64}

	cells, err := sys.Covering(region, params)
	if err != nil {
		t.Fatalf("Covering failed: %v", err)
	}

	prefixes, err := covering.New(sys).Prefixes(cells)
	if err != nil {
		t.Fatalf("Prefixes failed: %v", err)
	}

	// Unpadded tokens: trimming a child token yields the parent itself,
	// so translation is exact.
	if len(prefixes) != len(cells) {
		t.Fatalf("Expected %d prefixes, got %d", len(cells), len(prefixes))
	}
	for i, c := range cells {
		if prefixes[i] != c.Token() {
			t.Errorf("Expected prefix %s to equal cell token %s", prefixes[i], c.Token())
		}
	}
}
