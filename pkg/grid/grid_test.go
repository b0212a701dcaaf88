// ABOUTME: Tests for region and covering parameter validation
// ABOUTME: Exercises the contract checks adapters and the engine rely on

package grid

import (
	"errors"
	"testing"
)

// stubSystem provides just enough of System for parameter checks.
type stubSystem struct {
	maxLevel int
}

func (s stubSystem) Name() string           { return "stub" }
func (s stubSystem) Alphabet() string       { return "0123" }
func (s stubSystem) FanOut() int            { return 4 }
func (s stubSystem) MaxLevel() int          { return s.maxLevel }
func (s stubSystem) MaxTokenLength() int    { return s.maxLevel }
func (s stubSystem) CellAt(lat, lng float64, level int) (Cell, error) {
	return nil, nil
}
func (s stubSystem) TokenAt(lat, lng float64, level int) (string, error) {
	return "", nil
}
func (s stubSystem) Covering(r Region, p CoveringParams) ([]Cell, error) {
	return nil, nil
}

func TestCoveringParamsValidate(t *testing.T) {
	sys := stubSystem{maxLevel: 10}

	ok := CoveringParams{MinLevel: 2, MaxLevel: 8, MaxCells: 16}
	if err := ok.Validate(sys); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}

	cases := []struct {
		name string
		p    CoveringParams
	}{
		{"negative min", CoveringParams{MinLevel: -1, MaxLevel: 5, MaxCells: 8}},
		{"min above max", CoveringParams{MinLevel: 6, MaxLevel: 5, MaxCells: 8}},
		{"max at hierarchy maximum", CoveringParams{MinLevel: 0, MaxLevel: 10, MaxCells: 8}},
		{"max above hierarchy maximum", CoveringParams{MinLevel: 0, MaxLevel: 11, MaxCells: 8}},
		{"zero cells", CoveringParams{MinLevel: 0, MaxLevel: 5, MaxCells: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.p.Validate(sys)
			if err == nil {
				t.Fatalf("expected error for %+v", tc.p)
			}
			if !errors.Is(err, ErrBadParams) {
				t.Errorf("expected ErrBadParams, got %v", err)
			}
		})
	}
}

func TestCoveringParamsDeepestUsableLevel(t *testing.T) {
	// One level below the hierarchy maximum is the deepest a covering
	// may go: those cells still have children to descend into.
	sys := stubSystem{maxLevel: 10}
	p := CoveringParams{MinLevel: 0, MaxLevel: 9, MaxCells: 4}
	if err := p.Validate(sys); err != nil {
		t.Errorf("max level 9 of 10 rejected: %v", err)
	}
}

func TestDefaultCoveringParams(t *testing.T) {
	sys := stubSystem{maxLevel: 30}
	p := DefaultCoveringParams(sys)
	if err := p.Validate(sys); err != nil {
		t.Errorf("default params do not validate: %v", err)
	}
}

func TestCircleValidate(t *testing.T) {
	if err := (Circle{Lat: 48.2, Lng: 16.37, RadiusMeters: 500}).Validate(); err != nil {
		t.Errorf("valid circle rejected: %v", err)
	}

	err := (Circle{Lat: 91, Lng: 0, RadiusMeters: 500}).Validate()
	if !errors.Is(err, ErrBadCoordinate) {
		t.Errorf("expected ErrBadCoordinate, got %v", err)
	}

	err = (Circle{Lat: 0, Lng: 0, RadiusMeters: 0}).Validate()
	if !errors.Is(err, ErrBadRegion) {
		t.Errorf("expected ErrBadRegion for zero radius, got %v", err)
	}
}

func TestRectValidate(t *testing.T) {
	if err := (Rect{MinLat: -1, MinLng: -1, MaxLat: 1, MaxLng: 1}).Validate(); err != nil {
		t.Errorf("valid rect rejected: %v", err)
	}

	err := (Rect{MinLat: 1, MinLng: 0, MaxLat: -1, MaxLng: 1}).Validate()
	if !errors.Is(err, ErrBadRegion) {
		t.Errorf("expected ErrBadRegion for inverted corners, got %v", err)
	}

	err = (Rect{MinLat: 0, MinLng: -200, MaxLat: 1, MaxLng: 1}).Validate()
	if !errors.Is(err, ErrBadCoordinate) {
		t.Errorf("expected ErrBadCoordinate, got %v", err)
	}
}
