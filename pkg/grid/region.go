// ABOUTME: Query region types coverings are requested for
// ABOUTME: Closed set: Circle (point + radius) and Rect (lat/lng rectangle)

package grid

import "fmt"

// Region is a query area. The set of regions is closed: Circle and
// Rect. Adapters map each onto their grid library's native shapes.
type Region interface {
	Validate() error
	isRegion()
}

// Circle is a spherical cap: every point within RadiusMeters of the
// center coordinate.
type Circle struct {
	Lat          float64
	Lng          float64
	RadiusMeters float64
}

func (Circle) isRegion() {}

// Validate checks the center coordinate and radius.
func (c Circle) Validate() error {
	if err := CheckLatLng(c.Lat, c.Lng); err != nil {
		return err
	}
	if c.RadiusMeters <= 0 {
		return fmt.Errorf("%w: radius %v must be positive", ErrBadRegion, c.RadiusMeters)
	}
	return nil
}

// Rect is a latitude/longitude rectangle. Antimeridian-crossing
// rectangles are not supported: MinLng must not exceed MaxLng.
type Rect struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

func (Rect) isRegion() {}

// Validate checks corner coordinates and ordering.
func (r Rect) Validate() error {
	if err := CheckLatLng(r.MinLat, r.MinLng); err != nil {
		return err
	}
	if err := CheckLatLng(r.MaxLat, r.MaxLng); err != nil {
		return err
	}
	if r.MinLat > r.MaxLat || r.MinLng > r.MaxLng {
		return fmt.Errorf("%w: min corner must not exceed max corner", ErrBadRegion)
	}
	return nil
}
