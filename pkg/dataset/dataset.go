// ABOUTME: GeoJSON point dataset loading
// ABOUTME: Parses FeatureCollections into indexable point records

package dataset

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
)

// Point is one named coordinate with free-form tags. Its ID is the
// identity the query engine deduplicates on.
type Point struct {
	ID   string            `json:"id"`
	Name string            `json:"name,omitempty"`
	Lat  float64           `json:"lat"`
	Lng  float64           `json:"lng"`
	Tags map[string]string `json:"tags,omitempty"`
}

// RecordID returns the point's stable identity.
func (p Point) RecordID() string { return p.ID }

// LoadGeoJSON parses a GeoJSON FeatureCollection and returns its Point
// features in document order. Non-point geometries are skipped. The id
// comes from the feature id, then a scalar "id" property, then a
// generated UUID. A "name" property becomes Name; other scalar
// properties land in Tags.
func LoadGeoJSON(data []byte) ([]Point, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parsing feature collection: %w", err)
	}

	points := make([]Point, 0, len(fc.Features))
	for _, f := range fc.Features {
		pt, ok := f.Geometry.(orb.Point)
		if !ok {
			continue
		}
		p := Point{
			ID:   featureID(f),
			Lat:  pt.Lat(),
			Lng:  pt.Lon(),
			Tags: map[string]string{},
		}
		for k, v := range f.Properties {
			s, ok := scalarString(v)
			if !ok || k == "id" {
				continue
			}
			if k == "name" {
				p.Name = s
				continue
			}
			p.Tags[k] = s
		}
		points = append(points, p)
	}
	return points, nil
}

// LoadGeoJSONFile reads and parses a GeoJSON file.
func LoadGeoJSONFile(path string) ([]Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	points, err := LoadGeoJSON(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return points, nil
}

// WithinRadius filters points to those within radiusMeters of the
// center, preserving order.
func WithinRadius(points []Point, lat, lng, radiusMeters float64) []Point {
	center := orb.Point{lng, lat}
	out := []Point{}
	for _, p := range points {
		if geo.Distance(center, orb.Point{p.Lng, p.Lat}) <= radiusMeters {
			out = append(out, p)
		}
	}
	return out
}

// featureID extracts a stable id for the feature, generating one when
// the document carries none.
func featureID(f *geojson.Feature) string {
	if s, ok := scalarString(f.ID); ok && s != "" {
		return s
	}
	if s, ok := scalarString(f.Properties["id"]); ok && s != "" {
		return s
	}
	return uuid.NewString()
}

// scalarString renders a JSON scalar as a string.
func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool:
		return strconv.FormatBool(t), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}
