package domain

import "fmt"

// FeatureCollection is a GeoJSON FeatureCollection (RFC 7946).
type FeatureCollection struct {
	Type     string       `json:"type"`
	BBox     []float64    `json:"bbox,omitempty"`
	Features []GeoFeature `json:"features"`
}

// GeoFeature is a GeoJSON Feature.
type GeoFeature struct {
	Type       string         `json:"type"`
	ID         string         `json:"id,omitempty"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry is a GeoJSON geometry. Only Point is produced by this service.
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// NewFeatureCollection returns an empty collection that encodes as
// {"type":"FeatureCollection","features":[]}.
func NewFeatureCollection() *FeatureCollection {
	return &FeatureCollection{Type: "FeatureCollection", Features: []GeoFeature{}}
}

// Append adds a feature to the collection.
func (fc *FeatureCollection) Append(f GeoFeature) {
	fc.Features = append(fc.Features, f)
}

// SetBounds attaches a bbox member in GeoJSON [west, south, east, north] order.
func (fc *FeatureCollection) SetBounds(b Bounds) {
	fc.BBox = []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat}
}

// PointFeature builds a GeoJSON Point feature. Coordinates are [lon, lat].
func PointFeature(id string, p GeoPoint, props map[string]any) GeoFeature {
	if props == nil {
		props = map[string]any{}
	}
	return GeoFeature{
		Type:       "Feature",
		ID:         id,
		Geometry:   Geometry{Type: "Point", Coordinates: []float64{p.Lon, p.Lat}},
		Properties: props,
	}
}

// FeatureFromGeoJSON converts an imported GeoJSON Point feature. The name,
// kind and remaining string properties are read from Properties.
func FeatureFromGeoJSON(f GeoFeature) (Feature, error) {
	if f.Geometry.Type != "Point" || len(f.Geometry.Coordinates) < 2 {
		return Feature{}, fmt.Errorf("%w: feature %q is not a point", ErrInvalidFeed, f.ID)
	}

	out := Feature{
		ID:       f.ID,
		Location: GeoPoint{Lon: f.Geometry.Coordinates[0], Lat: f.Geometry.Coordinates[1]},
		Kind:     KindOther,
		Tags:     map[string]string{},
	}
	for k, v := range f.Properties {
		s, ok := v.(string)
		if !ok {
			continue
		}
		switch k {
		case "id":
			if out.ID == "" {
				out.ID = s
			}
		case "name":
			out.Name = s
		case "kind":
			out.Kind = FeatureKind(s)
		default:
			out.Tags[k] = s
		}
	}
	return out, nil
}
