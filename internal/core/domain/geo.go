package domain

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jacobh/howitt-sub000/internal/pkg/geospatial"
)

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within WGS 84 coordinate ranges.
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// String formats the point the way ParsePoint reads it.
func (p GeoPoint) String() string {
	return strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
}

// decimal matches a plain decimal number, optionally with an exponent.
// strconv alone would also accept hex floats and digit separators.
var decimal = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParsePoint parses a "lon,lat" query value.
func ParsePoint(raw string) (GeoPoint, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 2 {
		return GeoPoint{}, fmt.Errorf("%w: expected \"lon,lat\", got %q", ErrMalformedPoint, raw)
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
		if !decimal.MatchString(parts[i]) {
			return GeoPoint{}, fmt.Errorf("%w: %q is not a decimal number", ErrMalformedPoint, parts[i])
		}
	}

	lon, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: bad longitude %q", ErrMalformedPoint, parts[0])
	}
	lat, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: bad latitude %q", ErrMalformedPoint, parts[1])
	}

	p := GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return GeoPoint{}, fmt.Errorf("%w: %q is out of range", ErrMalformedPoint, raw)
	}
	return p, nil
}

// Bounds represents a geographic bounding box.
// Boxes crossing the antimeridian are not supported.
type Bounds struct {
	MinLat float64 `json:"min_lat" validate:"latitude"`
	MinLon float64 `json:"min_lon" validate:"longitude"`
	MaxLat float64 `json:"max_lat" validate:"latitude,gtefield=MinLat"`
	MaxLon float64 `json:"max_lon" validate:"longitude,gtefield=MinLon"`
}

// BoundsAround returns the degenerate box containing only p.
func BoundsAround(p GeoPoint) Bounds {
	return Bounds{MinLat: p.Lat, MinLon: p.Lon, MaxLat: p.Lat, MaxLon: p.Lon}
}

// Valid reports whether the min corner is not above the max corner and all
// corners are real coordinates.
func (b Bounds) Valid() bool {
	lo := GeoPoint{Lat: b.MinLat, Lon: b.MinLon}
	hi := GeoPoint{Lat: b.MaxLat, Lon: b.MaxLon}
	return lo.Valid() && hi.Valid() && b.MinLat <= b.MaxLat && b.MinLon <= b.MaxLon
}

// Extend grows b to include p.
func (b Bounds) Extend(p GeoPoint) Bounds {
	return Bounds{
		MinLat: math.Min(b.MinLat, p.Lat),
		MinLon: math.Min(b.MinLon, p.Lon),
		MaxLat: math.Max(b.MaxLat, p.Lat),
		MaxLon: math.Max(b.MaxLon, p.Lon),
	}
}

// Union returns the smallest box containing both b and o.
func (b Bounds) Union(o Bounds) Bounds {
	return Bounds{
		MinLat: math.Min(b.MinLat, o.MinLat),
		MinLon: math.Min(b.MinLon, o.MinLon),
		MaxLat: math.Max(b.MaxLat, o.MaxLat),
		MaxLon: math.Max(b.MaxLon, o.MaxLon),
	}
}

// Contains reports whether p lies inside b (edges inclusive).
func (b Bounds) Contains(p GeoPoint) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Intersects reports whether the two boxes overlap (touching counts).
func (b Bounds) Intersects(o Bounds) bool {
	return b.MinLat <= o.MaxLat && o.MinLat <= b.MaxLat && b.MinLon <= o.MaxLon && o.MinLon <= b.MaxLon
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return GeoPoint{Lat: (b.MinLat + b.MaxLat) / 2, Lon: (b.MinLon + b.MaxLon) / 2}
}

// Span returns the height and width of the box in degrees.
func (b Bounds) Span() (lat, lon float64) {
	return b.MaxLat - b.MinLat, b.MaxLon - b.MinLon
}

// DiagonalMeters returns the corner-to-corner distance of the box.
func (b Bounds) DiagonalMeters() float64 {
	return geospatial.Diagonal(b.MinLat, b.MinLon, b.MaxLat, b.MaxLon)
}

// Pad grows the box by roughly meters on every side, clamped to valid ranges.
func (b Bounds) Pad(meters float64) Bounds {
	if meters <= 0 {
		return b
	}
	minLat, minLon, _, _ := geospatial.BoundingBox(b.MinLat, b.MinLon, meters)
	_, _, maxLat, maxLon := geospatial.BoundingBox(b.MaxLat, b.MaxLon, meters)
	return Bounds{
		MinLat: math.Max(minLat, -90),
		MinLon: math.Max(minLon, -180),
		MaxLat: math.Min(maxLat, 90),
		MaxLon: math.Min(maxLon, 180),
	}
}
