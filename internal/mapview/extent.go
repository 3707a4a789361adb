package mapview

import (
	"math"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// Union returns the smallest box containing every valid input box.
// ok is false when there is none.
func Union(bounds ...domain.Bounds) (out domain.Bounds, ok bool) {
	for _, b := range bounds {
		if !b.Valid() {
			continue
		}
		if !ok {
			out, ok = b, true
			continue
		}
		out = out.Union(b)
	}
	return out, ok
}

// UnionPoints returns the smallest box containing every valid point.
func UnionPoints(points ...domain.GeoPoint) (out domain.Bounds, ok bool) {
	for _, p := range points {
		if !p.Valid() {
			continue
		}
		if !ok {
			out, ok = domain.BoundsAround(p), true
			continue
		}
		out = out.Extend(p)
	}
	return out, ok
}

// FitBounds prepares an extent for an initial map fit: each side is padded by
// padRatio of the span, and a box smaller than minSpanDeg (a single marker,
// say) is widened around its center so the map does not zoom in all the way.
func FitBounds(b domain.Bounds, padRatio, minSpanDeg float64) domain.Bounds {
	latSpan, lonSpan := b.Span()
	c := b.Center()

	if latSpan < minSpanDeg {
		b.MinLat, b.MaxLat = c.Lat-minSpanDeg/2, c.Lat+minSpanDeg/2
		latSpan = minSpanDeg
	}
	if lonSpan < minSpanDeg {
		b.MinLon, b.MaxLon = c.Lon-minSpanDeg/2, c.Lon+minSpanDeg/2
		lonSpan = minSpanDeg
	}

	if padRatio > 0 {
		b.MinLat -= latSpan * padRatio
		b.MaxLat += latSpan * padRatio
		b.MinLon -= lonSpan * padRatio
		b.MaxLon += lonSpan * padRatio
	}

	return domain.Bounds{
		MinLat: math.Max(b.MinLat, -90),
		MinLon: math.Max(b.MinLon, -180),
		MaxLat: math.Min(b.MaxLat, 90),
		MaxLon: math.Min(b.MaxLon, 180),
	}
}
