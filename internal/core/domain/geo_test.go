package domain_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

func TestParsePoint(t *testing.T) {
	tests := []struct {
		raw  string
		want domain.GeoPoint
	}{
		{"147.25,-37.45", domain.GeoPoint{Lon: 147.25, Lat: -37.45}},
		{" 147.25 , -37.45 ", domain.GeoPoint{Lon: 147.25, Lat: -37.45}},
		{"-180,90", domain.GeoPoint{Lon: -180, Lat: 90}},
		{"0,0", domain.GeoPoint{}},
	}
	for _, tt := range tests {
		got, err := domain.ParsePoint(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestParsePoint_Malformed(t *testing.T) {
	for _, raw := range []string{
		"", "147.25", "147.25,-37.45,3", "abc,def", "147.25,", ",-37.45",
		"181,0", "0,91", "-180.0001,0", "NaN,0", "0,Inf", "1e400,0",
		"0x1p4,0x1p2", "1_0,2", "147.25,-0X1P2", "+Inf,0",
	} {
		_, err := domain.ParsePoint(raw)
		assert.ErrorIs(t, err, domain.ErrMalformedPoint, "input %q", raw)
	}
}

func TestGeoPoint_StringRoundTrip(t *testing.T) {
	p := domain.GeoPoint{Lat: -37.123456, Lon: 147.654321}
	got, err := domain.ParsePoint(p.String())
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestGeoPoint_Valid(t *testing.T) {
	assert.True(t, domain.GeoPoint{Lat: -90, Lon: 180}.Valid())
	assert.False(t, domain.GeoPoint{Lat: math.NaN()}.Valid())
	assert.False(t, domain.GeoPoint{Lon: math.Inf(1)}.Valid())
	assert.False(t, domain.GeoPoint{Lat: 90.1}.Valid())
}

func TestBounds(t *testing.T) {
	b := domain.BoundsAround(domain.GeoPoint{Lat: -37, Lon: 147})
	assert.True(t, b.Valid())
	assert.True(t, b.Contains(domain.GeoPoint{Lat: -37, Lon: 147}))

	b = b.Extend(domain.GeoPoint{Lat: -36, Lon: 146})
	assert.Equal(t, domain.Bounds{MinLat: -37, MinLon: 146, MaxLat: -36, MaxLon: 147}, b)
	assert.Equal(t, domain.GeoPoint{Lat: -36.5, Lon: 146.5}, b.Center())

	lat, lon := b.Span()
	assert.Equal(t, 1.0, lat)
	assert.Equal(t, 1.0, lon)

	other := domain.Bounds{MinLat: -36.5, MinLon: 146.9, MaxLat: -30, MaxLon: 150}
	assert.True(t, b.Intersects(other))
	assert.Equal(t, domain.Bounds{MinLat: -37, MinLon: 146, MaxLat: -30, MaxLon: 150}, b.Union(other))

	far := domain.Bounds{MinLat: 10, MinLon: 10, MaxLat: 11, MaxLon: 11}
	assert.False(t, b.Intersects(far))

	assert.False(t, domain.Bounds{MinLat: 1, MaxLat: 0}.Valid())
	assert.False(t, domain.Bounds{MinLat: -91, MaxLat: 0}.Valid())
}

func TestBounds_Pad(t *testing.T) {
	b := domain.Bounds{MinLat: -37.5, MinLon: 147, MaxLat: -37, MaxLon: 147.5}

	assert.Equal(t, b, b.Pad(0))

	padded := b.Pad(1000)
	assert.InDelta(t, -37.5-1000/111320.0, padded.MinLat, 1e-9)
	assert.InDelta(t, -37+1000/111320.0, padded.MaxLat, 1e-9)
	assert.Less(t, padded.MinLon, b.MinLon)
	assert.Greater(t, padded.MaxLon, b.MaxLon)

	world := domain.Bounds{MinLat: -89.999, MinLon: -179.999, MaxLat: 89.999, MaxLon: 179.999}.Pad(10_000)
	assert.Equal(t, domain.Bounds{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}, world)
}

func TestBounds_DiagonalMeters(t *testing.T) {
	// One degree of latitude is about 111 km.
	b := domain.Bounds{MinLat: -37, MinLon: 147, MaxLat: -36, MaxLon: 147}
	assert.InDelta(t, 111_195, b.DiagonalMeters(), 100)
}
