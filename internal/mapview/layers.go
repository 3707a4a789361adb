// Package mapview keeps a client's map layers in step with the features
// visible in its viewport: it diffs layer sets, unions extents for view
// fitting and debounces viewport-driven queries.
package mapview

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

// LayerKind tells the client how to draw a layer.
type LayerKind string

// LayerMarker is a point marker for a feature.
const LayerMarker LayerKind = "marker"

// Layer is one object drawn on the client's map.
type Layer struct {
	ID          string             `json:"id"`
	Kind        LayerKind          `json:"kind"`
	Fingerprint string             `json:"fingerprint"`
	Bounds      domain.Bounds      `json:"bounds"`
	Feature     *domain.GeoFeature `json:"feature,omitempty"`
}

// MarkerLayer renders a feature summary as a marker layer.
func MarkerLayer(f domain.FeatureSummary) Layer {
	props := map[string]any{
		"name":              f.Name,
		"kind":              string(f.Kind),
		"observation_count": f.ObservationCount,
	}
	gf := domain.PointFeature(f.ID, f.Location, props)
	return Layer{
		ID:          f.ID,
		Kind:        LayerMarker,
		Fingerprint: fingerprint(f.Name, string(f.Kind), f.Location, f.ObservationCount),
		Bounds:      domain.BoundsAround(f.Location),
		Feature:     &gf,
	}
}

func fingerprint(name, kind string, p domain.GeoPoint, count int) string {
	h := sha256.New()
	h.Write([]byte(name))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(p.String()))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(count)))
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Diff is the set of changes that turns one layer set into another.
type Diff struct {
	Add    []Layer  `json:"add"`
	Update []Layer  `json:"update"`
	Remove []string `json:"remove"`
}

// Empty reports whether the diff changes nothing.
func (d Diff) Empty() bool {
	return len(d.Add) == 0 && len(d.Update) == 0 && len(d.Remove) == 0
}

// LayerSet is the set of layers a client currently displays. It is not safe
// for concurrent use.
type LayerSet struct {
	layers map[string]Layer
}

// NewLayerSet returns an empty set.
func NewLayerSet() *LayerSet {
	return &LayerSet{layers: make(map[string]Layer)}
}

// Len returns the number of layers.
func (s *LayerSet) Len() int { return len(s.layers) }

// Get returns the layer with the given id.
func (s *LayerSet) Get(id string) (Layer, bool) {
	l, ok := s.layers[id]
	return l, ok
}

// IDs returns the layer ids in sorted order.
func (s *LayerSet) IDs() []string {
	ids := make([]string, 0, len(s.layers))
	for id := range s.layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Reconcile makes the set equal to desired and returns what changed.
// Adds and updates follow desired order; removals are sorted by id. When an id
// appears more than once in desired, the first occurrence wins.
func (s *LayerSet) Reconcile(desired []Layer) Diff {
	d := Diff{Add: []Layer{}, Update: []Layer{}, Remove: []string{}}
	keep := make(map[string]bool, len(desired))

	for _, l := range desired {
		if keep[l.ID] {
			continue
		}
		keep[l.ID] = true

		cur, ok := s.layers[l.ID]
		switch {
		case !ok:
			d.Add = append(d.Add, l)
		case cur.Fingerprint != l.Fingerprint || cur.Kind != l.Kind:
			d.Update = append(d.Update, l)
		default:
			continue
		}
		s.layers[l.ID] = l
	}

	for id := range s.layers {
		if !keep[id] {
			d.Remove = append(d.Remove, id)
		}
	}
	sort.Strings(d.Remove)
	for _, id := range d.Remove {
		delete(s.layers, id)
	}
	return d
}

// Clear removes every layer and returns the removal diff.
func (s *LayerSet) Clear() Diff {
	return s.Reconcile(nil)
}

// Extent returns the union of all layer bounds. ok is false for an empty set.
func (s *LayerSet) Extent() (domain.Bounds, bool) {
	bounds := make([]domain.Bounds, 0, len(s.layers))
	for _, l := range s.layers {
		bounds = append(bounds, l.Bounds)
	}
	return Union(bounds...)
}
