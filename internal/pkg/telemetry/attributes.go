package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrFeatureID    = "howitt.feature.id"
	AttrPoint        = "howitt.query.point"
	AttrRadius       = "howitt.query.radius_m"
	AttrLimit        = "howitt.query.limit"
	AttrResults      = "howitt.query.results"
	AttrCacheHit     = "howitt.cache.hit"
	AttrFeedSource   = "howitt.feed.source"
	AttrObservations = "howitt.feed.observations"
)

// Tracer returns the tracer used for application spans.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/jacobh/howitt-sub000")
}
