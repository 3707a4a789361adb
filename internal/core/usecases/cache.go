package usecases

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/core/ports"
	"github.com/jacobh/howitt-sub000/internal/pkg/logging"
	"github.com/jacobh/howitt-sub000/internal/pkg/metrics"
	"github.com/jacobh/howitt-sub000/internal/pkg/telemetry"
)

// Every cached query lives under this prefix so an import can drop them all.
const cachePrefix = "features:"

const indexKey = cachePrefix + "index"

// nearbyKey rounds the point to 5 decimals (about a meter).
func nearbyKey(p domain.GeoPoint, radius float64, limit int) string {
	return fmt.Sprintf(cachePrefix+"nearby:%.5f:%.5f:%.0f:%d", p.Lon, p.Lat, radius, limit)
}

func featureKey(id string) string {
	return cachePrefix + "id:" + id
}

// readThrough returns the cached value for key, or loads and caches it.
// Cache failures never fail the request.
func readThrough[T any](ctx context.Context, cache ports.CacheService, ttl int, op, key string, load func(context.Context) (T, error)) (T, error) {
	if cache != nil && ttl > 0 {
		span := trace.SpanFromContext(ctx)
		if data, err := cache.Get(ctx, key); err == nil {
			var v T
			if err := json.Unmarshal(data, &v); err == nil {
				metrics.CacheHits.WithLabelValues(op).Inc()
				span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, true))
				return v, nil
			}
		}
		metrics.CacheMisses.WithLabelValues(op).Inc()
		span.SetAttributes(attribute.Bool(telemetry.AttrCacheHit, false))
	}

	v, err := load(ctx)
	if err != nil {
		return v, err
	}

	if cache != nil && ttl > 0 {
		if data, err := json.Marshal(v); err == nil {
			if err := cache.Set(ctx, key, data, ttl); err != nil {
				logging.FromContext(ctx).Debug("cache set failed", "key", key, "error", err)
			}
		}
	}
	return v, nil
}
