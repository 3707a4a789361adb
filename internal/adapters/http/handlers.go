package http

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
	"github.com/jacobh/howitt-sub000/internal/mapview"
)

// geoJSONContentType is sent with every FeatureCollection response.
const geoJSONContentType = "application/geo+json"

func featureProps(f domain.Feature) map[string]any {
	tags := f.Tags
	if tags == nil {
		tags = map[string]string{}
	}
	return map[string]any{
		"id":   f.ID,
		"name": f.Name,
		"kind": f.Kind,
		"tags": tags,
	}
}

func summaryFeature(f domain.FeatureSummary) domain.GeoFeature {
	props := featureProps(f.Feature)
	props["observation_count"] = f.ObservationCount
	if f.LastObservedAt != nil {
		props["last_observed_at"] = f.LastObservedAt.UTC().Format(time.RFC3339)
	}
	return domain.PointFeature(f.ID, f.Location, props)
}

func nearbyFeature(f domain.NearbyFeature) domain.GeoFeature {
	topics := f.Topics
	if topics == nil {
		topics = []domain.TopicGroup{}
	}
	props := featureProps(f.Feature)
	props["distance_m"] = math.Round(f.DistanceMeters*10) / 10
	props["water_beta"] = topics
	return domain.PointFeature(f.ID, f.Location, props)
}

func sendCollection(c *fiber.Ctx, fc *domain.FeatureCollection) error {
	if err := c.JSON(fc); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, geoJSONContentType)
	return nil
}

// FeatureIndexHandler returns every feature with its observation count.
func FeatureIndexHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		features, err := deps.Features.Index(c.UserContext())
		if err != nil {
			return errFrom(c, err)
		}

		fc := domain.NewFeatureCollection()
		points := make([]domain.GeoPoint, 0, len(features))
		for _, f := range features {
			fc.Append(summaryFeature(f))
			points = append(points, f.Location)
		}
		if b, ok := mapview.UnionPoints(points...); ok {
			fc.SetBounds(b)
		}
		return sendCollection(c, fc)
	}
}

// NearbyFeaturesHandler returns features around ?point=lon,lat annotated with
// their water beta.
func NearbyFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p NearbyParams
		if ok, err := bindQuery(c, &p); !ok {
			return err
		}
		if p.Point == "" {
			return errBadRequest(c, "point is required (lon,lat)")
		}
		point, err := domain.ParsePoint(p.Point)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		features, err := deps.Features.Nearby(c.UserContext(), point, p.Radius, p.Limit)
		if err != nil {
			return errFrom(c, err)
		}

		fc := domain.NewFeatureCollection()
		for _, f := range features {
			fc.Append(nearbyFeature(f))
		}
		return sendCollection(c, fc)
	}
}

// ExtentResponse is the bounding box a map should fit on first load.
type ExtentResponse struct {
	Bounds domain.Bounds   `json:"bounds"`
	BBox   []float64       `json:"bbox"`
	Center domain.GeoPoint `json:"center"`
}

// FeatureExtentHandler returns the padded extent of ?ids=a,b or of every
// feature.
func FeatureExtentHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p ExtentParams
		if ok, err := bindQuery(c, &p); !ok {
			return err
		}

		b, err := deps.Features.Extent(c.UserContext(), p.List())
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(ExtentResponse{
			Bounds: b,
			BBox:   []float64{b.MinLon, b.MinLat, b.MaxLon, b.MaxLat},
			Center: b.Center(),
		})
	}
}

// GetFeatureHandler returns one feature as a GeoJSON Feature.
func GetFeatureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f, err := deps.Features.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return errFrom(c, err)
		}
		out := domain.PointFeature(f.ID, f.Location, featureProps(*f))
		if err := c.JSON(out); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, geoJSONContentType)
		return nil
	}
}

// FeatureObservationsHandler returns one page of a feature's water beta rows.
func FeatureObservationsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var p PageParams
		if ok, err := bindQuery(c, &p); !ok {
			return err
		}

		rows, total, err := deps.Features.Observations(c.UserContext(), c.Params("id"), p.Offset, p.Limit)
		if err != nil {
			return errFrom(c, err)
		}
		if rows == nil {
			rows = []domain.Observation{}
		}

		pg := Pagination{Offset: p.Offset, Limit: deps.Features.ClampLimit(p.Limit), Total: total}
		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: rows, Pagination: pg})
	}
}

// StatsHandler returns row counts for features and water beta.
func StatsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := deps.Features.Stats(c.UserContext())
		if err != nil {
			return errFrom(c, err)
		}
		return c.JSON(stats)
	}
}
