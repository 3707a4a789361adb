package http

import (
	"errors"
	"sort"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/jacobh/howitt-sub000/internal/core/domain"
)

func tagList(tags map[string]string) []map[string]any {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]map[string]any, len(keys))
	for i, k := range keys {
		out[i] = map[string]any{"key": k, "value": tags[k]}
	}
	return out
}

func featureObject(f domain.Feature) map[string]any {
	return map[string]any{
		"id":       f.ID,
		"name":     f.Name,
		"kind":     string(f.Kind),
		"location": map[string]any{"lat": f.Location.Lat, "lon": f.Location.Lon},
		"tags":     tagList(f.Tags),
	}
}

func topicObjects(groups []domain.TopicGroup) ([]map[string]any, error) {
	out := make([]map[string]any, len(groups))
	for i, g := range groups {
		var metadata any
		if len(g.Metadata) > 0 {
			raw, err := json.Marshal(g.Metadata)
			if err != nil {
				return nil, err
			}
			metadata = string(raw)
		}
		posts := make([]map[string]any, len(g.Posts))
		for j, p := range g.Posts {
			posts[j] = map[string]any{
				"postId":   p.PostID,
				"author":   p.Author,
				"postedAt": p.PostedAt,
				"excerpt":  p.Excerpt,
			}
		}
		out[i] = map[string]any{
			"topicId":        g.TopicID,
			"title":          g.Title,
			"url":            g.URL,
			"latestPostedAt": g.LatestPostedAt,
			"metadata":       metadata,
			"posts":          posts,
		}
	}
	return out, nil
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// buildSchema creates the GraphQL schema wired to the feature service.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	tagType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Tag",
		Fields: graphql.Fields{
			"key":   &graphql.Field{Type: graphql.String},
			"value": &graphql.Field{Type: graphql.String},
		},
	})

	baseFields := func() graphql.Fields {
		return graphql.Fields{
			"id":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
			"name":     &graphql.Field{Type: graphql.String},
			"kind":     &graphql.Field{Type: graphql.String},
			"location": &graphql.Field{Type: geoPointType},
			"tags":     &graphql.Field{Type: graphql.NewList(tagType)},
		}
	}

	featureFields := baseFields()
	featureFields["observationCount"] = &graphql.Field{Type: graphql.Int}
	featureFields["lastObservedAt"] = &graphql.Field{Type: graphql.DateTime}
	featureType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "Feature",
		Fields: featureFields,
	})

	postType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Post",
		Fields: graphql.Fields{
			"postId":   &graphql.Field{Type: graphql.String},
			"author":   &graphql.Field{Type: graphql.String},
			"postedAt": &graphql.Field{Type: graphql.DateTime},
			"excerpt":  &graphql.Field{Type: graphql.String},
		},
	})

	topicType := graphql.NewObject(graphql.ObjectConfig{
		Name: "TopicGroup",
		Fields: graphql.Fields{
			"topicId":        &graphql.Field{Type: graphql.String},
			"title":          &graphql.Field{Type: graphql.String},
			"url":            &graphql.Field{Type: graphql.String},
			"latestPostedAt": &graphql.Field{Type: graphql.DateTime},
			"metadata":       &graphql.Field{Type: graphql.String, Description: "JSON-encoded metadata of the newest post"},
			"posts":          &graphql.Field{Type: graphql.NewList(postType)},
		},
	})

	nearbyFields := baseFields()
	nearbyFields["distanceM"] = &graphql.Field{Type: graphql.Float}
	nearbyFields["waterBeta"] = &graphql.Field{Type: graphql.NewList(topicType)}
	nearbyType := graphql.NewObject(graphql.ObjectConfig{
		Name:   "NearbyFeature",
		Fields: nearbyFields,
	})

	boundsType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Bounds",
		Fields: graphql.Fields{
			"minLat": &graphql.Field{Type: graphql.Float},
			"minLon": &graphql.Field{Type: graphql.Float},
			"maxLat": &graphql.Field{Type: graphql.Float},
			"maxLon": &graphql.Field{Type: graphql.Float},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"features": &graphql.Field{
				Type:        graphql.NewList(featureType),
				Description: "Every feature with its observation count",
				Resolve: func(p graphql.ResolveParams) (any, error) {
					all, err := deps.Features.Index(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]any, len(all))
					for i, f := range all {
						m := featureObject(f.Feature)
						m["observationCount"] = f.ObservationCount
						if f.LastObservedAt != nil {
							m["lastObservedAt"] = *f.LastObservedAt
						}
						out[i] = m
					}
					return out, nil
				},
			},
			"feature": &graphql.Field{
				Type:        featureType,
				Description: "A feature by id, or null",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					f, err := deps.Features.GetByID(p.Context, p.Args["id"].(string))
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return featureObject(*f), nil
				},
			},
			"nearbyFeatures": &graphql.Field{
				Type:        graphql.NewList(nearbyType),
				Description: "Features near a \"lon,lat\" point with their water beta",
				Args: graphql.FieldConfigArgument{
					"point":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					point, err := domain.ParsePoint(p.Args["point"].(string))
					if err != nil {
						return nil, err
					}
					radius, _ := p.Args["radius"].(float64)
					limit, _ := p.Args["limit"].(int)

					found, err := deps.Features.Nearby(p.Context, point, radius, limit)
					if err != nil {
						return nil, err
					}
					out := make([]map[string]any, len(found))
					for i, f := range found {
						topics, err := topicObjects(f.Topics)
						if err != nil {
							return nil, err
						}
						m := featureObject(f.Feature)
						m["distanceM"] = f.DistanceMeters
						m["waterBeta"] = topics
						out[i] = m
					}
					return out, nil
				},
			},
			"featureExtent": &graphql.Field{
				Type:        boundsType,
				Description: "Padded bounding box of the given features, or of all features",
				Args: graphql.FieldConfigArgument{
					"ids": &graphql.ArgumentConfig{Type: graphql.NewList(graphql.NewNonNull(graphql.String))},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					b, err := deps.Features.Extent(p.Context, stringList(p.Args["ids"]))
					if errors.Is(err, domain.ErrNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return map[string]any{
						"minLat": b.MinLat, "minLon": b.MinLon,
						"maxLat": b.MaxLat, "maxLon": b.MaxLon,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string         `json:"query"`
		OperationName string         `json:"operationName"`
		Variables     map[string]any `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil || req.Query == "" {
			return errBadRequest(c, "invalid request body")
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.UserContext(),
		})

		return c.JSON(result)
	}
}
