package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jacobh/howitt-sub000/internal/pkg/validation"
)

// NearbyParams are the query parameters of the radius query. Upper bounds
// on radius and limit are clamped by the feature service, not rejected.
type NearbyParams struct {
	Point  string  `query:"point"`
	Radius float64 `query:"radius" validate:"omitempty,gt=0"`
	Limit  int     `query:"limit" validate:"omitempty,min=1"`
}

// ExtentParams selects the features to fit; empty means all of them.
type ExtentParams struct {
	IDs string `query:"ids" validate:"omitempty,max=4096"`
}

// List splits the comma-separated ids, dropping blanks and duplicates.
func (p ExtentParams) List() []string {
	if p.IDs == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, id := range strings.Split(p.IDs, ",") {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// PageParams are offset/limit pagination parameters.
type PageParams struct {
	Offset int `query:"offset" validate:"min=0"`
	Limit  int `query:"limit" validate:"omitempty,min=1,max=500"`
}

// bindQuery parses the query string into dst and validates it. A parse
// failure is a bad_request; a rule failure is a validation_error. ok is
// false when a response has already been written.
func bindQuery(c *fiber.Ctx, dst any) (ok bool, err error) {
	if err := c.QueryParser(dst); err != nil {
		return false, errBadRequest(c, "invalid query parameters: "+err.Error())
	}
	if err := validation.Struct(dst); err != nil {
		return false, errFrom(c, err)
	}
	return true, nil
}
