package pagination

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

const maxLimit = 100

type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParseFromRequest reads page and limit query parameters, clamping bad values.
func ParseFromRequest(c *fiber.Ctx) Pagination {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit < 1 {
		limit = 20
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Pagination{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}

// Response wraps a page of data with its position.
func Response(p Pagination, data interface{}, count int) fiber.Map {
	return fiber.Map{
		"data": data,
		"meta": fiber.Map{
			"current_page": p.Page,
			"per_page":     p.Limit,
			"count":        count,
		},
	}
}
