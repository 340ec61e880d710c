// Package pagination pages in-memory result lists for the JSON API.
package pagination

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const MaxLimit = 500

// Params holds pagination parameters extracted from a request. A zero
// Limit means the whole list.
type Params struct {
	Limit  int
	Offset int
}

// FromContext reads ?limit= and ?offset=. Missing or invalid values mean
// "everything from the start"; limits above MaxLimit are capped.
func FromContext(c echo.Context) Params {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 0 {
		limit = 0
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	return Params{Limit: limit, Offset: offset}
}

// Response wraps a paginated API response.
type Response struct {
	Data    interface{} `json:"data"`
	Total   int         `json:"total"`
	Limit   int         `json:"limit"`
	Offset  int         `json:"offset"`
	HasMore bool        `json:"hasMore"`
}

// Page cuts the requested window out of items and wraps it. The window of
// an offset past the end is empty, never nil.
func Page[T any](items []T, p Params) *Response {
	total := len(items)
	start := p.Offset
	if start > total {
		start = total
	}
	end := total
	if p.Limit > 0 && start+p.Limit < total {
		end = start + p.Limit
	}

	window := items[start:end]
	if window == nil {
		window = []T{}
	}
	return &Response{
		Data:    window,
		Total:   total,
		Limit:   p.Limit,
		Offset:  p.Offset,
		HasMore: end < total,
	}
}
