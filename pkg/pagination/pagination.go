// Package pagination parses the page/limit query parameters shared by
// every list endpoint (sales, invoices, products, staff, expenses,
// audit logs). Limits are capped so a single request cannot pull a
// shop's full history.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Params holds validated pagination parameters. Offset is precomputed
// so repositories can pass it straight to the query.
type Params struct {
	Page   int
	Limit  int
	Offset int
}

// Parse extracts page/limit from the request, falling back to defaults
// on missing or malformed values rather than rejecting the request.
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))

	if page < 1 {
		page = DefaultPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	return Params{
		Page:   page,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
}
