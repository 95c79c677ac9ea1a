package pagination

import (
	"fmt"
	"math"
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	MinPageSize       = 1
	MaxPageSize       = 10000000
	DefaultPageSize   = 10000000
	MinPageNumber     = 0
	DefaultPageNumber = 0

	// TotalCountHeader carries the record count for META projections.
	TotalCountHeader = "total-count"
)

// Params holds pagination parameters extracted from a request.
type Params struct {
	PageSize   int
	PageNumber int
}

// Default returns the parameters used when a request omits paging.
func Default() Params {
	return Params{PageSize: DefaultPageSize, PageNumber: DefaultPageNumber}
}

// FromContext extracts and validates the pageSize and pageNumber query
// parameters. Missing values take their defaults; malformed or out-of-range
// values are reported as errors.
func FromContext(c echo.Context) (Params, error) {
	p := Default()

	if raw := c.QueryParam("pageSize"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("pageSize must be an integer, got %q", raw)
		}
		p.PageSize = v
	}
	if raw := c.QueryParam("pageNumber"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return p, fmt.Errorf("pageNumber must be an integer, got %q", raw)
		}
		p.PageNumber = v
	}

	return p, p.Validate()
}

// Validate checks the parameters against the allowed bounds.
func (p Params) Validate() error {
	if p.PageSize < MinPageSize || p.PageSize > MaxPageSize {
		return fmt.Errorf("pageSize must be between %d and %d, got %d", MinPageSize, MaxPageSize, p.PageSize)
	}
	if p.PageNumber < MinPageNumber {
		return fmt.Errorf("pageNumber must be at least %d, got %d", MinPageNumber, p.PageNumber)
	}
	if p.PageNumber > math.MaxInt/p.PageSize {
		return fmt.Errorf("pageNumber %d is too large for pageSize %d", p.PageNumber, p.PageSize)
	}
	return nil
}

// Offset returns the number of records skipped before this page.
func (p Params) Offset() int {
	return p.PageSize * p.PageNumber
}

// Limit returns the maximum number of records on this page.
func (p Params) Limit() int {
	return p.PageSize
}

// SetTotalCount writes the total-count response header.
func SetTotalCount(c echo.Context, total int) {
	c.Response().Header().Set(TotalCountHeader, strconv.Itoa(total))
}
