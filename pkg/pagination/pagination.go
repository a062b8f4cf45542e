// Package pagination reads page/per_page query parameters and shapes paged
// list responses.
package pagination

import (
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/Lv-up-Planner/initRepo/pkg/errors"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Params is a one-based page request.
type Params struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

// DefaultParams is the first page at the default size.
func DefaultParams() Params {
	return Params{Page: 1, PerPage: DefaultPerPage}
}

// Offset is the number of rows before the first row of the page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// FromRequest parses page and per_page. Absent values take the defaults;
// malformed or out-of-range values are rejected.
func FromRequest(r *http.Request) (Params, error) {
	p := DefaultParams()
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return Params{}, apperrors.InvalidInput("page must be a positive integer")
		}
		p.Page = v
	}
	if raw := q.Get("per_page"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > MaxPerPage {
			return Params{}, apperrors.InvalidInput(fmt.Sprintf("per_page must be between 1 and %d", MaxPerPage))
		}
		p.PerPage = v
	}
	return p, nil
}

// Result is one page of T with navigation metadata.
type Result[T any] struct {
	Data       []T  `json:"data"`
	TotalCount int  `json:"total_count"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

// NewResult builds the page for params out of totalCount rows.
func NewResult[T any](data []T, totalCount int, params Params) Result[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if params.PerPage > 0 {
		pages = (totalCount + params.PerPage - 1) / params.PerPage
	}
	return Result[T]{
		Data:       data,
		TotalCount: totalCount,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: pages,
		HasNext:    params.Page < pages,
		HasPrev:    params.Page > 1,
	}
}
