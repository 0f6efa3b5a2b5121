package core

import "context"

// Transactor opens a unit of work spanning several repositories.
// fn receives a context bound to the transaction: every store call made inside
// the unit of work must use it. The transaction commits when fn returns nil and
// rolls back otherwise, nothing written inside fn is visible on error.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// Pagination is a 1-based page request.
type Pagination struct {
	Page     int
	PageSize int
}

// NewPagination clamps page and size against the configured limits.
func NewPagination(page, size int, conf PaginationConfig) Pagination {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = conf.DefaultPageSize
	}
	if conf.MaxPageSize > 0 && size > conf.MaxPageSize {
		size = conf.MaxPageSize
	}
	return Pagination{Page: page, PageSize: size}
}

func (p Pagination) Offset() int { return (p.Page - 1) * p.PageSize }

// PageInfo is the envelope of every paginated listing.
type PageInfo struct {
	CurrentPage  int   `json:"currentPage"`
	TotalPages   int   `json:"totalPages"`
	TotalItems   int64 `json:"totalItems"`
	ItemsPerPage int   `json:"itemsPerPage"`
}

func NewPageInfo(p Pagination, total int64) PageInfo {
	pages := 0
	if p.PageSize > 0 {
		pages = int((total + int64(p.PageSize) - 1) / int64(p.PageSize))
	}
	return PageInfo{
		CurrentPage:  p.Page,
		TotalPages:   pages,
		TotalItems:   total,
		ItemsPerPage: p.PageSize,
	}
}
