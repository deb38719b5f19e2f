package product

import (
	"math"
	"strings"
)

// Paging defaults applied when a query omits them.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// SortField names a product attribute that results may be ordered by. Only
// values listed in sortFields are accepted; storage layers map them to fixed
// column identifiers and never interpolate client input.
type SortField string

// Sortable product attributes.
const (
	SortByID        SortField = "id"
	SortByName      SortField = "name"
	SortByPrice     SortField = "price"
	SortByCategory  SortField = "category"
	SortByAvailable SortField = "available"
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
)

var sortFields = map[string]SortField{
	"id":        SortByID,
	"name":      SortByName,
	"price":     SortByPrice,
	"category":  SortByCategory,
	"available": SortByAvailable,
	"createdat": SortByCreatedAt,
	"updatedat": SortByUpdatedAt,
}

// SortFields returns the allow-listed sort fields.
func SortFields() []SortField {
	return []SortField{
		SortByID, SortByName, SortByPrice, SortByCategory,
		SortByAvailable, SortByCreatedAt, SortByUpdatedAt,
	}
}

// Direction is the ordering applied to the sort field.
type Direction string

// Sort directions.
const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// PageRequest selects a page of an ordered result set.
type PageRequest struct {
	Page      int
	Size      int
	Sort      SortField
	Direction Direction
}

// Offset returns the number of records preceding the requested page.
func (r PageRequest) Offset() int64 {
	return int64(r.Page) * int64(r.Size)
}

// DefaultPageRequest returns the first page ordered by id ascending.
func DefaultPageRequest() PageRequest {
	return PageRequest{Page: 0, Size: DefaultPageSize, Sort: SortByID, Direction: Asc}
}

// NewPageRequest validates raw paging input. Empty sort and direction fall
// back to id/asc. Unknown sort fields and directions are rejected with a
// ValidationError rather than passed through.
func NewPageRequest(page, size int, sort, direction string) (PageRequest, error) {
	fields := make(map[string]string)

	if page < 0 {
		fields["page"] = "page must not be negative"
	}
	if size < 1 || size > MaxPageSize {
		fields["size"] = "size must be between 1 and 1000"
	} else if page > 0 && int64(page) > math.MaxInt64/int64(size) {
		fields["page"] = "page is too large"
	}

	field := SortByID
	if sort != "" {
		f, ok := sortFields[strings.ToLower(sort)]
		if !ok {
			fields["sort"] = "unsupported sort field '" + sort + "'"
		}
		field = f
	}

	dir := Asc
	switch strings.ToLower(direction) {
	case "", "asc":
	case "desc":
		dir = Desc
	default:
		fields["direction"] = "direction must be 'asc' or 'desc'"
	}

	if len(fields) > 0 {
		return PageRequest{}, &ValidationError{Fields: fields}
	}
	return PageRequest{Page: page, Size: size, Sort: field, Direction: dir}, nil
}

// Page is a bounded, ordered slice of a larger result set plus metadata.
type Page[T any] struct {
	Content       []T
	Page          int
	Size          int
	TotalElements int64
	TotalPages    int
	First         bool
	Last          bool
}

// NewPage builds a Page for content fetched with req out of total records.
func NewPage[T any](content []T, req PageRequest, total int64) Page[T] {
	if content == nil {
		content = []T{}
	}
	totalPages := 0
	if req.Size > 0 {
		totalPages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Content:       content,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    totalPages,
		First:         req.Page == 0,
		Last:          total == 0 || req.Page >= totalPages-1,
	}
}

// MapPage converts every element of p with fn, keeping the metadata.
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, len(p.Content))
	for i, v := range p.Content {
		out[i] = fn(v)
	}
	return Page[U]{
		Content:       out,
		Page:          p.Page,
		Size:          p.Size,
		TotalElements: p.TotalElements,
		TotalPages:    p.TotalPages,
		First:         p.First,
		Last:          p.Last,
	}
}
