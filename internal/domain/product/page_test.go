package product

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageRequest_Defaults(t *testing.T) {
	req, err := NewPageRequest(0, DefaultPageSize, "", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultPageRequest(), req)
}

func TestNewPageRequest_CaseInsensitive(t *testing.T) {
	req, err := NewPageRequest(2, 10, "CreatedAt", "DESC")
	require.NoError(t, err)
	assert.Equal(t, SortByCreatedAt, req.Sort)
	assert.Equal(t, Desc, req.Direction)
	assert.Equal(t, int64(20), req.Offset())
}

func TestNewPageRequest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		page  int
		size  int
		sort  string
		dir   string
		field string
	}{
		{name: "negative page", page: -1, size: 10, field: "page"},
		{name: "zero size", page: 0, size: 0, field: "size"},
		{name: "oversized", page: 0, size: MaxPageSize + 1, field: "size"},
		{name: "unknown sort", page: 0, size: 10, sort: "name; DROP TABLE products", field: "sort"},
		{name: "unknown direction", page: 0, size: 10, dir: "sideways", field: "direction"},
		{name: "offset overflow", page: math.MaxInt64, size: 2, field: "page"},
		{name: "offset overflow at max size", page: math.MaxInt64/MaxPageSize + 1, size: MaxPageSize, field: "page"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPageRequest(tt.page, tt.size, tt.sort, tt.dir)
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestNewPageRequest_LargestPage(t *testing.T) {
	req, err := NewPageRequest(math.MaxInt64/MaxPageSize, MaxPageSize, "", "")
	require.NoError(t, err)
	assert.Positive(t, req.Offset())
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name       string
		req        PageRequest
		total      int64
		totalPages int
		first      bool
		last       bool
	}{
		{name: "empty", req: PageRequest{Page: 0, Size: 10}, total: 0, totalPages: 0, first: true, last: true},
		{name: "single page", req: PageRequest{Page: 0, Size: 10}, total: 7, totalPages: 1, first: true, last: true},
		{name: "first of three", req: PageRequest{Page: 0, Size: 10}, total: 25, totalPages: 3, first: true, last: false},
		{name: "middle", req: PageRequest{Page: 1, Size: 10}, total: 25, totalPages: 3, first: false, last: false},
		{name: "last", req: PageRequest{Page: 2, Size: 10}, total: 25, totalPages: 3, first: false, last: true},
		{name: "past the end", req: PageRequest{Page: 5, Size: 10}, total: 25, totalPages: 3, first: false, last: true},
		{name: "exact multiple", req: PageRequest{Page: 1, Size: 5}, total: 10, totalPages: 2, first: false, last: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage[int](nil, tt.req, tt.total)
			assert.NotNil(t, p.Content)
			assert.Equal(t, tt.totalPages, p.TotalPages)
			assert.Equal(t, tt.first, p.First)
			assert.Equal(t, tt.last, p.Last)
			assert.Equal(t, tt.total, p.TotalElements)
		})
	}
}

func TestMapPage(t *testing.T) {
	p := NewPage([]int{1, 2, 3}, PageRequest{Page: 1, Size: 3}, 9)
	m := MapPage(p, func(v int) string { return string(rune('a' + v - 1)) })

	assert.Equal(t, []string{"a", "b", "c"}, m.Content)
	assert.Equal(t, p.Page, m.Page)
	assert.Equal(t, p.TotalPages, m.TotalPages)
	assert.False(t, m.First)
	assert.False(t, m.Last)
}
