package pagination

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Params
	}{
		{"no query", "", Params{Page: 1, PerPage: DefaultPerPage}},
		{"explicit", "page=3&per_page=50", Params{Page: 3, PerPage: 50}},
		{"negative page", "page=-1", Params{Page: 1, PerPage: DefaultPerPage}},
		{"zero page", "page=0", Params{Page: 1, PerPage: DefaultPerPage}},
		{"non-numeric page", "page=abc", Params{Page: 1, PerPage: DefaultPerPage}},
		{"size clamped", "per_page=200", Params{Page: 1, PerPage: MaxPerPage}},
		{"size at max", "per_page=100", Params{Page: 1, PerPage: 100}},
		{"zero size", "per_page=0", Params{Page: 1, PerPage: DefaultPerPage}},
		{"limit alias", "page=2&limit=5", Params{Page: 2, PerPage: 5}},
		{"per_page beats limit", "per_page=30&limit=5", Params{Page: 1, PerPage: 30}},
		{"bad per_page ignores limit", "per_page=x&limit=5", Params{Page: 1, PerPage: DefaultPerPage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/books?"+tt.query, nil)
			assert.Equal(t, tt.want, FromRequest(req))
		})
	}
}

func TestParams_Offset(t *testing.T) {
	assert.Equal(t, 0, Params{Page: 1, PerPage: 10}.Offset())
	assert.Equal(t, 10, Params{Page: 2, PerPage: 10}.Offset())
	assert.Equal(t, 50, Params{Page: 3, PerPage: 25}.Offset())
	assert.Equal(t, 80, Params{Page: 5, PerPage: 20}.Offset())
}

func TestNewResult_Pages(t *testing.T) {
	tests := []struct {
		name    string
		params  Params
		total   int
		pages   int
		hasNext bool
		hasPrev bool
	}{
		{"single page", Params{Page: 1, PerPage: 10}, 3, 1, false, false},
		{"middle page", Params{Page: 2, PerPage: 2}, 10, 5, true, true},
		{"last partial page", Params{Page: 3, PerPage: 5}, 11, 3, false, true},
		{"first of many", Params{Page: 1, PerPage: 5}, 20, 4, true, false},
		{"empty", Params{Page: 1, PerPage: 20}, 0, 0, false, false},
		{"past the end", Params{Page: 9, PerPage: 5}, 11, 3, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResult([]string{"x"}, tt.total, tt.params)
			assert.Equal(t, tt.total, r.TotalCount)
			assert.Equal(t, tt.params.Page, r.Page)
			assert.Equal(t, tt.params.PerPage, r.PerPage)
			assert.Equal(t, tt.pages, r.TotalPages)
			assert.Equal(t, tt.hasNext, r.HasNext)
			assert.Equal(t, tt.hasPrev, r.HasPrev)
		})
	}
}

func TestNewResult_NilDataRendersEmptyArray(t *testing.T) {
	body, err := json.Marshal(NewResult[string](nil, 0, Params{Page: 1, PerPage: DefaultPerPage}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"total_count":0,"page":1,"per_page":10,"total_pages":0,"has_next":false,"has_prev":false}`, string(body))
}
