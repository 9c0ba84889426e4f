package request

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePagination_Defaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/projects", nil)
	p := ParsePagination(r)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Empty(t, p.Cursor)
}

func TestParsePagination_Explicit(t *testing.T) {
	r := httptest.NewRequest("GET", "/projects?limit=10&cursor=p5", nil)
	p := ParsePagination(r)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, "p5", p.Cursor)
}

func TestParsePagination_ClampsToMax(t *testing.T) {
	r := httptest.NewRequest("GET", "/projects?limit=9999", nil)
	p := ParsePagination(r)
	assert.Equal(t, MaxLimit, p.Limit)
}

func TestParsePagination_IgnoresGarbage(t *testing.T) {
	r := httptest.NewRequest("GET", "/projects?limit=banana", nil)
	p := ParsePagination(r)
	assert.Equal(t, DefaultLimit, p.Limit)

	r = httptest.NewRequest("GET", "/projects?limit=-3", nil)
	p = ParsePagination(r)
	assert.Equal(t, DefaultLimit, p.Limit)
}
