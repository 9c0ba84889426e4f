package querybuilder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDelete_MultipleKeys(t *testing.T) {
	sql, err := BuildDelete("users", "id", []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id"::text IN ('u1', 'u2')`, sql)
}

func TestBuildDelete_QuotesHostileInput(t *testing.T) {
	sql, err := BuildDelete("users", "id", []string{"u1'; DROP TABLE users; --"})
	require.NoError(t, err)
	assert.NotContains(t, sql, "'u1'; DROP")
	assert.Contains(t, sql, `'u1''; DROP TABLE users; --'`)
}

func TestBuildDelete_Rejections(t *testing.T) {
	tooMany := make([]string, MaxDeleteKeys+1)
	for i := range tooMany {
		tooMany[i] = "k"
	}

	cases := []struct {
		name   string
		table  string
		pk     string
		values []string
	}{
		{"empty table", "", "id", []string{"u1"}},
		{"empty pk column", "users", "", []string{"u1"}},
		{"no keys", "users", "id", nil},
		{"empty key", "users", "id", []string{"u1", ""}},
		{"too many keys", "users", "id", tooMany},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildDelete(tc.table, tc.pk, tc.values)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidQuery))
		})
	}
}
