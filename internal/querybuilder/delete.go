package querybuilder

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// MaxDeleteKeys caps how many rows one delete request may target.
const MaxDeleteKeys = 200

// BuildDelete renders a delete of the rows whose primary key matches one of
// the given values. The key column is compared through a text cast so the
// quoted literals match integer and uuid keys as well as text ones.
func BuildDelete(table, pkColumn string, pkValues []string) (string, error) {
	if table == "" || pkColumn == "" {
		return "", fmt.Errorf("%w: empty table or primary key column", ErrInvalidQuery)
	}
	if len(pkValues) == 0 {
		return "", fmt.Errorf("%w: no keys to delete", ErrInvalidQuery)
	}
	if len(pkValues) > MaxDeleteKeys {
		return "", fmt.Errorf("%w: %d keys exceeds limit of %d", ErrInvalidQuery, len(pkValues), MaxDeleteKeys)
	}

	literals := make([]string, len(pkValues))
	for i, v := range pkValues {
		if v == "" {
			return "", fmt.Errorf("%w: key %d is empty", ErrInvalidQuery, i)
		}
		literals[i] = pq.QuoteLiteral(v)
	}

	var b strings.Builder
	b.WriteString("DELETE FROM ")
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(" WHERE ")
	b.WriteString(pq.QuoteIdentifier(pkColumn))
	b.WriteString("::text IN (")
	b.WriteString(strings.Join(literals, ", "))
	b.WriteString(")")
	return b.String(), nil
}
