// Package querybuilder turns tenant-supplied structured filter and update
// descriptions into parameterized, injection-safe SQL. Identifiers go through
// pq.QuoteIdentifier and values through pq.QuoteLiteral; nothing tenant-typed
// is ever interpolated raw.
package querybuilder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

// ErrInvalidQuery is returned for malformed tenant input. It is a validation
// error surfaced at the API boundary, never an internal failure.
var ErrInvalidQuery = errors.New("invalid query")

// MaxPredicates caps the size of a filter list.
const MaxPredicates = 50

// Predicate is one clause of a filtered search.
type Predicate struct {
	Field     string `json:"field"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
	Connector string `json:"connector"`
}

var validOperators = map[string]bool{
	"=": true, "<": true, "<=": true, ">": true, ">=": true, "!=": true,
}

var validConnectors = map[string]bool{
	"": true, "AND": true, "OR": true,
}

// BuildSearch renders a SELECT over table filtered by the given predicates.
// The final predicate's connector is forced empty regardless of caller input.
func BuildSearch(table string, predicates []Predicate) (string, error) {
	if table == "" {
		return "", fmt.Errorf("%w: empty table name", ErrInvalidQuery)
	}
	if len(predicates) == 0 {
		return "", fmt.Errorf("%w: no predicates", ErrInvalidQuery)
	}
	if len(predicates) > MaxPredicates {
		return "", fmt.Errorf("%w: %d predicates exceeds limit of %d", ErrInvalidQuery, len(predicates), MaxPredicates)
	}

	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(" WHERE ")

	last := len(predicates) - 1
	for i, p := range predicates {
		if p.Field == "" {
			return "", fmt.Errorf("%w: predicate %d has empty field", ErrInvalidQuery, i)
		}
		if p.Value == "" {
			return "", fmt.Errorf("%w: predicate %d has empty value", ErrInvalidQuery, i)
		}
		if !validOperators[p.Operator] {
			return "", fmt.Errorf("%w: predicate %d has invalid operator %q", ErrInvalidQuery, i, p.Operator)
		}
		if !validConnectors[p.Connector] {
			return "", fmt.Errorf("%w: predicate %d has invalid connector %q", ErrInvalidQuery, i, p.Connector)
		}
		if i != last && p.Connector == "" {
			return "", fmt.Errorf("%w: predicate %d is missing a connector", ErrInvalidQuery, i)
		}

		b.WriteString(pq.QuoteIdentifier(p.Field))
		b.WriteString(" ")
		b.WriteString(p.Operator)
		b.WriteString(" ")
		b.WriteString(pq.QuoteLiteral(p.Value))

		if i != last {
			b.WriteString(" ")
			b.WriteString(p.Connector)
			b.WriteString(" ")
		}
	}

	return b.String(), nil
}
