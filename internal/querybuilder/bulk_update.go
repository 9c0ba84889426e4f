package querybuilder

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// BuildBulkUpdate renders one set-based statement that updates an arbitrary
// number of rows in a single round trip: the updates are materialized as a
// VALUES list joined against the target table by primary key. A column absent
// for a given row becomes NULL in the VALUES row and falls back to the
// existing value through COALESCE, so omissions never null out data.
func BuildBulkUpdate(table, pkColumn string, updates map[string]map[string]string) (string, error) {
	if table == "" || pkColumn == "" {
		return "", fmt.Errorf("%w: empty table or primary key column", ErrInvalidQuery)
	}
	if len(updates) == 0 {
		return "", fmt.Errorf("%w: no rows to update", ErrInvalidQuery)
	}

	// Union of all columns mentioned across all rows, sorted so the
	// generated SQL is deterministic.
	colSet := map[string]bool{}
	for _, row := range updates {
		for col := range row {
			if col == "" {
				return "", fmt.Errorf("%w: empty column name", ErrInvalidQuery)
			}
			if col == pkColumn {
				return "", fmt.Errorf("%w: cannot update primary key column %q", ErrInvalidQuery, col)
			}
			colSet[col] = true
		}
	}
	if len(colSet) == 0 {
		return "", fmt.Errorf("%w: no columns to update", ErrInvalidQuery)
	}
	cols := make([]string, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	pks := make([]string, 0, len(updates))
	for pk := range updates {
		pks = append(pks, pk)
	}
	sort.Strings(pks)

	var b strings.Builder
	b.WriteString("WITH updated_data (")
	b.WriteString(pq.QuoteIdentifier(pkColumn))
	for _, col := range cols {
		b.WriteString(", ")
		b.WriteString(pq.QuoteIdentifier(col))
	}
	b.WriteString(") AS (\n  VALUES\n")

	for i, pk := range pks {
		row := updates[pk]
		b.WriteString("    (")
		b.WriteString(pq.QuoteLiteral(pk))
		for _, col := range cols {
			b.WriteString(", ")
			value, ok := row[col]
			b.WriteString(renderCell(col, value, ok))
		}
		b.WriteString(")")
		if i != len(pks)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}

	b.WriteString(")\nUPDATE ")
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(" AS t\nSET ")
	for i, col := range cols {
		if i > 0 {
			b.WriteString(", ")
		}
		quoted := pq.QuoteIdentifier(col)
		fmt.Fprintf(&b, "%s = COALESCE(u.%s, t.%s)", quoted, quoted, quoted)
	}
	// The VALUES keys are text literals, so the join casts the table-side
	// key. Integer and uuid primary keys match without a per-type branch.
	b.WriteString("\nFROM updated_data AS u\nWHERE t.")
	b.WriteString(pq.QuoteIdentifier(pkColumn))
	b.WriteString("::text = u.")
	b.WriteString(pq.QuoteIdentifier(pkColumn))

	return b.String(), nil
}

// renderCell renders one VALUES cell. Temporal columns accept both raw epoch
// milliseconds and literal timestamp text, so client-submitted date strings
// and epoch values are interchangeable.
func renderCell(col, value string, present bool) string {
	if isTemporalColumn(col) {
		if !present {
			return "NULL::timestamptz"
		}
		if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
			return fmt.Sprintf("to_timestamp(%d / 1000.0)", millis)
		}
		return pq.QuoteLiteral(value) + "::timestamptz"
	}
	if !present {
		return "NULL"
	}
	return pq.QuoteLiteral(value)
}

// isTemporalColumn reports whether a column name carries a temporal hint.
func isTemporalColumn(col string) bool {
	lower := strings.ToLower(col)
	return strings.Contains(lower, "date") ||
		strings.Contains(lower, "time") ||
		strings.HasSuffix(lower, "_at") ||
		strings.HasSuffix(col, "At")
}
