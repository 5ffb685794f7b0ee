package database

import (
	"fmt"
	"strings"

	"github.com/seuros/scout/internal/filters"
)

// BuildWhere renders a filter query as SQL conditions joined by AND, with
// positional placeholders starting at $startArg. Dimensions are emitted in
// schema order; keys outside the schema are skipped. An empty query yields
// an empty clause.
func BuildWhere(schema *filters.Schema, q filters.Query, startArg int) (string, []any) {
	var conditions []string
	var args []any
	next := startArg

	placeholder := func(value any) string {
		args = append(args, value)
		p := fmt.Sprintf("$%d", next)
		next++
		return p
	}

	if q.From != nil {
		conditions = append(conditions, "occurred_at >= "+placeholder(*q.From))
	}
	if q.To != nil {
		conditions = append(conditions, "occurred_at <= "+placeholder(*q.To))
	}

	for _, key := range schema.Dimensions() {
		values := q.Dimensions[key]
		if len(values) == 0 {
			continue
		}
		in := make([]string, len(values))
		for i, v := range values {
			in[i] = placeholder(v)
		}
		conditions = append(conditions, fmt.Sprintf("%s IN (%s)", quoteIdent(key), strings.Join(in, ", ")))
	}

	return strings.Join(conditions, " AND "), args
}

// quoteIdent quotes a dimension key for use as a column name. Schema keys
// are already restricted to [a-z0-9_].
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func whereSQL(clause string) string {
	if clause == "" {
		return ""
	}
	return " WHERE " + clause
}
