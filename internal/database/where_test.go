package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/seuros/scout/internal/filters"
)

func TestBuildWhereEmptyQuery(t *testing.T) {
	clause, args := BuildWhere(filters.DefaultSchema(), filters.Query{}, 1)

	assert.Empty(t, clause)
	assert.Empty(t, args)
	assert.Empty(t, whereSQL(clause))
}

func TestBuildWhereDatesAndDimensions(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)
	q := filters.Query{
		From: &from,
		To:   &to,
		Dimensions: map[string][]string{
			"brand":  {"Alaska", "Nestle"},
			"region": {"NCR"},
			"galaxy": {"ignored"},
		},
	}

	clause, args := BuildWhere(filters.DefaultSchema(), q, 1)

	assert.Equal(t, `occurred_at >= $1 AND occurred_at <= $2 AND "region" IN ($3) AND "brand" IN ($4, $5)`, clause)
	assert.Equal(t, []any{from, to, "NCR", "Alaska", "Nestle"}, args)
}

func TestBuildWhereStartArgOffset(t *testing.T) {
	q := filters.Query{Dimensions: map[string][]string{"store": {"S-01"}}}

	clause, args := BuildWhere(filters.DefaultSchema(), q, 3)

	assert.Equal(t, `"store" IN ($3)`, clause)
	assert.Equal(t, []any{"S-01"}, args)
	assert.Equal(t, ` WHERE "store" IN ($3)`, whereSQL(clause))
}

func TestBuildWhereFromStoreState(t *testing.T) {
	state := filters.DefaultState()
	state.Dimensions["category"] = []string{"Snacks"}
	state.Drilldown = []filters.DrilldownLevel{{Level: "category", Value: "Snacks"}}

	clause, args := BuildWhere(filters.DefaultSchema(), state.DataQuery(), 1)

	assert.Equal(t, `"category" IN ($1)`, clause)
	assert.Equal(t, []any{"Snacks"}, args)
}
