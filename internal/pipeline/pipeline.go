// Package pipeline wires the query, fetch, transform and sink components
// into the two batch jobs: updating a brand's table and charting NOVA
// distributions across brands.
package pipeline

import (
	"context"

	"novawatch/internal/brandtable"
	"novawatch/internal/offapi"
	"novawatch/internal/offsql"
)

// Querier runs analytic queries, *offapi.Client implements it.
type Querier interface {
	Query(ctx context.Context, q offsql.Query) ([]offapi.Row, error)
}

// Archiver mirrors newly added records, *archive.Archive implements it.
type Archiver interface {
	Insert(ctx context.Context, brand, date string, rows []brandtable.Row) (int, error)
}

func toRecords(rows []offapi.Row) []brandtable.Row {
	out := make([]brandtable.Row, len(rows))
	for i, row := range rows {
		record := make(brandtable.Row, len(row))
		for k := range row {
			record[k] = row.String(k)
		}
		out[i] = record
	}
	return out
}
