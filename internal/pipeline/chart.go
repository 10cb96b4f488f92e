package pipeline

import (
	"context"
	"fmt"

	"novawatch/internal/assert"
	"novawatch/internal/chart"
	"novawatch/internal/components/telemetry"
	"novawatch/internal/nova"
	"novawatch/internal/offapi"
	"novawatch/internal/offsql"
)

const (
	report_charter_status = "charter.status"
)

type ChartOptions struct {
	Brands  []string
	Country string
	Output  string
	Chart   chart.Options
}

type Charter struct {
	querier Querier
	tel     telemetry.API
}

func NewCharter(querier Querier, tel telemetry.API) Charter {
	assert.NotNil(querier, "querier")
	assert.NotNil(tel, "telemetry")
	return Charter{
		querier: querier,
		tel:     telemetry.NewScopedAPI("pipeline", tel),
	}
}

// countsFromRows reads the rows of a summary query. Status labels that are
// not a known NOVA group are counted as unrated.
func (c Charter) countsFromRows(brand string, rows []offapi.Row) ([]nova.Count, error) {
	counts := make([]nova.Count, 0, len(rows))
	for _, row := range rows {
		label := row.String("nova_status")
		status, err := nova.ParseGroup(label)
		if err != nil {
			c.tel.ReportWarning(report_charter_status, brand, err)
			status = nova.Unrated
		}
		n, err := row.Int("product_count")
		if err != nil {
			return nil, fmt.Errorf("summary for %s: %w", brand, err)
		}
		counts = append(counts, nova.Count{Brand: brand, Status: status, ProductCount: n})
	}
	return counts, nil
}

// Summaries fetches every brand's NOVA counts, one request per brand. The
// first failure aborts the whole run.
func (c Charter) Summaries(ctx context.Context, brands []string, country string) ([]nova.Count, error) {
	var all []nova.Count
	for _, brand := range brands {
		rows, err := c.querier.Query(ctx, offsql.BrandSummary(brand, country))
		if err != nil {
			return nil, fmt.Errorf("fetch summary for %s: %w", brand, err)
		}
		counts, err := c.countsFromRows(brand, rows)
		if err != nil {
			return nil, err
		}
		c.tel.ReportDebug("fetched summary", brand, len(counts))
		all = append(all, counts...)
	}
	return all, nil
}

// Table builds the percentage table: one row per brand in list order,
// sorted by share of NOVA 4 products with ties kept in list order.
func Table(brands []string, counts []nova.Count) nova.Table {
	table := nova.Pivot(brands, counts).Percentages()
	table.SortDesc(nova.Nova4)
	return table
}

// Run fetches, aggregates and renders the chart to opts.Output.
func (c Charter) Run(ctx context.Context, opts ChartOptions) (nova.Table, error) {
	counts, err := c.Summaries(ctx, opts.Brands, opts.Country)
	if err != nil {
		return nova.Table{}, err
	}

	table := Table(opts.Brands, counts)
	c.tel.ReportDebug("chart order", table.Brands())
	err = chart.SaveFile(opts.Output, table, opts.Chart)
	if err != nil {
		return table, fmt.Errorf("save chart: %w", err)
	}
	return table, nil
}
