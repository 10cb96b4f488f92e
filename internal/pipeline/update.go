package pipeline

import (
	"context"
	"fmt"
	"time"

	"novawatch/internal/assert"
	"novawatch/internal/brandtable"
	"novawatch/internal/components/chrono"
	"novawatch/internal/components/telemetry"
	"novawatch/internal/offsql"
	"novawatch/internal/statusfile"
)

const (
	report_updater_fetched = "updater.fetched"
	report_updater_added   = "updater.added"
	report_updater_archive = "updater.archive"
)

type UpdateOptions struct {
	Brand      string
	Country    string
	Cutoff     time.Time
	DataDir    string
	StatusFile string
}

type UpdateResult struct {
	TablePath string
	Fetched   int
	Added     []brandtable.Row
	Archived  int
	// the date written to the status file, empty when nothing was written
	Date string
}

// Changed reports whether the run wrote anything.
func (r UpdateResult) Changed() bool {
	return len(r.Added) > 0
}

type Updater struct {
	querier Querier
	archive Archiver
	clock   chrono.API
	tel     telemetry.API
}

// NewUpdater creates an Updater, `archive` may be nil.
func NewUpdater(querier Querier, archive Archiver, clock chrono.API, tel telemetry.API) Updater {
	assert.NotNil(querier, "querier")
	assert.NotNil(clock, "clock")
	assert.NotNil(tel, "telemetry")
	return Updater{
		querier: querier,
		archive: archive,
		clock:   clock,
		tel:     telemetry.NewScopedAPI("pipeline", tel),
	}
}

// Run fetches the brand's products modified after the cutoff and appends
// the ones whose code is not yet in the brand's table. The brand is
// normalized first so that "Amul" and "amul" share a table, archive key
// and status line. When there is
// nothing new no file is touched.
func (u Updater) Run(ctx context.Context, opts UpdateOptions) (UpdateResult, error) {
	assert.NotEmptyStr(opts.Brand, "brand")
	brand := offsql.NormalizeBrand(opts.Brand)

	result := UpdateResult{TablePath: brandtable.Path(opts.DataDir, brand)}

	table, err := brandtable.Load(result.TablePath)
	if err != nil {
		return result, fmt.Errorf("load brand table: %w", err)
	}

	rows, err := u.querier.Query(ctx, offsql.BrandProducts(brand, opts.Country, opts.Cutoff))
	if err != nil {
		return result, fmt.Errorf("fetch products for %s: %w", brand, err)
	}
	result.Fetched = len(rows)
	u.tel.ReportCount(report_updater_fetched, int64(len(rows)))

	result.Added = brandtable.Novel(toRecords(rows), table.KnownCodes())
	u.tel.ReportCount(report_updater_added, int64(len(result.Added)))
	if len(result.Added) == 0 {
		return result, nil
	}

	table.Append(result.Added)
	err = table.Save(result.TablePath)
	if err != nil {
		return result, fmt.Errorf("save brand table: %w", err)
	}

	date := chrono.Date(u.clock.Now())
	if u.archive != nil {
		result.Archived, err = u.archive.Insert(ctx, brand, date, result.Added)
		if err != nil {
			// the table is the record of truth, the archive can be rebuilt from it
			u.tel.ReportBroken(report_updater_archive, err, brand)
		}
	}

	err = statusfile.Patch(opts.StatusFile, brand, date)
	if err != nil {
		return result, err
	}
	result.Date = date

	return result, nil
}
