package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"novawatch/internal/brandtable"
	"novawatch/internal/chart"
	"novawatch/internal/components/chrono"
	"novawatch/internal/components/telemetry"
	"novawatch/internal/nova"
	"novawatch/internal/offapi"
	"novawatch/internal/offsql"

	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	// keyed by the brand the query matches on
	responses map[string][]offapi.Row
	err       error
	queries   []offsql.Query
}

func (f *fakeQuerier) Query(_ context.Context, q offsql.Query) ([]offapi.Row, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	for brand, rows := range f.responses {
		if strings.Contains(q.SQL, "LOWER(brands) = '"+offsql.Escape(brand)+"'") {
			return rows, nil
		}
	}
	return nil, nil
}

type fakeArchive struct {
	inserted []brandtable.Row
	brands   []string
	err      error
}

func (f *fakeArchive) Insert(_ context.Context, brand, _ string, rows []brandtable.Row) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.brands = append(f.brands, brand)
	f.inserted = append(f.inserted, rows...)
	return len(rows), nil
}

func product(code, name string) offapi.Row {
	return offapi.Row{
		"code":             code,
		"product_name":     name,
		"brands":           "Amul",
		"energy-kcal_100g": "120",
		"nova_group":       "4",
		"nutriscore_grade": "d",
		"url":              "https://world.openfoodfacts.org/product/" + code,
	}
}

type updateFixture struct {
	dir     string
	opts    UpdateOptions
	querier *fakeQuerier
	archive *fakeArchive
	tel     *telemetry.Recorder
	updater Updater
}

func newUpdateFixture(t *testing.T, rows ...offapi.Row) *updateFixture {
	dir := t.TempDir()
	f := &updateFixture{
		dir: dir,
		opts: UpdateOptions{
			Brand:      "amul",
			Country:    "India",
			Cutoff:     time.Date(2025, 7, 21, 0, 0, 0, 0, time.UTC),
			DataDir:    filepath.Join(dir, "Brands"),
			StatusFile: filepath.Join(dir, "README.md"),
		},
		querier: &fakeQuerier{responses: map[string][]offapi.Row{"amul": rows}},
		archive: &fakeArchive{},
		tel:     &telemetry.Recorder{},
	}
	clock := chrono.FixedImpl{At: time.Date(2025, 7, 22, 9, 0, 0, 0, time.UTC)}
	f.updater = NewUpdater(f.querier, f.archive, clock, f.tel)
	return f
}

func tableCodes(t *testing.T, path string) []string {
	table, err := brandtable.Load(path)
	require.NoError(t, err)
	var out []string
	for _, row := range table.Rows {
		out = append(out, row.Code())
	}
	return out
}

func TestUpdateNormalizesBrand(t *testing.T) {
	f := newUpdateFixture(t, product("A", "butter"))

	_, err := f.updater.Run(context.Background(), f.opts)
	require.NoError(t, err)

	f.querier.responses["amul"] = []offapi.Row{product("A", "butter"), product("B", "cheese")}
	f.opts.Brand = " Amul "
	result, err := f.updater.Run(context.Background(), f.opts)
	require.NoError(t, err)

	require.Equal(t, brandtable.Path(f.opts.DataDir, "amul"), result.TablePath)
	require.Equal(t, []string{"A", "B"}, tableCodes(t, result.TablePath))
	require.Equal(t, []string{"amul", "amul"}, f.archive.brands)

	status, err := os.ReadFile(f.opts.StatusFile)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(status), "Last updated for"))
	require.Contains(t, string(status), "**Last updated for `amul`**: 2025-07-22")
}

func TestUpdateAppendsOnlyNovelCodes(t *testing.T) {
	f := newUpdateFixture(t, product("B", "cheese"), product("C", "ghee"), product("D", "lassi"))

	existing := &brandtable.Table{Header: brandtable.Columns}
	existing.Append([]brandtable.Row{{"code": "A"}, {"code": "B"}})
	require.NoError(t, existing.Save(brandtable.Path(f.opts.DataDir, "amul")))
	require.NoError(t, os.WriteFile(f.opts.StatusFile, []byte("# NOVA\n\n**Last updated for `amul`**: 2025-01-01\n"), 0o644))

	result, err := f.updater.Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.True(t, result.Changed())
	require.Equal(t, 3, result.Fetched)
	require.Len(t, result.Added, 2)
	require.Equal(t, "2025-07-22", result.Date)
	require.Equal(t, 2, result.Archived)
	require.Len(t, f.archive.inserted, 2)

	require.Equal(t, []string{"A", "B", "C", "D"}, tableCodes(t, result.TablePath))

	status, err := os.ReadFile(f.opts.StatusFile)
	require.NoError(t, err)
	require.Equal(t, "# NOVA\n\n**Last updated for `amul`**: 2025-07-22\n", string(status))

	require.Len(t, f.querier.queries, 1)
	require.Contains(t, f.querier.queries[0].SQL, "> '2025-07-21T00:00:00Z'")
}

func TestUpdateIsIdempotent(t *testing.T) {
	f := newUpdateFixture(t, product("C", "ghee"), product("D", "lassi"))

	first, err := f.updater.Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.True(t, first.Changed())

	tableBefore, err := os.ReadFile(first.TablePath)
	require.NoError(t, err)
	statusBefore, err := os.ReadFile(f.opts.StatusFile)
	require.NoError(t, err)
	infoBefore, err := os.Stat(first.TablePath)
	require.NoError(t, err)

	second, err := f.updater.Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.False(t, second.Changed())
	require.Empty(t, second.Date)

	tableAfter, err := os.ReadFile(second.TablePath)
	require.NoError(t, err)
	require.Equal(t, tableBefore, tableAfter)
	statusAfter, err := os.ReadFile(f.opts.StatusFile)
	require.NoError(t, err)
	require.Equal(t, statusBefore, statusAfter)
	infoAfter, err := os.Stat(second.TablePath)
	require.NoError(t, err)
	require.Equal(t, infoBefore.ModTime(), infoAfter.ModTime())
}

func TestUpdateNoRowsWritesNothing(t *testing.T) {
	f := newUpdateFixture(t)

	result, err := f.updater.Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.False(t, result.Changed())
	require.Equal(t, 0, result.Fetched)

	_, err = os.Stat(f.opts.DataDir)
	require.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(f.opts.StatusFile)
	require.True(t, errors.Is(err, os.ErrNotExist))
	require.Empty(t, f.archive.inserted)
}

func TestUpdateFetchFailure(t *testing.T) {
	f := newUpdateFixture(t)
	f.querier.err = &offapi.StatusError{Code: 503, Status: "503 Service Unavailable"}

	_, err := f.updater.Run(context.Background(), f.opts)
	require.Error(t, err)

	var statusErr *offapi.StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, 503, statusErr.Code)

	_, err = os.Stat(f.opts.StatusFile)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestUpdateArchiveFailureIsReported(t *testing.T) {
	f := newUpdateFixture(t, product("C", "ghee"))
	f.archive.err = errors.New("database is locked")

	result, err := f.updater.Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.True(t, result.Changed())
	require.Equal(t, 0, result.Archived)
	require.Len(t, f.tel.Reports("broken"), 1)
}

func TestUpdateWithoutArchive(t *testing.T) {
	f := newUpdateFixture(t, product("C", "ghee"))
	clock := chrono.FixedImpl{At: time.Date(2025, 7, 22, 0, 0, 0, 0, time.UTC)}
	updater := NewUpdater(f.querier, nil, clock, f.tel)

	result, err := updater.Run(context.Background(), f.opts)
	require.NoError(t, err)
	require.Equal(t, 0, result.Archived)
	require.Equal(t, []string{"C"}, tableCodes(t, result.TablePath))
}

func summary(status string, count any) offapi.Row {
	return offapi.Row{"nova_status": status, "product_count": count}
}

func TestChartRun(t *testing.T) {
	querier := &fakeQuerier{responses: map[string][]offapi.Row{
		"amul":      {summary("NOVA 1", "2"), summary("NOVA 4", "2")},
		"parle":     {summary("NOVA 4", "9"), summary("Unrated", "1")},
		"kellogg's": {summary("NOVA 4", "1"), summary("NOVA 3", "1")},
		"dabur":     {summary("NOVA 9", "4")},
	}}
	tel := &telemetry.Recorder{}
	charter := NewCharter(querier, tel)

	output := filepath.Join(t.TempDir(), "Charts", "nova.png")
	brands := []string{"amul", "kellogg's", "parle", "dabur", "unibic"}
	table, err := charter.Run(context.Background(), ChartOptions{
		Brands:  brands,
		Country: "India",
		Output:  output,
		Chart:   chart.DefaultOptions("India"),
	})
	require.NoError(t, err)
	require.Len(t, querier.queries, len(brands))

	// amul and kellogg's tie on NOVA 4, list order breaks the tie
	require.Equal(t, []string{"parle", "amul", "kellogg's", "dabur", "unibic"}, table.Brands())
	for _, row := range table.Rows {
		total := row.Total()
		if row.Brand == "unibic" {
			require.Equal(t, float64(0), total)
			continue
		}
		require.InDelta(t, 100, total, 1e-9, row.Brand)
	}
	require.InDelta(t, 100, table.Rows[3].Get(nova.Unrated), 1e-9)
	require.Len(t, tel.Reports("warning"), 1)

	_, err = os.Stat(output)
	require.NoError(t, err)
}

func TestChartRunFailsOnFirstError(t *testing.T) {
	querier := &fakeQuerier{err: errors.New("connection reset")}
	charter := NewCharter(querier, &telemetry.Recorder{})

	output := filepath.Join(t.TempDir(), "nova.png")
	_, err := charter.Run(context.Background(), ChartOptions{
		Brands:  []string{"amul", "parle"},
		Country: "India",
		Output:  output,
		Chart:   chart.DefaultOptions("India"),
	})
	require.Error(t, err)
	require.Len(t, querier.queries, 1)

	_, err = os.Stat(output)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestChartRejectsNonNumericCounts(t *testing.T) {
	querier := &fakeQuerier{responses: map[string][]offapi.Row{
		"amul": {summary("NOVA 1", "many")},
	}}
	charter := NewCharter(querier, &telemetry.Recorder{})

	_, err := charter.Summaries(context.Background(), []string{"amul"}, "India")
	require.Error(t, err)
}

// runs the update job against a fake query endpoint through the real client
func TestUpdateAgainstEndpoint(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`[
			{"code": "8901262010016", "product_name": "Amul Butter", "brands": "Amul", "energy-kcal_100g": 722, "fat_100g": 80.0, "nova_group": 4, "nutriscore_grade": "e", "url": "https://world.openfoodfacts.org/product/8901262010016", "salt_100g": null}
		]`))
	}))
	defer srv.Close()

	client, err := offapi.NewClient(offapi.Options{BaseUrl: srv.URL}, &telemetry.Recorder{})
	require.NoError(t, err)

	dir := t.TempDir()
	clock := chrono.FixedImpl{At: time.Date(2025, 7, 22, 0, 0, 0, 0, time.UTC)}
	updater := NewUpdater(client, nil, clock, &telemetry.Recorder{})
	opts := UpdateOptions{
		Brand:      "amul",
		Country:    "India",
		Cutoff:     time.Date(2025, 7, 21, 0, 0, 0, 0, time.UTC),
		DataDir:    filepath.Join(dir, "Brands"),
		StatusFile: filepath.Join(dir, "README.md"),
	}

	result, err := updater.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, result.Added, 1)

	table, err := brandtable.Load(result.TablePath)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	require.Equal(t, "722", table.Rows[0]["energy-kcal_100g"])
	require.Equal(t, "80.0", table.Rows[0]["fat_100g"])
	require.Equal(t, "4", table.Rows[0]["nova_group"])
	require.Equal(t, "", table.Rows[0]["salt_100g"])

	again, err := updater.Run(context.Background(), opts)
	require.NoError(t, err)
	require.False(t, again.Changed())
	require.Equal(t, 2, requests)
}
