// Package brandtable is the durable, append-only CSV table of a brand's
// product records.
package brandtable

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"novawatch/internal/fsutil"
	"novawatch/internal/offsql"
)

// CodeColumn identifies a product record.
const CodeColumn = "code"

// Columns is the header of a newly created table.
var Columns = offsql.ProductColumns

// Row is one product record keyed by column name.
type Row map[string]string

func (r Row) Code() string {
	return strings.TrimSpace(r[CodeColumn])
}

// FileName derives a brand's table file name: normalized, spaces replaced
// with underscores.
func FileName(brand string) string {
	return strings.ReplaceAll(offsql.NormalizeBrand(brand), " ", "_") + ".csv"
}

// Path is the location of a brand's table inside `dir`.
func Path(dir, brand string) string {
	return filepath.Join(dir, FileName(brand))
}

type Table struct {
	Header []string
	Rows   []Row
}

// Load reads a table. A missing file is an empty table with the default
// header, a file without a code column is an error.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return &Table{Header: slices.Clone(Columns)}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return t, nil
}

// Read parses a table from CSV. Rows shorter than the header are padded
// with empty cells, longer rows and repeated column names are an error.
func Read(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Table{Header: slices.Clone(Columns)}, nil
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if !slices.Contains(header, CodeColumn) {
		return nil, fmt.Errorf("table has no %q column", CodeColumn)
	}
	seen := make(map[string]struct{}, len(header))
	for _, col := range header {
		if _, ok := seen[col]; ok {
			return nil, fmt.Errorf("duplicate column %q", col)
		}
		seen[col] = struct{}{}
	}

	t := &Table{Header: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		// rewriting would drop cells that have no column
		if len(record) > len(header) {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d has %d fields, the header has %d", line, len(record), len(header))
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// KnownCodes is the set of codes already in the table.
func (t *Table) KnownCodes() map[string]struct{} {
	known := make(map[string]struct{}, len(t.Rows))
	for _, row := range t.Rows {
		code := row.Code()
		if code == "" {
			continue
		}
		known[code] = struct{}{}
	}
	return known
}

// Novel drops every fetched row whose code is known or already appeared
// earlier in `fetched`. Rows without a code are dropped too since they
// can never be deduplicated.
func Novel(fetched []Row, known map[string]struct{}) []Row {
	seen := make(map[string]struct{}, len(fetched))
	var out []Row
	for _, row := range fetched {
		code := row.Code()
		if code == "" {
			continue
		}
		if _, ok := known[code]; ok {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, row)
	}
	return out
}

// Append adds rows after the existing ones, columns the table does not
// have yet are added to the end of the header.
func (t *Table) Append(rows []Row) {
	for _, row := range rows {
		for _, col := range sortedKeys(row) {
			if !slices.Contains(t.Header, col) {
				t.Header = append(t.Header, col)
			}
		}
	}
	t.Rows = append(t.Rows, rows...)
}

func sortedKeys(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	// keep the product column order for known columns, then alphabetical
	slices.SortFunc(keys, func(a, b string) int {
		ai, bi := slices.Index(Columns, a), slices.Index(Columns, b)
		switch {
		case ai >= 0 && bi >= 0:
			return ai - bi
		case ai >= 0:
			return -1
		case bi >= 0:
			return 1
		}
		return strings.Compare(a, b)
	})
	return keys
}

// Write renders the table as CSV.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	err := writer.Write(t.Header)
	if err != nil {
		return err
	}
	record := make([]string, len(t.Header))
	for _, row := range t.Rows {
		for i, col := range t.Header {
			record[i] = row[col]
		}
		err = writer.Write(record)
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Save overwrites the file at path with the table, creating the containing
// directory when needed.
func (t *Table) Save(path string) error {
	return fsutil.WriteFileAtomic(path, t.Write)
}
