// Package nova aggregates per-brand NOVA group counts into a comparative
// percentage table.
package nova

import (
	"fmt"
	"slices"
	"strings"
)

// Group is a NOVA food processing bucket.
type Group string

const (
	Nova1   Group = "NOVA 1"
	Nova2   Group = "NOVA 2"
	Nova3   Group = "NOVA 3"
	Nova4   Group = "NOVA 4"
	Unrated Group = "Unrated"
)

// Groups is the fixed column order of every Table.
var Groups = []Group{Nova1, Nova2, Nova3, Nova4, Unrated}

// Colors maps each group to the color its chart segment is drawn in.
var Colors = map[Group]string{
	Nova1:   "#4caf50",
	Nova2:   "#ff9800",
	Nova3:   "#9c27b0",
	Nova4:   "#f44336",
	Unrated: "#bdbdbd",
}

func (g Group) index() int {
	return slices.Index(Groups, g)
}

// ParseGroup accepts the status labels produced by the summary query,
// it also tolerates numeric labels like "NOVA 4.0" and surrounding space.
func ParseGroup(label string) (Group, error) {
	label = strings.TrimSpace(label)
	if label == "" || strings.EqualFold(label, string(Unrated)) {
		return Unrated, nil
	}
	digits := strings.TrimSpace(strings.TrimPrefix(strings.ToUpper(label), "NOVA"))
	digits = strings.TrimSuffix(digits, ".0")
	switch digits {
	case "1":
		return Nova1, nil
	case "2":
		return Nova2, nil
	case "3":
		return Nova3, nil
	case "4":
		return Nova4, nil
	}
	return "", fmt.Errorf("unknown nova status %q", label)
}

// Count is the number of a brand's products that fall in one group.
type Count struct {
	Brand        string
	Status       Group
	ProductCount int
}

type Row struct {
	Brand  string
	Values [5]float64
}

// Get returns the value of the given group.
func (r Row) Get(g Group) float64 {
	i := g.index()
	if i < 0 {
		return 0
	}
	return r.Values[i]
}

// Total sums every group.
func (r Row) Total() float64 {
	var total float64
	for _, v := range r.Values {
		total += v
	}
	return total
}

// Table has one row per brand and one column per entry of Groups.
type Table struct {
	Rows []Row
}

// Pivot lays counts out as a Table. Rows follow the order of `brands`,
// brands that only appear in `counts` are appended in first-seen order.
// A brand without any counts gets an all-zero row, counts repeated for the
// same brand and group are summed.
func Pivot(brands []string, counts []Count) Table {
	var t Table
	index := map[string]int{}
	rowFor := func(brand string) int {
		i, ok := index[brand]
		if !ok {
			i = len(t.Rows)
			index[brand] = i
			t.Rows = append(t.Rows, Row{Brand: brand})
		}
		return i
	}

	for _, b := range brands {
		rowFor(b)
	}
	for _, c := range counts {
		col := c.Status.index()
		if col < 0 {
			col = Unrated.index()
		}
		t.Rows[rowFor(c.Brand)].Values[col] += float64(c.ProductCount)
	}
	return t
}

// Percentages returns a copy of the table with every row normalized to
// percentages of that row's total. A row with a zero total stays zero.
func (t Table) Percentages() Table {
	out := Table{Rows: make([]Row, len(t.Rows))}
	for i, row := range t.Rows {
		out.Rows[i].Brand = row.Brand
		total := row.Total()
		if total == 0 {
			continue
		}
		for j, v := range row.Values {
			out.Rows[i].Values[j] = v / total * 100
		}
	}
	return out
}

// SortDesc sorts rows descending by the given group. The sort is stable,
// rows with equal values keep their relative order.
func (t Table) SortDesc(g Group) {
	if g.index() < 0 {
		return
	}
	slices.SortStableFunc(t.Rows, func(a, b Row) int {
		av, bv := a.Get(g), b.Get(g)
		switch {
		case av > bv:
			return -1
		case av < bv:
			return 1
		}
		return 0
	})
}

// Brands lists the row labels in order.
func (t Table) Brands() []string {
	out := make([]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row.Brand
	}
	return out
}
