// Package offsql builds the analytic queries sent to the Open Food Facts
// query endpoint.
package offsql

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ProductColumns are the columns selected for a product record, in the
// upstream schema's naming.
var ProductColumns = []string{
	"code",
	"product_name",
	"brands",
	"energy-kcal_100g",
	"carbohydrates_100g",
	"sugars_100g",
	"proteins_100g",
	"fat_100g",
	"saturated-fat_100g",
	"salt_100g",
	"nova_group",
	"nutriscore_grade",
	"url",
}

var (
	novaGroups       = []string{"1", "2", "3", "4"}
	nutriscoreGrades = []string{"a", "b", "c", "d", "e"}
)

// Query is a ready to send analytic query.
type Query struct {
	SQL string
}

// Values returns the request parameters for the query, including the
// `_shape=array` modifier that makes the endpoint return a flat JSON array.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("sql", q.SQL)
	v.Set("_shape", "array")
	return v
}

// Escape doubles single quotes so that s can be embedded in a string literal.
func Escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func literal(s string) string {
	return "'" + Escape(s) + "'"
}

func literalList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = literal(v)
	}
	return strings.Join(quoted, ", ")
}

func identifier(name string) string {
	if strings.ContainsAny(name, "-") {
		return `"` + name + `"`
	}
	return name
}

// NormalizeBrand is the form a brand name is matched in, the endpoint
// compares it against LOWER(brands).
func NormalizeBrand(brand string) string {
	return strings.ToLower(strings.TrimSpace(brand))
}

// BrandSummary counts a brand's products in a country per NOVA status,
// missing NOVA groups are bucketed as "Unrated".
func BrandSummary(brand, country string) Query {
	var sb strings.Builder
	sb.WriteString("SELECT\n")
	sb.WriteString("  CASE\n")
	sb.WriteString("    WHEN TRIM(nova_group) = '' OR nova_group IS NULL THEN 'Unrated'\n")
	sb.WriteString("    ELSE 'NOVA ' || nova_group\n")
	sb.WriteString("  END AS nova_status,\n")
	sb.WriteString("  COUNT(*) AS product_count\n")
	sb.WriteString("FROM [all]\n")
	fmt.Fprintf(&sb, "WHERE countries_en = %s\n", literal(country))
	fmt.Fprintf(&sb, "  AND LOWER(brands) = %s\n", literal(NormalizeBrand(brand)))
	sb.WriteString("GROUP BY nova_status;")
	return Query{SQL: sb.String()}
}

// BrandProducts selects a brand's rated products in a country that were
// modified after `cutoff` (only the date part is used).
func BrandProducts(brand, country string, cutoff time.Time) Query {
	columns := make([]string, len(ProductColumns))
	for i, c := range ProductColumns {
		columns[i] = identifier(c)
	}

	var sb strings.Builder
	sb.WriteString("SELECT\n")
	fmt.Fprintf(&sb, "  %s\n", strings.Join(columns, ", "))
	sb.WriteString("FROM [all]\n")
	sb.WriteString("WHERE\n")
	fmt.Fprintf(&sb, "  LOWER(brands) = %s\n", literal(NormalizeBrand(brand)))
	fmt.Fprintf(&sb, "  AND countries_en = %s\n", literal(country))
	fmt.Fprintf(&sb, "  AND nova_group IN (%s)\n", literalList(novaGroups))
	fmt.Fprintf(&sb, "  AND nutriscore_grade IN (%s)\n", literalList(nutriscoreGrades))
	fmt.Fprintf(
		&sb,
		"  AND datetime(last_modified_datetime) > %s;",
		literal(cutoff.Format("2006-01-02")+"T00:00:00Z"),
	)
	return Query{SQL: sb.String()}
}
