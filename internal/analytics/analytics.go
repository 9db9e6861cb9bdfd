// Package analytics computes read-side projections over the certificate
// collection. Results are recomputed on demand and never cached.
package analytics

import (
	"cmp"
	"math"
	"slices"

	"github.com/starford/certhub/internal/datefmt"
	"github.com/starford/certhub/internal/models"
)

const (
	timelineMonths = 6
	topN           = 5
)

// NamedCount is one bar of a histogram.
type NamedCount struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// MonthCount is the number of certificates completed in one calendar month.
type MonthCount struct {
	Month        string `json:"month"`
	Label        string `json:"label"`
	Certificates int    `json:"certificates"`
}

// Report is the dashboard projection.
type Report struct {
	CategoryData      []NamedCount `json:"categoryData"`
	MonthlyData       []MonthCount `json:"monthlyData"`
	TopIssuers        []NamedCount `json:"topIssuers"`
	TotalCertificates int          `json:"totalCertificates"`
	TotalViews        int          `json:"totalViews"`
	TotalLikes        int          `json:"totalLikes"`
}

// Compute builds the dashboard report over the whole collection. The category
// histogram has one entry per known category, in catalog order.
func Compute(certs []models.Certificate, categories []string) Report {
	r := Report{
		CategoryData:      make([]NamedCount, 0, len(categories)),
		TotalCertificates: len(certs),
	}

	byCategory := make(map[string]int)
	byMonth := make(map[string]int)
	byIssuer := make(map[string]int)
	for _, c := range certs {
		byCategory[c.Category]++
		if !c.Date.IsZero() {
			byMonth[c.Date.YearMonth()]++
		}
		byIssuer[c.Issuer]++
		r.TotalViews += c.Views
		r.TotalLikes += c.Likes
	}

	for _, name := range categories {
		r.CategoryData = append(r.CategoryData, NamedCount{Name: name, Value: byCategory[name]})
	}
	r.MonthlyData = lastMonths(byMonth, timelineMonths)
	r.TopIssuers = top(byIssuer, topN)
	return r
}

// lastMonths returns the n most recent year-months present, oldest first.
func lastMonths(byMonth map[string]int, n int) []MonthCount {
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	slices.Sort(months)
	if len(months) > n {
		months = months[len(months)-n:]
	}
	out := make([]MonthCount, 0, len(months))
	for _, m := range months {
		out = append(out, MonthCount{Month: m, Label: monthLabel(m), Certificates: byMonth[m]})
	}
	return out
}

func monthLabel(yearMonth string) string {
	return datefmt.MonthYear(yearMonth + "-01")
}

// top returns the n largest counts, ties broken by name.
func top(counts map[string]int, n int) []NamedCount {
	out := make([]NamedCount, 0, len(counts))
	for name, v := range counts {
		out = append(out, NamedCount{Name: name, Value: v})
	}
	slices.SortFunc(out, func(a, b NamedCount) int {
		if c := cmp.Compare(b.Value, a.Value); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
