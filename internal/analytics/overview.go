package analytics

import (
	"cmp"
	"slices"

	"github.com/starford/certhub/internal/models"
)

// Overview summarizes the organization as a whole.
type Overview struct {
	TotalCertificates          int          `json:"totalCertificates"`
	TotalUsers                 int          `json:"totalUsers"`
	TotalCategories            int          `json:"totalCategories"`
	TotalIssuers               int          `json:"totalIssuers"`
	AverageCertificatesPerUser float64      `json:"averageCertificatesPerUser"`
	TopCategories              []NamedCount `json:"topCategories"`
	TopIssuers                 []NamedCount `json:"topIssuers"`
}

// ComputeOverview builds the organization overview.
func ComputeOverview(certs []models.Certificate, users []models.User) Overview {
	byCategory := make(map[string]int)
	byIssuer := make(map[string]int)
	for _, c := range certs {
		byCategory[c.Category]++
		byIssuer[c.Issuer]++
	}

	o := Overview{
		TotalCertificates: len(certs),
		TotalUsers:        len(users),
		TotalCategories:   len(byCategory),
		TotalIssuers:      len(byIssuer),
		TopCategories:     top(byCategory, topN),
		TopIssuers:        top(byIssuer, topN),
	}
	if len(users) > 0 {
		o.AverageCertificatesPerUser = round2(float64(len(certs)) / float64(len(users)))
	}
	return o
}

// UnitShare is the share of certificates held by one organizational unit.
type UnitShare struct {
	Unit       string  `json:"unit"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// UnitBreakdown counts certificates per author unit, largest first.
func UnitBreakdown(certs []models.Certificate) []UnitShare {
	counts := make(map[string]int)
	for _, c := range certs {
		counts[c.Author.Unit]++
	}
	out := make([]UnitShare, 0, len(counts))
	for unit, n := range counts {
		out = append(out, UnitShare{
			Unit:       unit,
			Count:      n,
			Percentage: round2(float64(n) * 100 / float64(len(certs))),
		})
	}
	slices.SortFunc(out, func(a, b UnitShare) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Unit, b.Unit)
	})
	return out
}
