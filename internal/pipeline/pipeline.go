package pipeline

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/starford/certhub/internal/models"
)

// Apply filters and sorts certs. The input slice is not modified.
//
// Steps run in order, each narrowing the previous result: text query, category
// set, tag set (any-of), author unit set, inclusive date range (only when both
// bounds are set), then a stable sort.
func Apply(certs []models.Certificate, p Params) []models.Certificate {
	p = p.Normalized()
	out := make([]models.Certificate, 0, len(certs))

	q := strings.ToLower(p.Query)
	categories := toSet(p.Categories)
	tags := toSet(p.Tags)
	units := toSet(p.Units)
	ranged := p.HasDateRange()

	for _, c := range certs {
		if q != "" && !matchesQuery(c, q) {
			continue
		}
		if len(categories) > 0 {
			if _, ok := categories[c.Category]; !ok {
				continue
			}
		}
		if len(tags) > 0 && !hasAnyTag(c, tags) {
			continue
		}
		if len(units) > 0 {
			if _, ok := units[c.Author.Unit]; !ok {
				continue
			}
		}
		if ranged && (c.Date.Before(*p.DateStart) || c.Date.After(*p.DateEnd)) {
			continue
		}
		out = append(out, c)
	}

	Sort(out, p.SortBy, p.Order)
	return out
}

// Sort orders certs in place with a stable three-way comparison. Descending
// order negates the comparison, so equal records keep collection order.
func Sort(certs []models.Certificate, key SortKey, order SortOrder) {
	compare := comparator(key)
	if order == Desc {
		slices.SortStableFunc(certs, func(a, b models.Certificate) int { return -compare(a, b) })
		return
	}
	slices.SortStableFunc(certs, compare)
}

func comparator(key SortKey) func(a, b models.Certificate) int {
	switch key {
	case SortByLikes:
		return func(a, b models.Certificate) int { return cmp.Compare(a.Likes, b.Likes) }
	case SortByViews:
		return func(a, b models.Certificate) int { return cmp.Compare(a.Views, b.Views) }
	case SortByTitle:
		// Collators keep scratch buffers and are not safe for concurrent use.
		col := collate.New(language.English)
		return func(a, b models.Certificate) int { return col.CompareString(a.Title, b.Title) }
	case SortByDate:
		return func(a, b models.Certificate) int { return a.Date.Compare(b.Date) }
	default:
		return func(models.Certificate, models.Certificate) int { return 0 }
	}
}

func matchesQuery(c models.Certificate, q string) bool {
	if strings.Contains(strings.ToLower(c.Title), q) ||
		strings.Contains(strings.ToLower(c.Category), q) ||
		strings.Contains(strings.ToLower(c.Issuer), q) ||
		strings.Contains(strings.ToLower(c.Author.Name), q) {
		return true
	}
	for _, t := range c.Tags {
		if strings.Contains(strings.ToLower(t), q) {
			return true
		}
	}
	return false
}

func hasAnyTag(c models.Certificate, tags map[string]struct{}) bool {
	for _, t := range c.Tags {
		if _, ok := tags[t]; ok {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// TotalPages returns ceil(n / size). An empty view has zero pages.
func TotalPages(n, size int) int {
	if size <= 0 {
		size = DefaultPageSize
	}
	return (n + size - 1) / size
}

// ClampPage bounds page to [1, totalPages], returning 1 for an empty view.
func ClampPage(page, totalPages int) int {
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Paginate returns the window [(page-1)*size, page*size) of view. Pages
// outside the view yield an empty slice.
func Paginate(view []models.Certificate, page, size int) []models.Certificate {
	if size <= 0 {
		size = DefaultPageSize
	}
	if page < 1 {
		return []models.Certificate{}
	}
	start := (page - 1) * size
	if start >= len(view) {
		return []models.Certificate{}
	}
	end := min(start+size, len(view))
	return slices.Clone(view[start:end])
}
