// Package pipeline derives the filtered, sorted and paginated view of a
// certificate collection. Every function here is pure.
package pipeline

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/checksum"
	"github.com/starford/certhub/internal/models"
)

// SortKey selects the field the view is ordered by.
type SortKey string

// Sort keys.
const (
	SortByDate  SortKey = "date"
	SortByLikes SortKey = "likes"
	SortByViews SortKey = "views"
	SortByTitle SortKey = "title"
)

// SortOrder is the sort direction.
type SortOrder string

// Sort orders.
const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// DefaultPageSize is the number of records on one page.
const DefaultPageSize = 12

// Params is the tuple of filter and sort parameters.
type Params struct {
	Query      string       `json:"query"`
	Categories []string     `json:"categories"`
	Tags       []string     `json:"tags"`
	Units      []string     `json:"units"`
	DateStart  *models.Date `json:"dateStart"`
	DateEnd    *models.Date `json:"dateEnd"`
	SortBy     SortKey      `json:"sortBy"`
	Order      SortOrder    `json:"order"`
}

// DefaultParams returns empty filters sorted by date, newest first.
func DefaultParams() Params {
	return Params{
		Categories: []string{},
		Tags:       []string{},
		Units:      []string{},
		SortBy:     SortByDate,
		Order:      Desc,
	}
}

// Normalized returns a copy with default sort values and non-nil sets.
func (p Params) Normalized() Params {
	out := p
	out.Query = strings.TrimSpace(p.Query)
	out.Categories = nonNil(p.Categories)
	out.Tags = models.NormalizeTags(p.Tags)
	out.Units = nonNil(p.Units)
	if out.SortBy == "" {
		out.SortBy = SortByDate
	}
	if out.Order == "" {
		out.Order = Desc
	}
	return out
}

// Validate rejects unknown sort keys and orders.
func (p Params) Validate() error {
	switch p.SortBy {
	case "", SortByDate, SortByLikes, SortByViews, SortByTitle:
	default:
		return fmt.Errorf("pipeline: unknown sort key %q: %w", p.SortBy, apperr.ErrValidation)
	}
	switch p.Order {
	case "", Asc, Desc:
	default:
		return fmt.Errorf("pipeline: unknown sort order %q: %w", p.Order, apperr.ErrValidation)
	}
	return nil
}

// HasDateRange reports whether both date bounds are set.
func (p Params) HasDateRange() bool {
	return p.DateStart != nil && p.DateEnd != nil && !p.DateStart.IsZero() && !p.DateEnd.IsZero()
}

// Key returns a canonical digest of the parameters. Set order does not matter.
func (p Params) Key() string {
	n := p.Normalized()
	var b strings.Builder
	fmt.Fprintf(&b, "q=%s\n", strings.ToLower(n.Query))
	fmt.Fprintf(&b, "c=%s\n", strings.Join(sortedCopy(n.Categories), "\x1f"))
	fmt.Fprintf(&b, "t=%s\n", strings.Join(sortedCopy(n.Tags), "\x1f"))
	fmt.Fprintf(&b, "u=%s\n", strings.Join(sortedCopy(n.Units), "\x1f"))
	fmt.Fprintf(&b, "d=%s..%s\n", dateString(n.DateStart), dateString(n.DateEnd))
	fmt.Fprintf(&b, "s=%s/%s", n.SortBy, n.Order)
	return checksum.Sum([]byte(b.String()))
}

// ParseQuery reads parameters from a URL query: q, category, tag, unit (each
// repeatable or comma-separated), from, to (YYYY-MM-DD), sort and order.
func ParseQuery(v url.Values) (Params, error) {
	p := DefaultParams()
	p.Query = v.Get("q")
	p.Categories = multi(v["category"])
	p.Tags = multi(v["tag"])
	p.Units = multi(v["unit"])
	if s := v.Get("from"); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			return Params{}, fmt.Errorf("pipeline: from: %w", apperr.ErrValidation)
		}
		p.DateStart = &d
	}
	if s := v.Get("to"); s != "" {
		d, err := models.ParseDate(s)
		if err != nil {
			return Params{}, fmt.Errorf("pipeline: to: %w", apperr.ErrValidation)
		}
		p.DateEnd = &d
	}
	if s := v.Get("sort"); s != "" {
		p.SortBy = SortKey(strings.ToLower(s))
	}
	if s := v.Get("order"); s != "" {
		p.Order = SortOrder(strings.ToLower(s))
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p.Normalized(), nil
}

func multi(values []string) []string {
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return slices.Clone(s)
}

func sortedCopy(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return slices.Compact(out)
}

func dateString(d *models.Date) string {
	if d == nil {
		return ""
	}
	return d.String()
}
