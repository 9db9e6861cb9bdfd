package certstore

import (
	"slices"

	"github.com/starford/certhub/internal/models"
	"github.com/starford/certhub/internal/pipeline"
)

// Params returns the current filter and sort parameters.
func (s *Store) Params() pipeline.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneParams(s.params)
}

// SetQuery sets the free-text query and resets the page.
func (s *Store) SetQuery(q string) {
	s.setParams(func(p *pipeline.Params) { p.Query = q })
}

// SetCategories sets the selected categories and resets the page.
func (s *Store) SetCategories(categories []string) {
	s.setParams(func(p *pipeline.Params) { p.Categories = slices.Clone(categories) })
}

// SetTags sets the selected tags and resets the page.
func (s *Store) SetTags(tags []string) {
	s.setParams(func(p *pipeline.Params) { p.Tags = slices.Clone(tags) })
}

// SetUnits sets the selected units and resets the page.
func (s *Store) SetUnits(units []string) {
	s.setParams(func(p *pipeline.Params) { p.Units = slices.Clone(units) })
}

// SetDateRange sets the date bounds and resets the page. A nil bound clears it.
func (s *Store) SetDateRange(start, end *models.Date) {
	s.setParams(func(p *pipeline.Params) {
		p.DateStart = cloneDate(start)
		p.DateEnd = cloneDate(end)
	})
}

// SetSort sets the sort key and direction and resets the page.
func (s *Store) SetSort(key pipeline.SortKey, order pipeline.SortOrder) error {
	next := pipeline.Params{SortBy: key, Order: order}
	if err := next.Validate(); err != nil {
		return err
	}
	s.setParams(func(p *pipeline.Params) {
		p.SortBy = key
		p.Order = order
	})
	return nil
}

// SetParams replaces every parameter at once and resets the page.
func (s *Store) SetParams(next pipeline.Params) error {
	if err := next.Validate(); err != nil {
		return err
	}
	s.setParams(func(p *pipeline.Params) { *p = cloneParams(next) })
	return nil
}

// ClearFilters empties the query, sets and date range. Sorting is kept.
func (s *Store) ClearFilters() {
	s.setParams(func(p *pipeline.Params) {
		sortBy, order := p.SortBy, p.Order
		*p = pipeline.DefaultParams()
		p.SortBy, p.Order = sortBy, order
	})
}

// SetPage moves to page n, clamped to the current view.
func (s *Store) SetPage(n int) int {
	total := pipeline.TotalPages(len(s.Filtered()), s.pageSize)
	page := pipeline.ClampPage(n, total)
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
	return page
}

// Page returns the current page number, clamped to the current view the
// same way View clamps it.
func (s *Store) Page() int {
	certs, version, params, page := s.snapshot()
	total := pipeline.TotalPages(len(s.memo.View(version, certs, params)), s.pageSize)
	return pipeline.ClampPage(page, total)
}

func (s *Store) setParams(fn func(*pipeline.Params)) {
	s.mu.Lock()
	fn(&s.params)
	s.params = s.params.Normalized()
	s.page = 1
	s.mu.Unlock()
}

func cloneParams(p pipeline.Params) pipeline.Params {
	out := p
	out.Categories = slices.Clone(p.Categories)
	out.Tags = slices.Clone(p.Tags)
	out.Units = slices.Clone(p.Units)
	out.DateStart = cloneDate(p.DateStart)
	out.DateEnd = cloneDate(p.DateEnd)
	return out.Normalized()
}

func cloneDate(d *models.Date) *models.Date {
	if d == nil || d.IsZero() {
		return nil
	}
	c := *d
	return &c
}
