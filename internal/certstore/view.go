package certstore

import (
	"cmp"
	"slices"
	"strings"

	"github.com/starford/certhub/internal/models"
	"github.com/starford/certhub/internal/pipeline"
)

// Filtered returns the filtered and sorted view for the current parameters.
func (s *Store) Filtered() []models.Certificate {
	certs, version, params, _ := s.snapshot()
	return slices.Clone(s.memo.View(version, certs, params))
}

// View returns the current page of the derived view.
func (s *Store) View() Page {
	certs, version, params, page := s.snapshot()
	view := s.memo.View(version, certs, params)
	return paginate(view, params, page, s.pageSize)
}

// Search runs the pipeline with explicit parameters without touching the
// store's own filter state.
func (s *Store) Search(p pipeline.Params, page, size int) Page {
	if size <= 0 {
		size = s.pageSize
	}
	certs, _, _, _ := s.snapshot()
	return paginate(pipeline.Apply(certs, p), p.Normalized(), page, size)
}

func paginate(view []models.Certificate, params pipeline.Params, page, size int) Page {
	total := pipeline.TotalPages(len(view), size)
	page = pipeline.ClampPage(page, total)
	return Page{
		Items:      pipeline.Paginate(view, page, size),
		Page:       page,
		PageSize:   size,
		TotalPages: total,
		TotalCount: len(view),
		Params:     cloneParams(params),
	}
}

// ByAuthor returns the certificates authored by the user id.
func (s *Store) ByAuthor(id string) []models.Certificate {
	return s.where(func(c models.Certificate) bool { return c.Author.ID == id })
}

// ByTag returns the certificates carrying tag.
func (s *Store) ByTag(tag string) []models.Certificate {
	tag = strings.ToLower(strings.TrimSpace(tag))
	return s.where(func(c models.Certificate) bool { return slices.Contains(c.Tags, tag) })
}

// ByUnit returns the certificates whose author belongs to unit.
func (s *Store) ByUnit(unit string) []models.Certificate {
	return s.where(func(c models.Certificate) bool { return c.Author.Unit == unit })
}

// MostLiked returns up to n certificates with the most likes.
func (s *Store) MostLiked(n int) []models.Certificate {
	return s.topBy(n, func(c models.Certificate) int { return c.Likes })
}

// MostViewed returns up to n certificates with the most views.
func (s *Store) MostViewed(n int) []models.Certificate {
	return s.topBy(n, func(c models.Certificate) int { return c.Views })
}

// Recent returns up to n certificates in collection order, newest first.
func (s *Store) Recent(n int) []models.Certificate {
	certs, _, _, _ := s.snapshot()
	if n > len(certs) || n < 0 {
		n = len(certs)
	}
	return slices.Clone(certs[:n])
}

func (s *Store) where(keep func(models.Certificate) bool) []models.Certificate {
	certs, _, _, _ := s.snapshot()
	out := []models.Certificate{}
	for _, c := range certs {
		if keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) topBy(n int, key func(models.Certificate) int) []models.Certificate {
	out := s.All()
	slices.SortStableFunc(out, func(a, b models.Certificate) int { return cmp.Compare(key(b), key(a)) })
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
