// Package directory holds the organization's user table.
package directory

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/models"
)

// Directory is a thread-safe user table.
type Directory struct {
	mu    sync.RWMutex
	users []models.User
}

// New returns a directory holding a copy of users.
func New(users []models.User) *Directory {
	d := &Directory{}
	d.Replace(users)
	return d
}

// Replace swaps the whole table.
func (d *Directory) Replace(users []models.User) {
	next := make([]models.User, len(users))
	for i, u := range users {
		next[i] = u.Clone()
	}
	d.mu.Lock()
	d.users = next
	d.mu.Unlock()
}

// List returns every user in table order.
func (d *Directory) List() []models.User {
	return d.filter(func(models.User) bool { return true })
}

// Get returns the user with the given id.
func (d *Directory) Get(id string) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, u := range d.users {
		if u.ID == id {
			return u.Clone(), nil
		}
	}
	return models.User{}, fmt.Errorf("directory: user %s: %w", id, apperr.ErrNotFound)
}

// ByUnit returns the members of unit.
func (d *Directory) ByUnit(unit string) []models.User {
	return d.filter(func(u models.User) bool { return u.Unit == unit })
}

// Managers returns the users flagged as managers.
func (d *Directory) Managers() []models.User {
	return d.filter(func(u models.User) bool { return u.IsManager })
}

// Search matches q case-insensitively against name, job title, unit and skills.
func (d *Directory) Search(q string) []models.User {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return d.List()
	}
	return d.filter(func(u models.User) bool {
		if strings.Contains(strings.ToLower(u.Name), q) ||
			strings.Contains(strings.ToLower(u.JobTitle), q) ||
			strings.Contains(strings.ToLower(u.Unit), q) {
			return true
		}
		return slices.ContainsFunc(u.Skills, func(s string) bool {
			return strings.Contains(strings.ToLower(s), q)
		})
	})
}

// Units returns the distinct units in first-seen order.
func (d *Directory) Units() []string {
	return d.distinct(func(u models.User) string { return u.Unit })
}

// JobTitles returns the distinct job titles, sorted.
func (d *Directory) JobTitles() []string {
	out := d.distinct(func(u models.User) string { return u.JobTitle })
	slices.Sort(out)
	return out
}

// Update merges patch onto the user with the given id.
func (d *Directory) Update(id string, patch models.ProfilePatch) (models.User, error) {
	if err := patch.Validate(); err != nil {
		return models.User{}, fmt.Errorf("directory: update %s: %w: %w", id, apperr.ErrValidation, err)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, u := range d.users {
		if u.ID == id {
			d.users[i] = patch.Apply(u)
			return d.users[i].Clone(), nil
		}
	}
	return models.User{}, fmt.Errorf("directory: update %s: %w", id, apperr.ErrNotFound)
}

// TeamStats summarizes the user table.
type TeamStats struct {
	TotalUsers            int     `json:"totalUsers"`
	TotalCertifications   int     `json:"totalCertifications"`
	AverageCertifications float64 `json:"averageCertifications"`
	ManagerCount          int     `json:"managerCount"`
	UnitsCount            int     `json:"unitsCount"`
}

// Stats computes TeamStats from the denormalized certification counts.
func (d *Directory) Stats() TeamStats {
	users := d.List()
	s := TeamStats{TotalUsers: len(users), UnitsCount: len(d.Units())}
	for _, u := range users {
		s.TotalCertifications += u.CertificationCount
		if u.IsManager {
			s.ManagerCount++
		}
	}
	if len(users) > 0 {
		s.AverageCertifications = math.Round(float64(s.TotalCertifications)/float64(len(users))*10) / 10
	}
	return s
}

func (d *Directory) filter(keep func(models.User) bool) []models.User {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []models.User{}
	for _, u := range d.users {
		if keep(u) {
			out = append(out, u.Clone())
		}
	}
	return out
}

func (d *Directory) distinct(field func(models.User) string) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	seen := make(map[string]struct{})
	out := []string{}
	for _, u := range d.users {
		v := field(u)
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
