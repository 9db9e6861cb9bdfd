package certstore

import (
	"context"
	"fmt"
	"slices"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/ids"
	"github.com/starford/certhub/internal/models"
)

// Mutators hold the per-id lock across the read, the simulated delay and the
// write, so calls on the same id compose while other ids run in parallel.
// Mutations never reset the page or the filters.

// Create validates draft, assigns an identifier and zero counters, and
// prepends the record. A missing date defaults to today.
func (s *Store) Create(ctx context.Context, draft models.Draft) (models.Certificate, error) {
	const op = "create"
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if draft.Date.IsZero() {
		draft.Date = models.Today()
	}
	if err := draft.Validate(); err != nil {
		err = fmt.Errorf("certstore: create: %w: %w", apperr.ErrValidation, err)
		s.report(op, err)
		return models.Certificate{}, err
	}

	if err := s.sim.Wait(ctx, op); err != nil {
		s.fail(MsgCreateFailed, op, err)
		s.report(op, err)
		return models.Certificate{}, err
	}

	cert := draft.Certificate(ids.Certificate())
	s.mu.Lock()
	next := make([]models.Certificate, 0, len(s.certs)+1)
	next = append(next, cert)
	next = append(next, s.certs...)
	s.certs = next
	s.version++
	s.mu.Unlock()

	s.report(op, nil)
	s.emit(EventCreated, cert.ID)
	return cert.Clone(), nil
}

// Update merges patch onto the record with the given id. When ifMatch is
// non-empty it must equal the record's current ETag.
func (s *Store) Update(ctx context.Context, id string, patch models.Patch, ifMatch string) (models.Certificate, error) {
	const op = "update"
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	if err := patch.Validate(); err != nil {
		err = fmt.Errorf("certstore: update: %w: %w", apperr.ErrValidation, err)
		s.report(op, err)
		return models.Certificate{}, err
	}

	unlock := s.lockID(id)
	defer unlock()

	cur, err := s.Get(id)
	if err != nil {
		s.fail(MsgUpdateFailed, op, err)
		s.report(op, err)
		return models.Certificate{}, fmt.Errorf("certstore: update %s: %w", id, err)
	}
	if ifMatch != "" && ifMatch != ETag(cur) {
		err := fmt.Errorf("certstore: update %s: %w", id, apperr.ErrConflict)
		s.report(op, err)
		return models.Certificate{}, err
	}

	updated, err := s.apply(ctx, op, id, patch)
	if err != nil {
		s.fail(MsgUpdateFailed, op, err)
		s.report(op, err)
		return models.Certificate{}, err
	}
	s.report(op, nil)
	s.emit(EventUpdated, id)
	return updated, nil
}

// Delete removes the record with the given id. Deleting an unknown id is not
// an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "delete"
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	unlock := s.lockID(id)
	defer unlock()

	if err := s.sim.Wait(ctx, op); err != nil {
		s.fail(MsgDeleteFailed, op, err)
		s.report(op, err)
		return err
	}

	s.mu.Lock()
	i := indexOf(s.certs, id)
	if i >= 0 {
		s.certs = slices.Delete(slices.Clone(s.certs), i, i+1)
		s.version++
	}
	s.mu.Unlock()

	s.report(op, nil)
	if i >= 0 {
		s.emit(EventDeleted, id)
	}
	return nil
}

// ToggleLike flips the liked flag and moves the like counter by one. The
// counter never drops below zero.
func (s *Store) ToggleLike(ctx context.Context, id string) (models.Certificate, error) {
	const op = "like"
	return s.adjust(ctx, op, id, EventLiked, func(c models.Certificate) models.Patch {
		liked := !c.IsLikedByUser
		likes := c.Likes + 1
		if !liked {
			likes = max(c.Likes-1, 0)
		}
		return models.Patch{Likes: &likes, IsLikedByUser: &liked}
	})
}

// IncrementViews adds exactly one view. Callers are responsible for counting
// a visit only once.
func (s *Store) IncrementViews(ctx context.Context, id string) (models.Certificate, error) {
	const op = "view"
	return s.adjust(ctx, op, id, EventViewed, func(c models.Certificate) models.Patch {
		views := c.Views + 1
		return models.Patch{Views: &views}
	})
}

func (s *Store) adjust(ctx context.Context, op, id string, kind EventKind, next func(models.Certificate) models.Patch) (models.Certificate, error) {
	s.inflight.Add(1)
	defer s.inflight.Add(-1)

	unlock := s.lockID(id)
	defer unlock()

	cur, err := s.Get(id)
	if err != nil {
		s.report(op, err)
		return models.Certificate{}, fmt.Errorf("certstore: %s %s: %w", op, id, err)
	}
	updated, err := s.apply(ctx, op, id, next(cur))
	if err != nil {
		s.fail(MsgUpdateFailed, op, err)
		s.report(op, err)
		return models.Certificate{}, err
	}
	s.report(op, nil)
	s.emit(kind, id)
	return updated, nil
}

// apply waits for the simulated round trip and then writes patch. The caller
// holds the id lock. Nothing is written when the wait fails or ctx ends.
func (s *Store) apply(ctx context.Context, op, id string, patch models.Patch) (models.Certificate, error) {
	if err := s.sim.Wait(ctx, op); err != nil {
		return models.Certificate{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.certs, id)
	if i < 0 {
		return models.Certificate{}, fmt.Errorf("certstore: %s %s: %w", op, id, apperr.ErrNotFound)
	}
	next := slices.Clone(s.certs)
	next[i] = patch.Apply(next[i])
	s.certs = next
	s.version++
	return next[i].Clone(), nil
}
