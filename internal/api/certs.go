package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/certstore"
	"github.com/starford/certhub/internal/models"
	"github.com/starford/certhub/internal/pipeline"
	"github.com/starford/certhub/internal/toast"
)

const (
	defaultTopN        = 5
	maxPageSize        = 100
	failureToastLength = 6 * time.Second
)

// VisitHeader carries the page-visit id used to count views once per visit.
const VisitHeader = "X-Visit-ID"

func setETag(w http.ResponseWriter, c models.Certificate) {
	w.Header().Set("ETag", `"`+certstore.ETag(c)+`"`)
}

func intParam(r *http.Request, name string, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// failToast surfaces a failed mutation to the toast queue. Cancelled
// requests are skipped: nobody is left to read the toast.
func (h *Handler) failToast(title, message string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return
	}
	if errors.Is(err, apperr.ErrValidation) {
		message = err.Error()
	}
	h.Toasts.Add(toast.Toast{Kind: toast.KindError, Title: title, Message: message, Duration: failureToastLength})
}

// ListCerts handles GET /api/certs.
//
//	@Summary		Search certificates with explicit filters
//	@Tags			certs
//	@Produce		json
//	@Param			q			query		string	false	"Text query"
//	@Param			category	query		string	false	"Category (repeatable)"
//	@Param			tag			query		string	false	"Tag (repeatable)"
//	@Param			unit		query		string	false	"Author unit (repeatable)"
//	@Param			from		query		string	false	"Start date YYYY-MM-DD"
//	@Param			to			query		string	false	"End date YYYY-MM-DD"
//	@Param			sort		query		string	false	"Sort key"	Enums(date, likes, views, title)
//	@Param			order		query		string	false	"Sort order"	Enums(asc, desc)
//	@Param			page		query		int		false	"Page number"
//	@Param			page_size	query		int		false	"Page size"
//	@Success		200			{object}	certstore.Page
//	@Failure		400			{object}	errResponse
//	@Router			/certs [get]
func (h *Handler) ListCerts(w http.ResponseWriter, r *http.Request) {
	params, err := pipeline.ParseQuery(r.URL.Query())
	if err != nil {
		writeError(w, "list certs", err)
		return
	}
	size := min(intParam(r, "page_size", h.Store.PageSize()), maxPageSize)
	writeJSON(w, http.StatusOK, h.Store.Search(params, intParam(r, "page", 1), size))
}

// GetCert handles GET /api/certs/{id}.
//
//	@Summary		Get a single certificate
//	@Tags			certs
//	@Produce		json
//	@Param			id	path		string	true	"Certificate id"
//	@Success		200	{object}	models.Certificate
//	@Failure		404	{object}	errResponse
//	@Router			/certs/{id} [get]
func (h *Handler) GetCert(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get cert", err)
		return
	}
	setETag(w, c)
	writeJSON(w, http.StatusOK, c)
}

// MostLiked handles GET /api/certs/trending/liked.
func (h *Handler) MostLiked(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.MostLiked(intParam(r, "limit", defaultTopN)))
}

// MostViewed handles GET /api/certs/trending/viewed.
func (h *Handler) MostViewed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.MostViewed(intParam(r, "limit", defaultTopN)))
}

// Recent handles GET /api/certs/recent.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.Recent(intParam(r, "limit", defaultTopN)))
}

// ByAuthor handles GET /api/certs/author/{id}.
func (h *Handler) ByAuthor(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.ByAuthor(chi.URLParam(r, "id")))
}

// ByTag handles GET /api/certs/tag/{tag}.
func (h *Handler) ByTag(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.ByTag(chi.URLParam(r, "tag")))
}

// CreateCert handles POST /api/certs. The author snapshot is taken from the
// signed-in user.
//
//	@Summary		Add a certificate
//	@Tags			certs
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.Draft	true	"Certificate to add"
//	@Success		201		{object}	models.Certificate
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Router			/certs [post]
func (h *Handler) CreateCert(w http.ResponseWriter, r *http.Request) {
	u, ok := h.currentUser(r)
	if !ok {
		writeError(w, "create cert", apperr.ErrUnauthenticated)
		return
	}
	var draft models.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}
	draft.Author = u.Snapshot()

	c, err := h.Store.Create(r.Context(), draft)
	if err != nil {
		h.failToast("Submission Failed", certstore.MsgCreateFailed, err)
		writeError(w, "create cert", err)
		return
	}
	h.Toasts.AddTimed(toast.Toast{
		Kind:    toast.KindSuccess,
		Title:   "Certificate Added",
		Message: "Your certificate has been added successfully and is now visible to your colleagues.",
		Action:  &toast.Action{Label: "View My Certificates", Href: "/my"},
	})
	setETag(w, c)
	w.Header().Set("Location", "/api/certs/"+c.ID)
	writeJSON(w, http.StatusCreated, c)
}

// ownedBy loads the certificate and checks that u authored it.
func (h *Handler) ownedBy(u models.User, id string) (models.Certificate, error) {
	c, err := h.Store.Get(id)
	if err != nil {
		return models.Certificate{}, err
	}
	if c.Author.ID != u.ID {
		return models.Certificate{}, apperr.ErrForbidden
	}
	return c, nil
}

// UpdateCert handles PUT /api/certs/{id}. An If-Match header enables the
// optimistic concurrency check; without it the last write wins.
//
//	@Summary		Update a certificate
//	@Tags			certs
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string			true	"Certificate id"
//	@Param			If-Match	header		string			false	"ETag of the version being edited"
//	@Param			body		body		models.Patch	true	"Fields to change"
//	@Success		200			{object}	models.Certificate
//	@Failure		403			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Router			/certs/{id} [put]
func (h *Handler) UpdateCert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, ok := h.currentUser(r)
	if !ok {
		writeError(w, "update cert", apperr.ErrUnauthenticated)
		return
	}
	var patch models.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if _, err := h.ownedBy(u, id); err != nil {
		switch {
		case errors.Is(err, apperr.ErrForbidden):
			h.failToast("Access Denied", "You can only edit your own certificates.", err)
		case errors.Is(err, apperr.ErrNotFound):
			h.failToast("Certificate Not Found", "The certificate you are trying to edit does not exist.", err)
		}
		writeError(w, "update cert", err)
		return
	}

	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	c, err := h.Store.Update(r.Context(), id, patch, ifMatch)
	if err != nil {
		h.failToast("Submission Failed", certstore.MsgUpdateFailed, err)
		writeError(w, "update cert", err)
		return
	}
	h.Toasts.AddTimed(toast.Toast{
		Kind:    toast.KindSuccess,
		Title:   "Certificate Updated",
		Message: "Your certificate has been updated successfully.",
		Action:  &toast.Action{Label: "View Certificate", Href: "/cert/" + id},
	})
	setETag(w, c)
	writeJSON(w, http.StatusOK, c)
}

// DeleteCert handles DELETE /api/certs/{id}. Deleting an unknown id succeeds.
//
//	@Summary		Delete a certificate
//	@Tags			certs
//	@Param			id	path	string	true	"Certificate id"
//	@Success		204	"Certificate deleted"
//	@Failure		403	{object}	errResponse
//	@Router			/certs/{id} [delete]
func (h *Handler) DeleteCert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	u, ok := h.currentUser(r)
	if !ok {
		writeError(w, "delete cert", apperr.ErrUnauthenticated)
		return
	}
	if _, err := h.ownedBy(u, id); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		h.failToast("Access Denied", "You can only delete your own certificates.", err)
		writeError(w, "delete cert", err)
		return
	}
	if err := h.Store.Delete(r.Context(), id); err != nil {
		h.failToast("Error", certstore.MsgDeleteFailed, err)
		writeError(w, "delete cert", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ToggleLike handles POST /api/certs/{id}/like.
func (h *Handler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	c, err := h.Store.ToggleLike(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.failToast("Error", "Failed to toggle like", err)
		writeError(w, "toggle like", err)
		return
	}
	setETag(w, c)
	writeJSON(w, http.StatusOK, c)
}

// CountView handles POST /api/certs/{id}/view. Requests repeating the same
// X-Visit-ID for the same certificate are answered without counting again.
func (h *Handler) CountView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	visit := r.Header.Get(VisitHeader)
	if !h.visits.first(visit, id) {
		c, err := h.Store.Get(id)
		if err != nil {
			writeError(w, "count view", err)
			return
		}
		writeJSON(w, http.StatusOK, c)
		return
	}

	c, err := h.Store.IncrementViews(r.Context(), id)
	if err != nil {
		h.visits.forget(visit, id)
		h.failToast("Error", "Failed to record view", err)
		writeError(w, "count view", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}
