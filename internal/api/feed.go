package api

import (
	"net/http"

	"github.com/starford/certhub/internal/certstore"
	"github.com/starford/certhub/internal/models"
	"github.com/starford/certhub/internal/pipeline"
)

// FiltersRequest changes the feed parameters. Absent fields are kept; an
// empty list clears a set.
type FiltersRequest struct {
	Query      *string             `json:"query,omitempty"`
	Categories []string            `json:"categories,omitempty"`
	Tags       []string            `json:"tags,omitempty"`
	Units      []string            `json:"units,omitempty"`
	DateRange  *DateRange          `json:"dateRange,omitempty"`
	SortBy     *pipeline.SortKey   `json:"sortBy,omitempty"`
	Order      *pipeline.SortOrder `json:"order,omitempty"`
}

// DateRange is an inclusive date filter. Both bounds must be set for it to
// apply.
type DateRange struct {
	Start *models.Date `json:"start"`
	End   *models.Date `json:"end"`
}

// PageRequest selects a feed page.
type PageRequest struct {
	Page int `json:"page"`
}

// SearchRequest updates the debounced feed query.
type SearchRequest struct {
	Query     string `json:"query"`
	Immediate bool   `json:"immediate,omitempty"`
}

// SearchResponse reports the typed and the applied query.
type SearchResponse struct {
	Query   string `json:"query"`
	Settled string `json:"settled"`
}

// FeedState is the observable state of the feed.
type FeedState struct {
	certstore.State
	Page   int             `json:"currentPage"`
	Params pipeline.Params `json:"params"`
	Search SearchResponse  `json:"search"`
}

// Feed handles GET /api/feed: the current page for the feed's own parameters.
//
//	@Summary		Current feed page
//	@Tags			feed
//	@Produce		json
//	@Success		200	{object}	certstore.Page
//	@Router			/feed [get]
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Store.View())
}

// SetFilters handles PUT /api/feed/filters. Any change resets the page to 1.
func (h *Handler) SetFilters(w http.ResponseWriter, r *http.Request) {
	var req FiltersRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	next := h.Store.Params()
	if req.Query != nil {
		next.Query = *req.Query
	}
	if req.Categories != nil {
		next.Categories = req.Categories
	}
	if req.Tags != nil {
		next.Tags = req.Tags
	}
	if req.Units != nil {
		next.Units = req.Units
	}
	if req.DateRange != nil {
		next.DateStart, next.DateEnd = req.DateRange.Start, req.DateRange.End
	}
	if req.SortBy != nil {
		next.SortBy = *req.SortBy
	}
	if req.Order != nil {
		next.Order = *req.Order
	}
	if err := next.Validate(); err != nil {
		writeError(w, "set filters", err)
		return
	}
	// An explicit query replaces any pending debounced search.
	if req.Query != nil {
		h.search.Reset(next.Query)
	}
	if err := h.Store.SetParams(next); err != nil {
		writeError(w, "set filters", err)
		return
	}
	writeJSON(w, http.StatusOK, h.Store.View())
}

// ClearFilters handles DELETE /api/feed/filters. Sorting is kept and any
// pending search is dropped.
func (h *Handler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	h.search.Reset("")
	h.Store.ClearFilters()
	writeJSON(w, http.StatusOK, h.Store.View())
}

// SetPage handles PUT /api/feed/page. Out-of-range pages are clamped.
func (h *Handler) SetPage(w http.ResponseWriter, r *http.Request) {
	var req PageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.Store.SetPage(req.Page)
	writeJSON(w, http.StatusOK, h.Store.View())
}

// Search handles PUT /api/feed/search. The query reaches the feed after the
// debounce delay unless immediate is set; the response carries both values.
//
//	@Summary		Update the feed text query
//	@Tags			feed
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SearchRequest	true	"Query"
//	@Success		202		{object}	SearchResponse
//	@Router			/feed/search [put]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.search.Set(req.Query)
	if req.Immediate {
		h.search.Flush()
	}
	writeJSON(w, http.StatusAccepted, SearchResponse{Query: h.search.Value(), Settled: h.search.Settled()})
}

// FeedState handles GET /api/feed/state.
func (h *Handler) FeedState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, FeedState{
		State:  h.Store.State(),
		Page:   h.Store.Page(),
		Params: h.Store.Params(),
		Search: SearchResponse{Query: h.search.Value(), Settled: h.search.Settled()},
	})
}
