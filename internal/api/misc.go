package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/certhub/internal/analytics"
	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/upload"
)

// UploadResponse is returned after a simulated upload.
type UploadResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
	Progress []int  `json:"progress"`
}

// ListCatalog handles GET /api/catalog.
func (h *Handler) ListCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Deps.Catalog)
}

// Analytics handles GET /api/analytics.
//
//	@Summary		Dashboard projections over the whole collection
//	@Tags			analytics
//	@Produce		json
//	@Success		200	{object}	analytics.Report
//	@Router			/analytics [get]
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.Compute(h.Store.All(), h.Deps.Catalog.Categories))
}

// Overview handles GET /api/analytics/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.ComputeOverview(h.Store.All(), h.Users.List()))
}

// UnitBreakdown handles GET /api/analytics/units.
func (h *Handler) UnitBreakdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, analytics.UnitBreakdown(h.Store.All()))
}

// Upload handles POST /api/uploads (multipart/form-data, field "file"). The
// content is discarded; only the reference is returned.
//
//	@Summary		Upload a certificate file
//	@Tags			uploads
//	@Accept			multipart/form-data
//	@Produce		json
//	@Success		201	{object}	UploadResponse
//	@Failure		400	{object}	errResponse
//	@Failure		503	{object}	errResponse
//	@Router			/uploads [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxSize+1<<20)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("File size must be less than 10MB"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	var progress []int
	url, err := h.Uploader.Upload(r.Context(), header.Filename, header.Size, func(p int) {
		progress = append(progress, p)
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrValidation) {
			h.failToast("Upload Failed", "File upload failed. Please try again.", err)
		}
		writeError(w, "upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, UploadResponse{
		Filename: header.Filename,
		Size:     header.Size,
		URL:      url,
		Progress: progress,
	})
}

// ListToasts handles GET /api/toasts.
func (h *Handler) ListToasts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Toasts.List())
}

// DismissToast handles DELETE /api/toasts/{id}.
func (h *Handler) DismissToast(w http.ResponseWriter, r *http.Request) {
	h.Toasts.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// ClearToasts handles DELETE /api/toasts.
func (h *Handler) ClearToasts(w http.ResponseWriter, r *http.Request) {
	h.Toasts.Clear()
	w.WriteHeader(http.StatusNoContent)
}
