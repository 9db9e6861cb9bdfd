package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListUsers handles GET /api/users. With ?q it searches names, job titles,
// units and skills; with ?unit it lists one unit.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	switch {
	case q.Get("q") != "":
		writeJSON(w, http.StatusOK, h.Users.Search(q.Get("q")))
	case q.Get("unit") != "":
		writeJSON(w, http.StatusOK, h.Users.ByUnit(q.Get("unit")))
	default:
		writeJSON(w, http.StatusOK, h.Users.List())
	}
}

// GetUser handles GET /api/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Users.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// Units handles GET /api/users/units.
func (h *Handler) Units(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Users.Units())
}

// JobTitles handles GET /api/users/job-titles.
func (h *Handler) JobTitles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Users.JobTitles())
}

// Managers handles GET /api/users/managers.
func (h *Handler) Managers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Users.Managers())
}

// TeamStats handles GET /api/users/stats.
func (h *Handler) TeamStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Users.Stats())
}

// UnitMembers handles GET /api/manager/units/{unit}/members.
func (h *Handler) UnitMembers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Members(chi.URLParam(r, "unit")))
}

// UnitCerts handles GET /api/manager/units/{unit}/certs.
func (h *Handler) UnitCerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Certificates(chi.URLParam(r, "unit")))
}

// UnitStats handles GET /api/manager/units/{unit}/stats.
func (h *Handler) UnitStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Stats(chi.URLParam(r, "unit")))
}

// ExportMembers handles GET /api/manager/units/{unit}/export/members.
func (h *Handler) ExportMembers(w http.ResponseWriter, r *http.Request) {
	unit := chi.URLParam(r, "unit")
	setCSVHeaders(w, unit+"_members.csv")
	if err := h.Manager.ExportMembersCSV(w, unit); err != nil {
		writeError(w, "export members", err)
	}
}

// ExportCerts handles GET /api/manager/units/{unit}/export/certs.
func (h *Handler) ExportCerts(w http.ResponseWriter, r *http.Request) {
	unit := chi.URLParam(r, "unit")
	setCSVHeaders(w, unit+"_certificates.csv")
	if err := h.Manager.ExportCertificatesCSV(w, unit); err != nil {
		writeError(w, "export certificates", err)
	}
}

func setCSVHeaders(w http.ResponseWriter, filename string) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
