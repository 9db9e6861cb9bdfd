package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/auth"
	"github.com/starford/certhub/internal/models"
	"github.com/starford/certhub/internal/toast"
)

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the form shape. Any well-formed credentials sign in.
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.EmailFormat),
		validation.Field(&r.Password, validation.Required),
	)
}

// LoginResponse carries the signed-in user and, when session tokens are
// configured, a bearer token.
type LoginResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

// PermissionResponse answers a permission check.
type PermissionResponse struct {
	Permission string `json:"permission"`
	Allowed    bool   `json:"allowed"`
}

// Login handles POST /api/auth/login.
//
//	@Summary		Sign in as the demo user
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		LoginRequest	true	"Credentials"
//	@Success		200		{object}	LoginResponse
//	@Failure		400		{object}	errResponse
//	@Router			/auth/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	u, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, "login", err)
		return
	}
	resp := LoginResponse{User: u}
	if h.Auth.SigningEnabled() {
		if resp.Token, err = h.Auth.IssueToken(u.ID); err != nil {
			writeError(w, "issue token", err)
			return
		}
	}
	h.Toasts.Success("Welcome back", "Signed in as "+u.Name)
	writeJSON(w, http.StatusOK, resp)
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context()); err != nil {
		writeError(w, "logout", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	st := h.Auth.State()
	if u, ok := h.currentUser(r); ok {
		st.User, st.Authenticated = &u, true
	}
	writeJSON(w, http.StatusOK, st)
}

// UpdateProfile handles PUT /api/auth/me.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var patch models.ProfilePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	u, err := h.Auth.UpdateProfile(r.Context(), patch)
	if err != nil {
		if statusFor(err) != http.StatusUnauthorized {
			h.failToast("Profile Update Failed", "Failed to update profile", err)
		}
		writeError(w, "update profile", err)
		return
	}
	h.Toasts.AddTimed(toast.Toast{Kind: toast.KindSuccess, Title: "Profile Updated", Message: "Your profile has been saved."})
	writeJSON(w, http.StatusOK, u)
}

// HasPermission handles GET /api/auth/permissions/{name}.
func (h *Handler) HasPermission(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	u, ok := h.currentUser(r)
	if !ok {
		writeError(w, "permission", apperr.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, PermissionResponse{Permission: name, Allowed: auth.Allowed(&u, name)})
}
