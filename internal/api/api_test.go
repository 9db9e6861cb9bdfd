package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/starford/certhub/internal/auth"
	"github.com/starford/certhub/internal/certstore"
	"github.com/starford/certhub/internal/debounce"
	"github.com/starford/certhub/internal/directory"
	"github.com/starford/certhub/internal/latency"
	"github.com/starford/certhub/internal/manager"
	"github.com/starford/certhub/internal/models"
	"github.com/starford/certhub/internal/testutil"
	"github.com/starford/certhub/internal/toast"
	"github.com/starford/certhub/internal/upload"
)

type testEnv struct {
	router http.Handler
	h      *Handler
	store  *certstore.Store
	auth   *auth.Provider
	users  *directory.Directory
	toasts *toast.Queue
	timers *manualTimers
}

type envOptions struct {
	cfg       RouterConfig
	authOpts  []auth.Option
	storeOpts []certstore.Option
}

// manualTimers captures debounce timers so tests fire them explicitly.
type manualTimers struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	fn      func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	was := !m.stopped
	m.stopped = true
	return was
}

func (m *manualTimers) afterFunc(_ time.Duration, fn func()) debounce.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{fn: fn}
	m.pending = append(m.pending, t)
	return t
}

func (m *manualTimers) fireAll() {
	m.mu.Lock()
	pending := m.pending
	m.pending = nil
	m.mu.Unlock()
	for _, t := range pending {
		if !t.stopped {
			t.fn()
		}
	}
}

func newEnv(t *testing.T, o envOptions) *testEnv {
	t.Helper()
	store := testutil.Store(t, o.storeOpts...)
	users := testutil.Directory(t)
	provider := auth.New(testutil.KV(t), users, o.authOpts...)
	toasts := toast.New()
	t.Cleanup(toasts.Close)

	timers := &manualTimers{}
	h := NewHandler(Deps{
		Store:    store,
		Auth:     provider,
		Users:    users,
		Manager:  manager.New(store, users),
		Toasts:   toasts,
		Uploader: upload.NewSimulated(latency.None()),
	}, WithAfterFunc(timers.afterFunc))
	t.Cleanup(h.Close)

	if o.cfg.AuthMode == "" {
		o.cfg.AuthMode = AuthDisabled
	}
	return &testEnv{
		router: NewRouter(h, o.cfg),
		h:      h,
		store:  store,
		auth:   provider,
		users:  users,
		toasts: toasts,
		timers: timers,
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T) LoginResponse {
	t.Helper()
	w := e.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: "radhe@example.com", Password: "pw"})
	if w.Code != http.StatusOK {
		t.Fatalf("login = %d, body = %s", w.Code, w.Body.String())
	}
	var resp LoginResponse
	decode(t, w, &resp)
	return resp
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func lastToast(t *testing.T, q *toast.Queue) toast.Toast {
	t.Helper()
	list := q.List()
	if len(list) == 0 {
		t.Fatal("no toast queued")
	}
	return list[len(list)-1]
}

func TestListCerts_Scenario(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(t, http.MethodGet, "/certs?category=Development&sort=likes&order=desc", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var page certstore.Page
	decode(t, w, &page)
	if page.TotalCount != 2 || page.Items[0].ID != "cert_003" || page.Items[1].ID != "cert_001" {
		t.Fatalf("unexpected page: %+v", page)
	}
	if page.Page != 1 || page.TotalPages != 1 {
		t.Errorf("page = %d of %d", page.Page, page.TotalPages)
	}
}

func TestListCerts_BadSort(t *testing.T) {
	e := newEnv(t, envOptions{})
	if w := e.do(t, http.MethodGet, "/certs?sort=rating", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad sort = %d, want 400", w.Code)
	}
}

func TestListCerts_PageSize(t *testing.T) {
	e := newEnv(t, envOptions{})
	var page certstore.Page
	decode(t, e.do(t, http.MethodGet, "/certs?page_size=4&page=3", nil), &page)
	if page.TotalPages != 3 || len(page.Items) != 2 || page.Page != 3 {
		t.Fatalf("page %d of %d with %d items", page.Page, page.TotalPages, len(page.Items))
	}
}

func TestGetCert_ETagAndNotFound(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := e.do(t, http.MethodGet, "/certs/cert_001", nil)
	if w.Code != http.StatusOK || w.Header().Get("ETag") == "" {
		t.Fatalf("get = %d etag %q", w.Code, w.Header().Get("ETag"))
	}
	if w := e.do(t, http.MethodGet, "/certs/cert_999", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing = %d, want 404", w.Code)
	}
}

func TestTrendingAndSecondaryQueries(t *testing.T) {
	e := newEnv(t, envOptions{})

	var liked []models.Certificate
	decode(t, e.do(t, http.MethodGet, "/certs/trending/liked?limit=1", nil), &liked)
	if len(liked) != 1 || liked[0].ID != "cert_008" {
		t.Errorf("most liked = %+v", liked)
	}
	var byAuthor []models.Certificate
	decode(t, e.do(t, http.MethodGet, "/certs/author/u_002", nil), &byAuthor)
	if len(byAuthor) != 1 || byAuthor[0].ID != "cert_002" {
		t.Errorf("by author = %+v", byAuthor)
	}
	var byTag []models.Certificate
	decode(t, e.do(t, http.MethodGet, "/certs/tag/SPRING", nil), &byTag)
	if len(byTag) != 1 || byTag[0].ID != "cert_001" {
		t.Errorf("by tag = %+v", byTag)
	}
}

func TestCreateCert_RequiresUser(t *testing.T) {
	e := newEnv(t, envOptions{})
	w := e.do(t, http.MethodPost, "/certs", map[string]string{"title": "x"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous create = %d, want 401", w.Code)
	}
}

func TestCreateCert(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.login(t)

	draft := map[string]any{
		"title":    "Go Programming",
		"category": "Development",
		"issuer":   "Google",
		"date":     "2025-03-01",
		"fileUrl":  "/uploads/1_go.pdf",
		"tags":     []string{"Go", "go", "Backend"},
	}
	w := e.do(t, http.MethodPost, "/certs", draft)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var c models.Certificate
	decode(t, w, &c)
	if !strings.HasPrefix(c.ID, "cert_") || c.Author.ID != auth.DefaultDemoUserID {
		t.Errorf("created = %+v", c)
	}
	if strings.Join(c.Tags, ",") != "go,backend" {
		t.Errorf("tags = %v", c.Tags)
	}
	if e.store.All()[0].ID != c.ID {
		t.Errorf("new record not prepended")
	}
	if got := lastToast(t, e.toasts); got.Kind != toast.KindSuccess || got.Title != "Certificate Added" || got.Duration != toast.DefaultDuration {
		t.Errorf("toast = %+v", got)
	}
}

func TestCreateCert_ValidationToast(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.login(t)

	w := e.do(t, http.MethodPost, "/certs", map[string]any{"title": "", "category": "Cloud"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid create = %d, want 400", w.Code)
	}
	got := lastToast(t, e.toasts)
	if got.Kind != toast.KindError || got.Title != "Submission Failed" {
		t.Errorf("toast = %+v", got)
	}
	if e.store.Len() != 10 {
		t.Errorf("len = %d after failed create", e.store.Len())
	}
}

func TestCreateCert_TransportFailure(t *testing.T) {
	sim := latency.Func(func(ctx context.Context, op string) error {
		if op == "create" {
			return latency.Failing(nil).Wait(ctx, op)
		}
		return nil
	})
	e := newEnv(t, envOptions{storeOpts: []certstore.Option{certstore.WithLatency(sim)}})
	e.login(t)

	w := e.do(t, http.MethodPost, "/certs", map[string]any{
		"title": "X", "category": "Cloud", "issuer": "Y", "date": "2025-01-01", "fileUrl": "/f.pdf",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("create = %d, want 503", w.Code)
	}
	if got := lastToast(t, e.toasts); got.Message != certstore.MsgCreateFailed {
		t.Errorf("toast message = %q", got.Message)
	}
	if st := e.store.State(); st.Error != certstore.MsgCreateFailed {
		t.Errorf("store error = %q", st.Error)
	}
}

func TestUpdateCert_OwnershipAndIfMatch(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.login(t)

	title := "Spring Boot Expert"
	w := e.do(t, http.MethodPut, "/certs/cert_002", models.Patch{Title: &title})
	if w.Code != http.StatusForbidden {
		t.Fatalf("foreign update = %d, want 403", w.Code)
	}
	if got := lastToast(t, e.toasts); got.Title != "Access Denied" {
		t.Errorf("toast = %+v", got)
	}

	etag := e.do(t, http.MethodGet, "/certs/cert_001", nil).Header().Get("ETag")
	w = e.do(t, http.MethodPut, "/certs/cert_001", models.Patch{Title: &title}, "If-Match", etag)
	if w.Code != http.StatusOK {
		t.Fatalf("update = %d, body = %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") == etag {
		t.Error("etag did not change after update")
	}

	// The old etag is stale now.
	w = e.do(t, http.MethodPut, "/certs/cert_001", models.Patch{Title: &title}, "If-Match", etag)
	if w.Code != http.StatusConflict {
		t.Errorf("stale update = %d, want 409", w.Code)
	}

	w = e.do(t, http.MethodPut, "/certs/cert_404", models.Patch{Title: &title})
	if w.Code != http.StatusNotFound {
		t.Errorf("missing update = %d, want 404", w.Code)
	}
}

func TestDeleteCert(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.login(t)

	if w := e.do(t, http.MethodDelete, "/certs/cert_002", nil); w.Code != http.StatusForbidden {
		t.Errorf("foreign delete = %d, want 403", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/certs/cert_001", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", w.Code)
	}
	if w := e.do(t, http.MethodDelete, "/certs/cert_001", nil); w.Code != http.StatusNoContent {
		t.Errorf("repeat delete = %d, want 204", w.Code)
	}
	if e.store.Len() != 9 {
		t.Errorf("len = %d, want 9", e.store.Len())
	}
}

func TestToggleLike(t *testing.T) {
	e := newEnv(t, envOptions{})

	var c models.Certificate
	decode(t, e.do(t, http.MethodPost, "/certs/cert_001/like", nil), &c)
	if c.Likes != 13 || !c.IsLikedByUser {
		t.Errorf("after like: likes=%d liked=%v", c.Likes, c.IsLikedByUser)
	}
	decode(t, e.do(t, http.MethodPost, "/certs/cert_001/like", nil), &c)
	if c.Likes != 12 || c.IsLikedByUser {
		t.Errorf("after unlike: likes=%d liked=%v", c.Likes, c.IsLikedByUser)
	}
	if w := e.do(t, http.MethodPost, "/certs/nope/like", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing like = %d, want 404", w.Code)
	}
}

func TestCountView_VisitGuard(t *testing.T) {
	e := newEnv(t, envOptions{})

	for i := 0; i < 3; i++ {
		if w := e.do(t, http.MethodPost, "/certs/cert_001/view", nil, VisitHeader, "visit-1"); w.Code != http.StatusOK {
			t.Fatalf("view = %d", w.Code)
		}
	}
	e.do(t, http.MethodPost, "/certs/cert_001/view", nil, VisitHeader, "visit-2")
	e.do(t, http.MethodPost, "/certs/cert_001/view", nil)
	e.do(t, http.MethodPost, "/certs/cert_001/view", nil)

	c, _ := e.store.Get("cert_001")
	if c.Views != 127 {
		t.Errorf("views = %d, want 127", c.Views)
	}
}

func TestFeed_FiltersPageAndClear(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.store.SetPage(1)

	var page certstore.Page
	decode(t, e.do(t, http.MethodPut, "/feed/page", PageRequest{Page: 99}), &page)
	if page.Page != 1 {
		t.Errorf("single-page feed clamped to %d", page.Page)
	}

	sortBy := "title"
	w := e.do(t, http.MethodPut, "/feed/filters", map[string]any{
		"categories": []string{"Data Science"},
		"sortBy":     sortBy,
		"order":      "asc",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("set filters = %d, body = %s", w.Code, w.Body.String())
	}
	decode(t, w, &page)
	if page.TotalCount != 2 || page.Items[0].ID != "cert_005" {
		t.Errorf("filtered page = %+v", page)
	}

	if w := e.do(t, http.MethodPut, "/feed/filters", map[string]any{"order": "sideways"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad order = %d, want 400", w.Code)
	}

	decode(t, e.do(t, http.MethodDelete, "/feed/filters", nil), &page)
	if page.TotalCount != 10 || page.Params.SortBy != "title" {
		t.Errorf("after clear: count=%d sort=%s", page.TotalCount, page.Params.SortBy)
	}
}

func TestFeed_DebouncedSearch(t *testing.T) {
	e := newEnv(t, envOptions{})

	var resp SearchResponse
	decode(t, e.do(t, http.MethodPut, "/feed/search", SearchRequest{Query: "kub"}), &resp)
	decode(t, e.do(t, http.MethodPut, "/feed/search", SearchRequest{Query: "kubernetes"}), &resp)
	if resp.Query != "kubernetes" || resp.Settled != "" {
		t.Fatalf("before settle: %+v", resp)
	}
	if e.store.Params().Query != "" {
		t.Fatal("query applied before the debounce fired")
	}

	e.timers.fireAll()

	if got := e.store.Params().Query; got != "kubernetes" {
		t.Fatalf("feed query = %q", got)
	}
	var page certstore.Page
	decode(t, e.do(t, http.MethodGet, "/feed", nil), &page)
	if page.TotalCount != 1 || page.Items[0].ID != "cert_006" {
		t.Errorf("feed = %+v", page)
	}

	var st FeedState
	decode(t, e.do(t, http.MethodGet, "/feed/state", nil), &st)
	if st.Search.Settled != "kubernetes" || st.Page != 1 || !st.Loaded {
		t.Errorf("state = %+v", st)
	}
}

func TestFeed_ClearDropsPendingSearch(t *testing.T) {
	e := newEnv(t, envOptions{})

	e.do(t, http.MethodPut, "/feed/search", SearchRequest{Query: "aws"})
	if w := e.do(t, http.MethodDelete, "/feed/filters", nil); w.Code != http.StatusOK {
		t.Fatalf("clear = %d", w.Code)
	}
	e.timers.fireAll()

	if got := e.store.Params().Query; got != "" {
		t.Fatalf("cleared query came back as %q", got)
	}
	var st FeedState
	decode(t, e.do(t, http.MethodGet, "/feed/state", nil), &st)
	if st.Search.Query != "" || st.Search.Settled != "" {
		t.Errorf("search state after clear = %+v", st.Search)
	}
}

func TestFeed_FilterQueryReplacesPendingSearch(t *testing.T) {
	e := newEnv(t, envOptions{})

	e.do(t, http.MethodPut, "/feed/search", SearchRequest{Query: "aws"})
	e.do(t, http.MethodPut, "/feed/filters", map[string]any{"query": "kubernetes"})
	e.timers.fireAll()

	if got := e.store.Params().Query; got != "kubernetes" {
		t.Fatalf("feed query = %q, want kubernetes", got)
	}
	var st FeedState
	decode(t, e.do(t, http.MethodGet, "/feed/state", nil), &st)
	if st.Search.Query != "kubernetes" || st.Search.Settled != "kubernetes" {
		t.Errorf("search state = %+v", st.Search)
	}
}

func TestFeedState_PageClampedAfterDelete(t *testing.T) {
	e := newEnv(t, envOptions{storeOpts: []certstore.Option{certstore.WithPageSize(3)}})
	e.store.SetPage(4)
	for _, id := range []string{"cert_009", "cert_010"} {
		if err := e.store.Delete(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}

	var page certstore.Page
	decode(t, e.do(t, http.MethodGet, "/feed", nil), &page)
	var st FeedState
	decode(t, e.do(t, http.MethodGet, "/feed/state", nil), &st)
	if page.Page != 3 || st.Page != page.Page {
		t.Errorf("feed page = %d, state page = %d, want 3", page.Page, st.Page)
	}
}

func TestFeed_ImmediateSearch(t *testing.T) {
	e := newEnv(t, envOptions{})
	var resp SearchResponse
	decode(t, e.do(t, http.MethodPut, "/feed/search", SearchRequest{Query: "aws", Immediate: true}), &resp)
	if resp.Settled != "aws" || e.store.Params().Query != "aws" {
		t.Errorf("immediate search not applied: %+v", resp)
	}
}

func TestAuthFlow(t *testing.T) {
	e := newEnv(t, envOptions{})

	var st auth.State
	decode(t, e.do(t, http.MethodGet, "/auth/me", nil), &st)
	if st.Authenticated {
		t.Fatal("authenticated before login")
	}
	if w := e.do(t, http.MethodPost, "/auth/login", LoginRequest{Email: "not-an-email"}); w.Code != http.StatusBadRequest {
		t.Errorf("bad login = %d, want 400", w.Code)
	}

	resp := e.login(t)
	if resp.User.ID != auth.DefaultDemoUserID || resp.Token != "" {
		t.Errorf("login = %+v", resp)
	}

	name := "Radhe A."
	w := e.do(t, http.MethodPut, "/auth/me", models.ProfilePatch{Name: &name})
	if w.Code != http.StatusOK {
		t.Fatalf("profile = %d", w.Code)
	}
	if u, _ := e.users.Get(auth.DefaultDemoUserID); u.Name != name {
		t.Errorf("directory name = %q", u.Name)
	}
	c, _ := e.store.Get("cert_001")
	if c.Author.Name != "Radhe Ambhure" {
		t.Errorf("author snapshot changed to %q", c.Author.Name)
	}

	var perm PermissionResponse
	decode(t, e.do(t, http.MethodGet, "/auth/permissions/export_data", nil), &perm)
	if perm.Allowed {
		t.Error("non-manager allowed export_data")
	}

	if w := e.do(t, http.MethodPost, "/auth/logout", nil); w.Code != http.StatusNoContent {
		t.Errorf("logout = %d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/auth/permissions/view_analytics", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("permission after logout = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_TokenMode(t *testing.T) {
	e := newEnv(t, envOptions{cfg: RouterConfig{AuthMode: AuthToken, Token: "secret123"}})

	if w := e.do(t, http.MethodGet, "/certs", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("missing token = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/certs", nil, "Authorization", "Bearer wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/certs", nil, "Authorization", "Bearer secret123"); w.Code != http.StatusOK {
		t.Errorf("valid token = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_SessionMode(t *testing.T) {
	e := newEnv(t, envOptions{
		cfg:      RouterConfig{AuthMode: AuthSession},
		authOpts: []auth.Option{auth.WithSigningKey("test-secret", time.Hour)},
	})

	if w := e.do(t, http.MethodGet, "/certs", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no session = %d, want 401", w.Code)
	}
	resp := e.login(t)
	if resp.Token == "" {
		t.Fatal("no session token issued")
	}
	bearer := "Bearer " + resp.Token

	var st auth.State
	decode(t, e.do(t, http.MethodGet, "/auth/me", nil, "Authorization", bearer), &st)
	if st.User == nil || st.User.ID != auth.DefaultDemoUserID {
		t.Errorf("me = %+v", st)
	}
	if w := e.do(t, http.MethodGet, "/certs", nil, "Authorization", "Bearer not.a.jwt"); w.Code != http.StatusUnauthorized {
		t.Errorf("bad jwt = %d, want 401", w.Code)
	}
}

func TestManagerRoutes(t *testing.T) {
	e := newEnv(t, envOptions{})
	e.login(t)
	if w := e.do(t, http.MethodGet, "/manager/units/Platform/stats", nil); w.Code != http.StatusForbidden {
		t.Errorf("member stats = %d, want 403", w.Code)
	}

	m := newEnv(t, envOptions{authOpts: []auth.Option{auth.WithDemoUser("u_002")}})
	m.login(t)

	var stats manager.UnitStats
	decode(t, m.do(t, http.MethodGet, "/manager/units/Platform/stats", nil), &stats)
	if stats.UnitName != "Platform" || stats.TotalMembers != 3 || stats.TotalCertifications != 2 {
		t.Errorf("stats = %+v", stats)
	}

	w := m.do(t, http.MethodGet, "/manager/units/Infrastructure/export/members", nil)
	if w.Code != http.StatusOK || !strings.HasPrefix(w.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("export = %d %q", w.Code, w.Header().Get("Content-Type"))
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "Infrastructure_members.csv") {
		t.Errorf("disposition = %q", w.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(w.Body.String(), "Name,") {
		t.Errorf("csv = %q", w.Body.String())
	}
}

func TestAnalyticsAndCatalog(t *testing.T) {
	e := newEnv(t, envOptions{})
	if w := e.do(t, http.MethodGet, "/analytics", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous analytics = %d, want 401", w.Code)
	}
	e.login(t)

	var report struct {
		TotalCertificates int `json:"totalCertificates"`
		TotalLikes        int `json:"totalLikes"`
	}
	decode(t, e.do(t, http.MethodGet, "/analytics", nil), &report)
	if report.TotalCertificates != 10 || report.TotalLikes != 230 {
		t.Errorf("report = %+v", report)
	}

	var catalog struct {
		Categories []string `json:"categories"`
	}
	decode(t, e.do(t, http.MethodGet, "/catalog", nil), &catalog)
	if len(catalog.Categories) != 8 {
		t.Errorf("categories = %v", catalog.Categories)
	}
}

func TestUsers(t *testing.T) {
	e := newEnv(t, envOptions{})

	var all []models.User
	decode(t, e.do(t, http.MethodGet, "/users", nil), &all)
	if len(all) != 15 {
		t.Errorf("users = %d, want 15", len(all))
	}
	var found []models.User
	decode(t, e.do(t, http.MethodGet, "/users?q=terraform", nil), &found)
	if len(found) != 2 {
		t.Errorf("search = %d users, want 2", len(found))
	}
	if w := e.do(t, http.MethodGet, "/users/u_999", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing user = %d, want 404", w.Code)
	}
	var managers []models.User
	decode(t, e.do(t, http.MethodGet, "/users/managers", nil), &managers)
	if len(managers) != 5 {
		t.Errorf("managers = %d, want 5", len(managers))
	}
}

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUpload(t *testing.T) {
	e := newEnv(t, envOptions{})

	w := uploadFile(t, e.router, "my cert.pdf", []byte("%PDF-1.4"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp UploadResponse
	decode(t, w, &resp)
	if !strings.HasPrefix(resp.URL, "/uploads/") || !strings.HasSuffix(resp.URL, "_my_cert.pdf") {
		t.Errorf("url = %q", resp.URL)
	}
	if len(resp.Progress) != 11 || resp.Progress[10] != 100 {
		t.Errorf("progress = %v", resp.Progress)
	}
}

func TestUpload_MissingFileField(t *testing.T) {
	e := newEnv(t, envOptions{})
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("other", "x")
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/uploads", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing file = %d, want 400", w.Code)
	}
}

func TestToasts(t *testing.T) {
	e := newEnv(t, envOptions{})
	a := e.toasts.Info("a", "first")
	e.toasts.Info("b", "second")

	if w := e.do(t, http.MethodDelete, "/toasts/"+a.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("dismiss = %d", w.Code)
	}
	var list []map[string]any
	decode(t, e.do(t, http.MethodGet, "/toasts", nil), &list)
	if len(list) != 1 || list[0]["title"] != "b" || list[0]["duration"] != float64(5000) {
		t.Errorf("toasts = %v", list)
	}
	e.do(t, http.MethodDelete, "/toasts", nil)
	if e.toasts.Len() != 0 {
		t.Errorf("len = %d after clear", e.toasts.Len())
	}
}

func TestEvents_AuthProtected(t *testing.T) {
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	})
	e := newEnv(t, envOptions{cfg: RouterConfig{AuthMode: AuthToken, Token: "tok", Events: events}})

	if w := e.do(t, http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("events no auth = %d, want 401", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/events", nil, "Authorization", "Bearer tok"); w.Code != http.StatusOK {
		t.Errorf("events with token = %d, want 200", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, envOptions{cfg: RouterConfig{RateRPS: 0.001, RateBurst: 2}})
	for i := 0; i < 2; i++ {
		if w := e.do(t, http.MethodGet, "/catalog", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, w.Code)
		}
	}
	w := e.do(t, http.MethodGet, "/catalog", nil)
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") == "" {
		t.Errorf("third request = %d retry-after %q", w.Code, w.Header().Get("Retry-After"))
	}
}
