package certstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/starford/certhub/internal/apperr"
	"github.com/starford/certhub/internal/fixtures"
	"github.com/starford/certhub/internal/latency"
	"github.com/starford/certhub/internal/models"
	"github.com/starford/certhub/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func seededStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s := New(opts...)
	if _, err := s.Load(context.Background(), fixtures.Embedded()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func validDraft() models.Draft {
	return models.Draft{
		Title:    "X",
		Category: "Development",
		Issuer:   "Y",
		Date:     models.MustParseDate("2025-01-01"),
		FileURL:  "/uploads/x.pdf",
		Tags:     []string{"Go", "go", "Backend"},
		Author:   models.Author{ID: "u_001", Name: "Radhe Ambhure", Unit: "Platform"},
	}
}

func TestLoad(t *testing.T) {
	s := seededStore(t)
	if s.Len() != 10 {
		t.Fatalf("len = %d, want 10", s.Len())
	}
	st := s.State()
	if st.Loading || !st.Loaded || st.Error != "" {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestLoad_Failure(t *testing.T) {
	s := New(WithLatency(latency.Failing(nil)))
	if _, err := s.Load(context.Background(), fixtures.Embedded()); !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if got := s.State().Error; got != MsgLoadFailed {
		t.Fatalf("error = %q, want %q", got, MsgLoadFailed)
	}
	if s.Len() != 0 {
		t.Fatalf("collection populated after failed load")
	}
}

func TestScenarioC_ToggleLike(t *testing.T) {
	s := seededStore(t)

	c, err := s.ToggleLike(context.Background(), "cert_001")
	if err != nil {
		t.Fatal(err)
	}
	if c.Likes != 13 || !c.IsLikedByUser {
		t.Fatalf("after first toggle: likes=%d liked=%v", c.Likes, c.IsLikedByUser)
	}

	c, err = s.ToggleLike(context.Background(), "cert_001")
	if err != nil {
		t.Fatal(err)
	}
	if c.Likes != 12 || c.IsLikedByUser {
		t.Fatalf("after second toggle: likes=%d liked=%v", c.Likes, c.IsLikedByUser)
	}
}

func TestToggleLike_NeverNegative(t *testing.T) {
	s := New()
	s.Reload([]models.Certificate{{ID: "c", Likes: 0, IsLikedByUser: true}})
	c, err := s.ToggleLike(context.Background(), "c")
	if err != nil {
		t.Fatal(err)
	}
	if c.Likes != 0 || c.IsLikedByUser {
		t.Fatalf("likes=%d liked=%v", c.Likes, c.IsLikedByUser)
	}
}

func TestToggleLike_ConcurrentCallsCompose(t *testing.T) {
	s := seededStore(t, WithLatency(latency.Fixed(20*time.Millisecond)))

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ToggleLike(context.Background(), "cert_001"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	c, _ := s.Get("cert_001")
	if c.Likes != 13 || !c.IsLikedByUser {
		t.Fatalf("three toggles: likes=%d liked=%v, want 13/true", c.Likes, c.IsLikedByUser)
	}
}

func TestIncrementViews(t *testing.T) {
	s := seededStore(t)
	for i := 0; i < 3; i++ {
		if _, err := s.IncrementViews(context.Background(), "cert_002"); err != nil {
			t.Fatal(err)
		}
	}
	c, _ := s.Get("cert_002")
	if c.Views != 237 {
		t.Fatalf("views = %d, want 237", c.Views)
	}
	if _, err := s.IncrementViews(context.Background(), "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScenarioD_Create(t *testing.T) {
	var events []string
	s := seededStore(t, WithEventSink(func(kind EventKind, id string) {
		events = append(events, string(kind))
	}))

	c, err := s.Create(context.Background(), validDraft())
	if err != nil {
		t.Fatal(err)
	}
	if c.Likes != 0 || c.Views != 0 {
		t.Fatalf("counters = %d/%d, want 0/0", c.Likes, c.Views)
	}
	if diff := cmp.Diff([]string{"go", "backend"}, c.Tags); diff != "" {
		t.Fatalf("tags (-want +got):\n%s", diff)
	}
	got, err := s.Get(c.ID)
	if err != nil {
		t.Fatalf("lookup by new id: %v", err)
	}
	if got.Title != "X" {
		t.Fatalf("title = %q", got.Title)
	}
	if s.All()[0].ID != c.ID {
		t.Fatal("new record not prepended")
	}
	if diff := cmp.Diff([]string{"created"}, events); diff != "" {
		t.Fatalf("events (-want +got):\n%s", diff)
	}
}

func TestCreate_DefaultsDateToToday(t *testing.T) {
	s := seededStore(t)
	d := validDraft()
	d.Date = models.Date{}
	c, err := s.Create(context.Background(), d)
	if err != nil {
		t.Fatal(err)
	}
	if !c.Date.Equal(models.Today()) {
		t.Fatalf("date = %s, want today", c.Date)
	}
}

func TestCreate_Validation(t *testing.T) {
	s := seededStore(t)
	d := validDraft()
	d.Title = ""
	if _, err := s.Create(context.Background(), d); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if s.Len() != 10 {
		t.Fatalf("len = %d after invalid create", s.Len())
	}
}

func TestScenarioE_DeleteMissing(t *testing.T) {
	s := seededStore(t)
	if err := s.Delete(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
	if s.Len() != 10 {
		t.Fatalf("len = %d, want 10", s.Len())
	}
	if err := s.Delete(context.Background(), "cert_003"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get("cert_003"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("deleted record still present: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	s := seededStore(t)
	title := "Spring Boot Expert"

	if _, err := s.Update(context.Background(), "nope", models.Patch{Title: &title}, ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if s.State().Error != MsgUpdateFailed {
		t.Fatalf("error = %q", s.State().Error)
	}

	cur, _ := s.Get("cert_001")
	if _, err := s.Update(context.Background(), "cert_001", models.Patch{Title: &title}, "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	c, err := s.Update(context.Background(), "cert_001", models.Patch{Title: &title}, ETag(cur))
	if err != nil {
		t.Fatal(err)
	}
	if c.Title != title || c.Likes != 12 {
		t.Fatalf("unexpected record %+v", c)
	}
}

func TestUpdate_TransportFailureLeavesRecord(t *testing.T) {
	s := seededStore(t, WithLatency(latency.FailOnce(latency.None(), "update")))
	title := "changed"
	if _, err := s.Update(context.Background(), "cert_001", models.Patch{Title: &title}, ""); !errors.Is(err, apperr.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	c, _ := s.Get("cert_001")
	if c.Title == title {
		t.Fatal("failed update was applied")
	}
	if s.State().Error != MsgUpdateFailed {
		t.Fatalf("error = %q", s.State().Error)
	}
	s.ClearError()
	if s.State().Error != "" {
		t.Fatal("ClearError did not clear")
	}
}

func TestMutation_CancelledIsNotApplied(t *testing.T) {
	slow := latency.Fixed(time.Hour)
	s := seededStore(t, WithLatency(latency.Func(func(ctx context.Context, op string) error {
		if op == "load" {
			return nil
		}
		return slow.Wait(ctx, op)
	})))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := s.ToggleLike(ctx, "cert_001")
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	c, _ := s.Get("cert_001")
	if c.Likes != 12 || c.IsLikedByUser {
		t.Fatalf("cancelled toggle applied: likes=%d", c.Likes)
	}
	if s.State().Error != "" {
		t.Fatalf("cancellation set error %q", s.State().Error)
	}
}

func TestState_LoadingWhileInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	sim := latency.Func(func(ctx context.Context, op string) error {
		if op == "load" {
			return nil
		}
		close(entered)
		<-release
		return nil
	})
	s := seededStore(t, WithLatency(sim))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Delete(context.Background(), "cert_001")
	}()
	<-entered
	if !s.State().Loading {
		t.Fatal("Loading = false during mutation")
	}
	close(release)
	<-done
	if s.State().Loading {
		t.Fatal("Loading = true after mutation")
	}
}

func TestPageReset(t *testing.T) {
	s := seededStore(t)
	s.Reload(append(s.All(), extra(3)...))

	if got := s.SetPage(2); got != 2 {
		t.Fatalf("SetPage(2) = %d", got)
	}
	if _, err := s.ToggleLike(context.Background(), "cert_001"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.IncrementViews(context.Background(), "cert_002"); err != nil {
		t.Fatal(err)
	}
	if s.Page() != 2 {
		t.Fatalf("mutation reset page to %d", s.Page())
	}

	s.SetCategories([]string{"Development"})
	if s.Page() != 1 {
		t.Fatalf("filter change left page at %d", s.Page())
	}
	if _, err := s.ToggleLike(context.Background(), "cert_001"); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Development"}, s.Params().Categories); diff != "" {
		t.Fatalf("mutation changed filters (-want +got):\n%s", diff)
	}

	s.SetPage(1)
	for _, change := range []func(){
		func() { s.SetQuery("a") },
		func() { s.SetTags([]string{"aws"}) },
		func() { s.SetUnits([]string{"Platform"}) },
		func() { s.SetDateRange(nil, nil) },
		func() { _ = s.SetSort(pipeline.SortByTitle, pipeline.Asc) },
		func() { s.ClearFilters() },
	} {
		s.mu.Lock()
		s.page = 2
		s.mu.Unlock()
		change()
		if s.Page() != 1 {
			t.Fatalf("parameter change left page at %d", s.Page())
		}
	}
}

func TestSetPage_Clamps(t *testing.T) {
	s := seededStore(t)
	if got := s.SetPage(5); got != 1 {
		t.Fatalf("SetPage(5) with one page = %d", got)
	}
	s.SetCategories([]string{"Nothing"})
	if got := s.SetPage(3); got != 1 {
		t.Fatalf("SetPage on empty view = %d", got)
	}
	v := s.View()
	if v.Page != 1 || v.TotalPages != 0 || len(v.Items) != 0 {
		t.Fatalf("empty view = %+v", v)
	}
}

func TestView_ScenarioA(t *testing.T) {
	s := seededStore(t)
	s.Reload(append(s.All(), extra(3)...))

	v := s.View()
	if len(v.Items) != 12 || v.TotalPages != 2 || v.TotalCount != 13 {
		t.Fatalf("page 1 = %d items, %d pages, %d total", len(v.Items), v.TotalPages, v.TotalCount)
	}
	s.SetPage(2)
	if got := len(s.View().Items); got != 1 {
		t.Fatalf("page 2 = %d items, want 1", got)
	}
}

func TestClearFilters_KeepsSort(t *testing.T) {
	s := seededStore(t)
	if err := s.SetSort(pipeline.SortByLikes, pipeline.Asc); err != nil {
		t.Fatal(err)
	}
	s.SetQuery("aws")
	s.ClearFilters()
	p := s.Params()
	if p.Query != "" || p.SortBy != pipeline.SortByLikes || p.Order != pipeline.Asc {
		t.Fatalf("unexpected params %+v", p)
	}
	if err := s.SetSort("rank", pipeline.Asc); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSecondaryQueries(t *testing.T) {
	s := seededStore(t)
	if got := s.ByAuthor("u_002"); len(got) != 1 || got[0].ID != "cert_002" {
		t.Fatalf("ByAuthor = %+v", got)
	}
	if got := s.ByTag("AWS"); len(got) != 1 {
		t.Fatalf("ByTag = %d", len(got))
	}
	if got := s.ByUnit("Platform"); len(got) != 2 {
		t.Fatalf("ByUnit = %d", len(got))
	}
	if got := s.MostLiked(1); got[0].ID != "cert_008" {
		t.Fatalf("MostLiked = %s", got[0].ID)
	}
	if got := s.MostViewed(2); got[0].ID != "cert_008" || got[1].ID != "cert_005" {
		t.Fatalf("MostViewed = %s, %s", got[0].ID, got[1].ID)
	}
	if got := s.Recent(3); len(got) != 3 || got[0].ID != "cert_001" {
		t.Fatalf("Recent = %+v", got)
	}
}

func TestSearch_DoesNotTouchFeedState(t *testing.T) {
	s := seededStore(t)
	s.SetPage(1)
	page := s.Search(pipeline.Params{Categories: []string{"Development"}}, 1, 1)
	if page.TotalCount != 2 || page.TotalPages != 2 || len(page.Items) != 1 {
		t.Fatalf("search page = %+v", page)
	}
	if len(s.Params().Categories) != 0 {
		t.Fatal("Search changed store params")
	}
}

func extra(n int) []models.Certificate {
	out := make([]models.Certificate, n)
	for i := range out {
		out[i] = models.Certificate{
			ID:       fmt.Sprintf("extra_%d", i),
			Title:    fmt.Sprintf("Extra %d", i),
			Category: "Cloud",
			Issuer:   "Extra",
			Date:     models.NewDate(2023, time.January, i+1),
		}
	}
	return out
}

func TestMutators_IDLocking(t *testing.T) {
	entered := make(chan string, 3)
	release := make(chan struct{})
	sim := latency.Func(func(ctx context.Context, op string) error {
		entered <- op
		<-release
		return nil
	})
	s := seededStore(t, WithLatency(latency.None()))
	s.sim = sim

	var wg sync.WaitGroup
	for _, id := range []string{"cert_001", "cert_002", "cert_001"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ToggleLike(context.Background(), id); err != nil {
				t.Error(err)
			}
		}()
	}

	// Two distinct ids wait in parallel; the second cert_001 call queues.
	for i := 0; i < 2; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatal("mutators on different ids did not run in parallel")
		}
	}
	select {
	case <-entered:
		t.Fatal("second mutator on the same id entered its delay early")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	wg.Wait()

	c, _ := s.Get("cert_001")
	if c.Likes != 12 || c.IsLikedByUser {
		t.Fatalf("two toggles: likes=%d liked=%v, want 12/false", c.Likes, c.IsLikedByUser)
	}
}

func TestPage_ClampedAfterDeletes(t *testing.T) {
	s := seededStore(t, WithPageSize(3))
	if got := s.SetPage(4); got != 4 {
		t.Fatalf("SetPage(4) = %d, want 4", got)
	}
	for _, id := range []string{"cert_009", "cert_010"} {
		if err := s.Delete(context.Background(), id); err != nil {
			t.Fatalf("delete %s: %v", id, err)
		}
	}

	view := s.View()
	if view.TotalPages != 3 || view.Page != 3 {
		t.Fatalf("view page %d of %d, want 3 of 3", view.Page, view.TotalPages)
	}
	if got := s.Page(); got != view.Page {
		t.Fatalf("Page() = %d, View().Page = %d", got, view.Page)
	}
}
