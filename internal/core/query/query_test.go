package query

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

type stubResolver struct {
	users map[string]*domain.User
	err   error
}

func (r *stubResolver) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.users[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// ---------------------------------------------------------------------------
// Normalisation
// ---------------------------------------------------------------------------

func TestNormalizeBugFilter_Defaults(t *testing.T) {
	f, err := NormalizeBugFilter(ports.ListBugsInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := BugFilter{Status: All, Priority: All, Assignee: All, Page: 1, PerPage: DefaultPerPage}
	if f != want {
		t.Fatalf("expected %+v, got %+v", want, f)
	}
}

func TestNormalizeBugFilter_CapsPerPage(t *testing.T) {
	f, err := NormalizeBugFilter(ports.ListBugsInput{PerPage: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.PerPage != MaxPerPage {
		t.Fatalf("expected per_page capped at %d, got %d", MaxPerPage, f.PerPage)
	}
}

func TestNormalizeBugFilter_Rejects(t *testing.T) {
	cases := []ports.ListBugsInput{
		{Status: "bogus"},
		{Priority: "urgent"},
		{Page: -1},
		{PerPage: -5},
	}
	for _, in := range cases {
		if _, err := NormalizeBugFilter(in); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%+v: expected ErrValidation, got %v", in, err)
		}
	}
}

func TestNormalizeBugFilter_EquivalentInputsShareKey(t *testing.T) {
	a, _ := NormalizeBugFilter(ports.ListBugsInput{Status: "OPEN", Priority: "", Search: "  Crash ", Assignee: "ALL"})
	b, _ := NormalizeBugFilter(ports.ListBugsInput{Status: "open", Priority: "all", Search: "crash", Page: 1, PerPage: 10})
	if a != b {
		t.Fatalf("expected equal filters, got %+v and %+v", a, b)
	}
	if a.CacheKey() != b.CacheKey() {
		t.Fatalf("expected equal cache keys, got %s and %s", a.CacheKey(), b.CacheKey())
	}
}

func TestCacheKey_DistinguishesFilters(t *testing.T) {
	base, _ := NormalizeBugFilter(ports.ListBugsInput{Status: "open"})
	keys := map[string]bool{base.CacheKey(): true}
	for _, in := range []ports.ListBugsInput{
		{Status: "closed"},
		{Status: "open", Page: 2},
		{Status: "open", PerPage: 20},
		{Status: "open", Assignee: "alice"},
		{Status: "open", Search: "x"},
	} {
		f, err := NormalizeBugFilter(in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		k := f.CacheKey()
		if keys[k] {
			t.Errorf("%+v collides with an earlier key %s", in, k)
		}
		keys[k] = true
	}
}

func TestCacheKey_Shape(t *testing.T) {
	f, _ := NormalizeBugFilter(ports.ListBugsInput{})
	k := f.CacheKey()
	if len(k) != len("list:")+16 || k[:5] != "list:" {
		t.Fatalf("unexpected key %q", k)
	}
	if StatsCacheKey()[:6] != "stats:" {
		t.Fatalf("unexpected stats key %q", StatsCacheKey())
	}
}

// ---------------------------------------------------------------------------
// Planning
// ---------------------------------------------------------------------------

func TestPlan_TranslatesFilter(t *testing.T) {
	p := NewPlanner(&stubResolver{users: map[string]*domain.User{"alice": {ID: "u1", Username: "alice"}}})
	f, _ := NormalizeBugFilter(ports.ListBugsInput{Status: "open", Priority: "high", Assignee: "alice", Search: "Login", Page: 3, PerPage: 10})

	plan, err := p.Plan(context.Background(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ports.BugQuery{
		Status:     domain.StatusOpen,
		Priority:   domain.PriorityHigh,
		AssigneeID: "u1",
		Search:     "login",
		Skip:       20,
		Limit:      10,
	}
	if plan.NoMatch || plan.Query != want {
		t.Fatalf("expected %+v, got %+v (no match %v)", want, plan.Query, plan.NoMatch)
	}
}

func TestPlan_Unassigned(t *testing.T) {
	p := NewPlanner(&stubResolver{})
	f, _ := NormalizeBugFilter(ports.ListBugsInput{Assignee: "unassigned"})
	plan, err := p.Plan(context.Background(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.Query.Unassigned || plan.Query.AssigneeID != "" {
		t.Fatalf("expected unassigned predicate, got %+v", plan.Query)
	}
}

func TestPlan_KeywordCasingNamesAUser(t *testing.T) {
	p := NewPlanner(&stubResolver{users: map[string]*domain.User{
		"Unassigned": {ID: "u7", Username: "Unassigned"},
		"ALL":        {ID: "u8", Username: "ALL"},
	}})
	cases := map[string]string{"Unassigned": "u7", "ALL": "u8"}
	for name, wantID := range cases {
		f, err := NormalizeBugFilter(ports.ListBugsInput{Assignee: name})
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if f.Assignee != name {
			t.Fatalf("%s: expected assignee kept verbatim, got %q", name, f.Assignee)
		}
		plan, err := p.Plan(context.Background(), f)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if plan.NoMatch || plan.Query.Unassigned || plan.Query.AssigneeID != wantID {
			t.Fatalf("%s: expected assignee %s, got %+v", name, wantID, plan.Query)
		}
	}
}

func TestPlan_FarPageSaturatesSkip(t *testing.T) {
	p := NewPlanner(&stubResolver{})
	f, err := NormalizeBugFilter(ports.ListBugsInput{Page: math.MaxInt64 / 3, PerPage: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	plan, err := p.Plan(context.Background(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Query.Skip != math.MaxInt64 {
		t.Fatalf("expected saturated skip, got %d", plan.Query.Skip)
	}
}

func TestPlan_UnknownAssigneeMatchesNothing(t *testing.T) {
	p := NewPlanner(&stubResolver{users: map[string]*domain.User{}})
	f, _ := NormalizeBugFilter(ports.ListBugsInput{Assignee: "ghost"})
	plan, err := p.Plan(context.Background(), f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !plan.NoMatch {
		t.Fatal("expected NoMatch for unknown assignee")
	}
}

func TestPlan_ResolverFailureSurfaces(t *testing.T) {
	p := NewPlanner(&stubResolver{err: domain.Unavailable("find user", errors.New("timeout"))})
	f, _ := NormalizeBugFilter(ports.ListBugsInput{Assignee: "alice"})
	if _, err := p.Plan(context.Background(), f); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total   int64
		perPage int
		want    int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{23, 10, 3},
		{30, 10, 3},
		{31, 10, 4},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.perPage); got != tc.want {
			t.Errorf("TotalPages(%d, %d) = %d, want %d", tc.total, tc.perPage, got, tc.want)
		}
	}
}

func TestOffset(t *testing.T) {
	cases := []struct {
		page, perPage int
		want          int64
	}{
		{0, 10, 0},
		{1, 10, 0},
		{3, 10, 20},
		{2, 0, 0},
		{math.MaxInt64 / 3, 10, math.MaxInt64},
		{math.MaxInt64, math.MaxInt64, math.MaxInt64},
	}
	for _, tc := range cases {
		if got := Offset(tc.page, tc.perPage); got != tc.want {
			t.Errorf("Offset(%d, %d) = %d, want %d", tc.page, tc.perPage, got, tc.want)
		}
	}
}

func TestNewPage_NeverNilItems(t *testing.T) {
	p := NewPage[domain.Bug](nil, 4, 10, 23)
	if p.Items == nil || len(p.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", p.Items)
	}
	if p.Total != 23 || p.TotalPages != 3 || p.Page != 4 {
		t.Fatalf("unexpected envelope %+v", p)
	}
}
