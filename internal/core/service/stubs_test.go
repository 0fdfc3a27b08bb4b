package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bugtracker/bugtracker/internal/core/cache"
	"github.com/bugtracker/bugtracker/internal/core/domain"
	"github.com/bugtracker/bugtracker/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub bug repository
// ---------------------------------------------------------------------------

type stubBugRepo struct {
	mu        sync.Mutex
	byID      map[string]*domain.Bug
	seq       int
	writes    int
	listCalls int
	statCalls int
	err       error  // if set, every call returns this error
	afterSave func() // runs after Create and Update, outside the lock
}

func newStubBugRepo() *stubBugRepo {
	return &stubBugRepo{byID: make(map[string]*domain.Bug)}
}

// cloneBug copies what the store persists; user projections are never stored.
func cloneBug(b *domain.Bug) *domain.Bug {
	c := *b
	c.Reporter, c.Assignee = nil, nil
	c.Tags = append([]string{}, b.Tags...)
	if b.Comments != nil {
		c.Comments = append([]domain.Comment{}, b.Comments...)
		for i := range c.Comments {
			c.Comments[i].Author = nil
		}
	}
	if b.AssigneeID != nil {
		id := *b.AssigneeID
		c.AssigneeID = &id
	}
	return &c
}

func (r *stubBugRepo) Create(_ context.Context, b *domain.Bug) error {
	defer r.saved()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.seq++
	r.writes++
	b.ID = "bug" + strconv.Itoa(1000+r.seq)
	r.byID[b.ID] = cloneBug(b)
	return nil
}

// saved fires afterSave once, so a hook that writes back does not recurse.
func (r *stubBugRepo) saved() {
	r.mu.Lock()
	hook := r.afterSave
	r.afterSave = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (r *stubBugRepo) FindByID(_ context.Context, id string) (*domain.Bug, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	b, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrBugNotFound
	}
	return cloneBug(b), nil
}

// Update mirrors the Mongo $set/$unset/$max update.
func (r *stubBugRepo) Update(_ context.Context, id string, u ports.BugUpdate) (*domain.Bug, error) {
	defer r.saved()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	b, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrBugNotFound
	}
	r.writes++
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Description != nil {
		b.Description = *u.Description
	}
	if u.Status != nil {
		b.Status = *u.Status
	}
	if u.Priority != nil {
		b.Priority = *u.Priority
	}
	if u.Tags != nil {
		b.Tags = append([]string{}, (*u.Tags)...)
	}
	if u.StepsToReproduce != nil {
		b.StepsToReproduce = *u.StepsToReproduce
	}
	if u.ExpectedBehavior != nil {
		b.ExpectedBehavior = *u.ExpectedBehavior
	}
	if u.Environment != nil {
		b.Environment = *u.Environment
	}
	switch {
	case u.ClearAssignee:
		b.AssigneeID = nil
	case u.AssigneeID != nil:
		id := *u.AssigneeID
		b.AssigneeID = &id
	}
	if u.UpdatedAt.After(b.UpdatedAt) {
		b.UpdatedAt = u.UpdatedAt
	}
	return cloneBug(b), nil
}

func (r *stubBugRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.byID[id]; !ok {
		return domain.ErrBugNotFound
	}
	r.writes++
	delete(r.byID, id)
	return nil
}

func (r *stubBugRepo) AppendComment(_ context.Context, id string, c domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	b, ok := r.byID[id]
	if !ok {
		return domain.ErrBugNotFound
	}
	r.writes++
	b.Comments = append(b.Comments, c)
	if c.CreatedAt.After(b.UpdatedAt) {
		b.UpdatedAt = c.CreatedAt
	}
	return nil
}

func (r *stubBugRepo) matches(b *domain.Bug, q ports.BugQuery) bool {
	if q.Status != "" && b.Status != q.Status {
		return false
	}
	if q.Priority != "" && b.Priority != q.Priority {
		return false
	}
	if q.Unassigned && b.AssigneeID != nil {
		return false
	}
	if !q.Unassigned && q.AssigneeID != "" && (b.AssigneeID == nil || *b.AssigneeID != q.AssigneeID) {
		return false
	}
	if q.Search != "" &&
		!strings.Contains(strings.ToLower(b.Title), q.Search) &&
		!strings.Contains(strings.ToLower(b.Description), q.Search) {
		return false
	}
	return true
}

// List applies the same filter, order and projection the real Mongo repo uses.
func (r *stubBugRepo) List(_ context.Context, q ports.BugQuery) ([]domain.Bug, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.err != nil {
		return nil, 0, r.err
	}

	var matched []domain.Bug
	for _, b := range r.byID {
		if r.matches(b, q) {
			c := cloneBug(b)
			c.Comments = nil
			matched = append(matched, *c)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := int64(len(matched))
	if q.Skip >= total {
		return []domain.Bug{}, total, nil
	}
	end := q.Skip + q.Limit
	if end > total {
		end = total
	}
	return matched[q.Skip:end], total, nil
}

func (r *stubBugRepo) Stats(context.Context) (*domain.BugStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statCalls++
	if r.err != nil {
		return nil, r.err
	}
	s := domain.NewBugStats()
	for _, b := range r.byID {
		s.Total++
		s.ByStatus[b.Status]++
		s.ByPriority[b.Priority]++
	}
	return s, nil
}

func (r *stubBugRepo) CountByReporter(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.byID {
		if b.ReporterID == userID {
			n++
		}
	}
	return n, nil
}

func (r *stubBugRepo) DeleteByReporter(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, b := range r.byID {
		if b.ReporterID == userID {
			delete(r.byID, id)
			n++
		}
	}
	r.writes++
	return n, nil
}

func (r *stubBugRepo) UnassignUser(_ context.Context, userID string, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.byID {
		if b.AssigneeID != nil && *b.AssigneeID == userID {
			b.AssigneeID = nil
			b.UpdatedAt = at
			n++
		}
	}
	r.writes++
	return n, nil
}

func (r *stubBugRepo) get(id string) *domain.Bug {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.byID[id]; ok {
		return cloneBug(b)
	}
	return nil
}

// ---------------------------------------------------------------------------
// In-memory stub user repository
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	mu         sync.Mutex
	byID       map[string]*domain.User
	seq        int
	refLookups int
	err        error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{byID: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Username == u.Username {
			return domain.ErrUsernameTaken
		}
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	r.seq++
	u.ID = "user" + strconv.Itoa(100+r.seq)
	r.byID[u.ID] = cloneUser(u)
	return nil
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	u, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.byID {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) sorted() []domain.User {
	out := make([]domain.User, 0, len(r.byID))
	for _, u := range r.byID {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (r *stubUserRepo) List(_ context.Context, q ports.UserQuery) ([]domain.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []domain.User
	for _, u := range r.sorted() {
		if q.Search == "" ||
			strings.Contains(strings.ToLower(u.Username), q.Search) ||
			strings.Contains(u.Email, q.Search) {
			matched = append(matched, u)
		}
	}
	total := int64(len(matched))
	if q.Skip >= total {
		return nil, total, nil
	}
	end := q.Skip + q.Limit
	if end > total {
		end = total
	}
	return matched[q.Skip:end], total, nil
}

func (r *stubUserRepo) Refs(context.Context) ([]domain.UserRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var refs []domain.UserRef
	for _, u := range r.sorted() {
		refs = append(refs, u.Ref())
	}
	return refs, nil
}

func (r *stubUserRepo) RefsByIDs(_ context.Context, ids []string) (map[string]domain.UserRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refLookups++
	if r.err != nil {
		return nil, r.err
	}
	refs := make(map[string]domain.UserRef, len(ids))
	for _, id := range ids {
		if u, ok := r.byID[id]; ok {
			refs[id] = u.Ref()
		}
	}
	return refs, nil
}

func (r *stubUserRepo) Update(_ context.Context, id string, u ports.UserUpdate) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if u.Username != nil {
		cur.Username = *u.Username
	}
	if u.Email != nil {
		cur.Email = *u.Email
	}
	if u.Role != nil {
		cur.Role = *u.Role
	}
	if u.PasswordHash != nil {
		cur.PasswordHash = *u.PasswordHash
	}
	cur.UpdatedAt = u.UpdatedAt
	return cloneUser(cur), nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.byID, id)
	return nil
}

// ---------------------------------------------------------------------------
// Other collaborators
// ---------------------------------------------------------------------------

type passthroughTx struct{ calls int }

func (t *passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.calls++
	return fn(ctx)
}

type stubHasher struct{}

func (stubHasher) Hash(secret string) (string, error) { return "hashed:" + secret, nil }
func (stubHasher) Compare(hash, secret string) bool { return hash == "hashed:"+secret }

type stubCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	err     error
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string][]byte)}
}

func (c *stubCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	v, ok := c.entries[key]
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	return v, nil
}

func (c *stubCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[key] = value
	return nil
}

func (c *stubCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *stubCache) DeleteByPrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

func (c *stubCache) Ping(context.Context) error { return c.err }

func (c *stubCache) count(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

// clock advances one second on every reading so successive mutations get
// strictly increasing timestamps.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// ---------------------------------------------------------------------------
// Test environment
// ---------------------------------------------------------------------------

type testEnv struct {
	bugs  *stubBugRepo
	users *stubUserRepo
	cache *stubCache
	tx    *passthroughTx
	clock *clock
	bug   *BugService
	user  *UserService
}

type envOption func(*BugOptions, *ReporterPolicy)

func withAssigneePolicy(p AssigneePolicy) envOption {
	return func(o *BugOptions, _ *ReporterPolicy) { o.AssigneePolicy = p }
}

func withReporterPolicy(p ReporterPolicy) envOption {
	return func(_ *BugOptions, rp *ReporterPolicy) { *rp = p }
}

func newTestEnv(opts ...envOption) *testEnv {
	env := &testEnv{
		bugs:  newStubBugRepo(),
		users: newStubUserRepo(),
		cache: newStubCache(),
		tx:    &passthroughTx{},
		clock: newClock(),
	}
	bugOpts := BugOptions{}
	policy := ReporterReject
	for _, o := range opts {
		o(&bugOpts, &policy)
	}

	log := zerolog.Nop()
	reads := cache.NewReadThrough(env.cache, 0, log)
	inv := cache.NewInvalidator(env.cache, 0, log)

	env.bug = NewBugService(env.bugs, env.users, reads, inv, bugOpts, log)
	env.bug.now = env.clock.Now
	env.user = NewUserService(env.users, env.bugs, env.tx, stubHasher{}, inv, policy, log)
	env.user.now = env.clock.Now
	return env
}

// seedUser inserts a user directly into the stub store.
func (e *testEnv) seedUser(username string, role domain.Role) domain.Principal {
	u := &domain.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashed:secret",
		Role:         role,
		CreatedAt:    e.clock.Now(),
	}
	u.UpdatedAt = u.CreatedAt
	_ = e.users.Create(context.Background(), u)
	return domain.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

func validDraft() ports.BugDraft {
	return ports.BugDraft{
		Title:       "Login button unresponsive",
		Description: "Clicking login does nothing on Safari.",
		Priority:    domain.PriorityHigh,
		Tags:        []string{"ui", "auth"},
	}
}

func strPtr(s string) *string { return &s }
