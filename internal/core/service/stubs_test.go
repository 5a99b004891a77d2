package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
)

// ---------------------------------------------------------------------------
// In-memory stub repositories
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users  map[string]*domain.User
	nextID int
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]*domain.User)}
}

func cloneUser(u *domain.User) *domain.User {
	clone := *u
	return &clone
}

func (r *stubUserRepo) emailTaken(email, exceptID string) bool {
	for id, u := range r.users {
		if u.Email == email && id != exceptID {
			return true
		}
	}
	return false
}

func (r *stubUserRepo) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	if r.emailTaken(user.Email, "") {
		return nil, domain.ErrUserExists
	}
	r.nextID++
	c := cloneUser(user)
	c.ID = fmt.Sprintf("u-%d", r.nextID)
	r.users[c.ID] = c
	return cloneUser(c), nil
}

// add inserts a user directly and returns its id.
func (r *stubUserRepo) add(email, name, role string) string {
	u, _ := r.Create(context.Background(), &domain.User{Email: email, Name: name, Role: role})
	return u.ID
}

func (r *stubUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r *stubUserRepo) List(_ context.Context, role string) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range r.users {
		if role == "" || u.Role == role {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *stubUserRepo) Update(_ context.Context, user *domain.User) (*domain.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return nil, domain.ErrUserExists
	}
	r.users[user.ID] = cloneUser(user)
	return cloneUser(user), nil
}

func (r *stubUserRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.users[id]; !ok {
		return domain.ErrUserNotFound
	}
	delete(r.users, id)
	return nil
}

// stubQueryRepo mirrors the conditional update semantics of the real stores.
type stubQueryRepo struct {
	queries   map[string]*domain.Query
	order     []string
	nextID    int
	listCalls int
	listErr   error
	createErr error
	addErr    error
	// onList runs inside List after the store has been read.
	onList func()
}

func newStubQueryRepo() *stubQueryRepo {
	return &stubQueryRepo{queries: make(map[string]*domain.Query)}
}

func cloneQuery(q *domain.Query) *domain.Query {
	clone := *q
	clone.Responses = append([]domain.Response(nil), q.Responses...)
	return &clone
}

func (r *stubQueryRepo) Create(_ context.Context, q *domain.Query) (*domain.Query, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.nextID++
	c := cloneQuery(q)
	c.ID = fmt.Sprintf("q-%d", r.nextID)
	r.queries[c.ID] = c
	r.order = append(r.order, c.ID)
	return cloneQuery(c), nil
}

func (r *stubQueryRepo) FindByID(_ context.Context, id string) (*domain.Query, error) {
	q, ok := r.queries[id]
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	return cloneQuery(q), nil
}

func (r *stubQueryRepo) List(_ context.Context, f ports.QueryFilter) ([]*domain.Query, int64, error) {
	r.listCalls++
	if r.listErr != nil {
		return nil, 0, r.listErr
	}

	var matched []*domain.Query
	for _, id := range r.order {
		q := r.queries[id]
		if f.CustomerID != "" && q.CustomerID != f.CustomerID {
			continue
		}
		if f.ConsultantID != "" && q.ConsultantID != f.ConsultantID {
			continue
		}
		if f.Status != "" && string(q.Status) != f.Status {
			continue
		}
		matched = append(matched, cloneQuery(q))
	}
	if r.onList != nil {
		hook := r.onList
		r.onList = nil
		hook()
	}

	total := int64(len(matched))
	start := (f.Page - 1) * f.Limit
	if start >= len(matched) {
		return []*domain.Query{}, total, nil
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (r *stubQueryRepo) transition(id string, to domain.QueryStatus, mutate func(*domain.Query)) (*domain.Query, error) {
	q, ok := r.queries[id]
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	if !q.Status.CanTransitionTo(to) {
		return nil, domain.ErrInvalidTransition
	}
	q.Status = to
	mutate(q)
	q.UpdatedAt = time.Now().UTC()
	return cloneQuery(q), nil
}

func (r *stubQueryRepo) Assign(_ context.Context, id, consultantID string) (*domain.Query, error) {
	return r.transition(id, domain.StatusAssigned, func(q *domain.Query) { q.ConsultantID = consultantID })
}

func (r *stubQueryRepo) Resolve(_ context.Context, id string) (*domain.Query, error) {
	return r.transition(id, domain.StatusResolved, func(*domain.Query) {})
}

func (r *stubQueryRepo) AddResponse(_ context.Context, id string, resp domain.Response) (*domain.Query, error) {
	if r.addErr != nil {
		return nil, r.addErr
	}
	q, ok := r.queries[id]
	if !ok {
		return nil, domain.ErrQueryNotFound
	}
	q.Responses = append(q.Responses, resp)
	return cloneQuery(q), nil
}

// ---------------------------------------------------------------------------
// Adapters
// ---------------------------------------------------------------------------

type stubCache struct {
	entries      map[string][]byte
	generations  map[string]int64
	getErr       error
	setErr       error
	genErr       error
	deletedPrefs []string
}

func newStubCache() *stubCache {
	return &stubCache{entries: make(map[string][]byte), generations: make(map[string]int64)}
}

func (c *stubCache) Generation(_ context.Context, prefix string) (int64, error) {
	if c.genErr != nil {
		return 0, c.genErr
	}
	return c.generations[prefix], nil
}

func (c *stubCache) Bump(_ context.Context, prefix string) error {
	c.generations[prefix]++
	return nil
}

func (c *stubCache) Get(_ context.Context, key string, dst any) (bool, error) {
	if c.getErr != nil {
		return false, c.getErr
	}
	b, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *stubCache) Set(_ context.Context, key string, value any) error {
	if c.setErr != nil {
		return c.setErr
	}
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = b
	return nil
}

func (c *stubCache) DeletePrefix(_ context.Context, prefix string) error {
	c.deletedPrefs = append(c.deletedPrefs, prefix)
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

type stubSink struct {
	events []domain.QueryEvent
}

func (s *stubSink) Enqueue(e domain.QueryEvent) {
	s.events = append(s.events, e)
}

type stubStorage struct {
	saved     map[string]string
	saveErr   error
	deleted   []string
	deleteErr error
}

func newStubStorage() *stubStorage {
	return &stubStorage{saved: make(map[string]string)}
}

func (s *stubStorage) Save(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if s.saveErr != nil {
		return "", s.saveErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.saved[key] = string(b)
	return "/uploads/" + key, nil
}

func (s *stubStorage) Delete(_ context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, key)
	delete(s.saved, key)
	return nil
}

func (s *stubStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://files.example.com/%s?ttl=%d", key, int(ttl.Seconds())), nil
}
