package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
)

type queryFixture struct {
	svc        *QueryService
	queries    *stubQueryRepo
	users      *stubUserRepo
	cache      *stubCache
	sink       *stubSink
	storage    *stubStorage
	admin      domain.Actor
	customer   domain.Actor
	other      domain.Actor
	consultant domain.Actor
}

func newQueryFixture() *queryFixture {
	f := &queryFixture{
		queries: newStubQueryRepo(),
		users:   newStubUserRepo(),
		cache:   newStubCache(),
		sink:    &stubSink{},
		storage: newStubStorage(),
	}
	f.admin = domain.Actor{ID: f.users.add("admin@example.com", "Ada", domain.RoleAdmin), Name: "Ada", Role: domain.RoleAdmin}
	f.customer = domain.Actor{ID: f.users.add("cust@example.com", "Cus", domain.RoleCustomer), Name: "Cus", Role: domain.RoleCustomer}
	f.other = domain.Actor{ID: f.users.add("other@example.com", "Oth", domain.RoleCustomer), Name: "Oth", Role: domain.RoleCustomer}
	f.consultant = domain.Actor{ID: f.users.add("cons@example.com", "Con", domain.RoleConsultant), Name: "Con", Role: domain.RoleConsultant}

	files := NewFileService(f.storage, FileServiceConfig{KeyPrefix: "local"}, zerolog.Nop())
	f.svc = NewQueryService(f.queries, f.users, files, f.cache, f.sink, zerolog.Nop())
	return f
}

func (f *queryFixture) create(t *testing.T) *domain.Query {
	t.Helper()
	q, err := f.svc.Create(context.Background(), f.customer, ports.CreateQueryInput{
		Title: "VAT refund", Description: "How do I claim my VAT refund?",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return q
}

func TestQueryService_Create(t *testing.T) {
	f := newQueryFixture()
	q := f.create(t)

	if q.ID == "" || q.Status != domain.StatusOpen || q.CustomerID != f.customer.ID {
		t.Fatalf("unexpected query: %+v", q)
	}
	if q.ConsultantID != "" {
		t.Fatal("new query must not have a consultant")
	}
	if len(f.sink.events) != 1 || f.sink.events[0].Type != domain.EventQueryCreated {
		t.Fatalf("expected one created event, got %+v", f.sink.events)
	}
	if len(f.cache.deletedPrefs) != 1 || f.cache.deletedPrefs[0] != listCachePrefix {
		t.Fatalf("expected list invalidation, got %v", f.cache.deletedPrefs)
	}
}

func TestQueryService_Create_WithAttachment(t *testing.T) {
	f := newQueryFixture()
	q, err := f.svc.Create(context.Background(), f.customer, ports.CreateQueryInput{
		Title:       "Receipts",
		Description: "See attached",
		Attachment:  &ports.Upload{Filename: "receipt.pdf", Size: 4, Body: strings.NewReader("%PDF")},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if q.Attachment == nil || q.Attachment.Filename != "receipt.pdf" {
		t.Fatalf("expected attachment, got %+v", q.Attachment)
	}
	if f.storage.saved[q.Attachment.Key] != "%PDF" {
		t.Fatalf("attachment not stored under %s", q.Attachment.Key)
	}
}

func TestQueryService_Create_RejectsNonCustomers(t *testing.T) {
	f := newQueryFixture()
	for _, actor := range []domain.Actor{f.admin, f.consultant} {
		_, err := f.svc.Create(context.Background(), actor, ports.CreateQueryInput{Title: "t", Description: "d"})
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("%s: expected ErrForbidden, got %v", actor.Role, err)
		}
	}
}

func TestQueryService_Create_SanitizesText(t *testing.T) {
	f := newQueryFixture()
	q, err := f.svc.Create(context.Background(), f.customer, ports.CreateQueryInput{
		Title: "<b>Tax</b> return", Description: "<p>Need help</p>",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if q.Title != "Tax return" || q.Description != "Need help" {
		t.Fatalf("markup not stripped: %q / %q", q.Title, q.Description)
	}

	_, err = f.svc.Create(context.Background(), f.customer, ports.CreateQueryInput{
		Title: "<script>alert(1)</script>", Description: "x",
	})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for markup-only title, got %v", err)
	}
}

func TestQueryService_SanitizeKeepsPlainCharacters(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()

	q, err := f.svc.Create(ctx, f.customer, ports.CreateQueryInput{
		Title:       "R&D credit",
		Description: `Can't tell if income < 50k qualifies "quickly"`,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if q.Title != "R&D credit" {
		t.Fatalf("title altered: %q", q.Title)
	}
	if q.Description != `Can't tell if income < 50k qualifies "quickly"` {
		t.Fatalf("description altered: %q", q.Description)
	}

	updated, err := f.svc.Respond(ctx, f.customer, q.ID, ports.RespondInput{Message: "Tom & Jerry's <i>reply</i>"})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if got := updated.Responses[0].Message; got != "Tom & Jerry's reply" {
		t.Fatalf("response altered: %q", got)
	}
}

func TestQueryService_Create_StoreErrorRemovesAttachment(t *testing.T) {
	f := newQueryFixture()
	f.queries.createErr = errors.New("connection reset")

	_, err := f.svc.Create(context.Background(), f.customer, ports.CreateQueryInput{
		Title:       "Receipts",
		Description: "See attached",
		Attachment:  &ports.Upload{Filename: "receipt.pdf", Size: 4, Body: strings.NewReader("%PDF")},
	})
	if err == nil {
		t.Fatal("expected store error")
	}
	if len(f.storage.deleted) != 1 || len(f.storage.saved) != 0 {
		t.Fatalf("attachment left behind: saved=%v deleted=%v", f.storage.saved, f.storage.deleted)
	}
}

func TestQueryService_Respond_StoreErrorRemovesFile(t *testing.T) {
	f := newQueryFixture()
	q := f.create(t)
	f.queries.addErr = errors.New("connection reset")

	_, err := f.svc.Respond(context.Background(), f.customer, q.ID, ports.RespondInput{
		Message: "attached",
		File:    &ports.Upload{Filename: "w2.pdf", Size: 2, Body: strings.NewReader("w2")},
	})
	if err == nil {
		t.Fatal("expected store error")
	}
	if len(f.storage.deleted) != 1 || len(f.storage.saved) != 0 {
		t.Fatalf("file left behind: saved=%v deleted=%v", f.storage.saved, f.storage.deleted)
	}
}

func TestQueryService_Create_RemoveFailureStillReturnsStoreError(t *testing.T) {
	f := newQueryFixture()
	f.queries.createErr = errors.New("connection reset")
	f.storage.deleteErr = errors.New("bucket unavailable")

	_, err := f.svc.Create(context.Background(), f.customer, ports.CreateQueryInput{
		Title:       "Receipts",
		Description: "See attached",
		Attachment:  &ports.Upload{Filename: "receipt.pdf", Size: 4, Body: strings.NewReader("%PDF")},
	})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("expected the store error, got %v", err)
	}
}

func TestQueryService_Get_Visibility(t *testing.T) {
	f := newQueryFixture()
	q := f.create(t)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, f.customer, q.ID); err != nil {
		t.Fatalf("owner should see query: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.admin, q.ID); err != nil {
		t.Fatalf("admin should see query: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.other, q.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("other customer: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Get(ctx, f.consultant, q.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("unassigned consultant: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Get(ctx, f.admin, "nope"); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("expected ErrQueryNotFound, got %v", err)
	}
}

func TestQueryService_Lifecycle(t *testing.T) {
	f := newQueryFixture()
	q := f.create(t)
	ctx := context.Background()

	assigned, err := f.svc.Assign(ctx, f.admin, q.ID, f.consultant.ID)
	if err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if assigned.Status != domain.StatusAssigned || assigned.ConsultantID != f.consultant.ID {
		t.Fatalf("unexpected assigned query: %+v", assigned)
	}

	if _, err := f.svc.Get(ctx, f.consultant, q.ID); err != nil {
		t.Fatalf("assignee should see query: %v", err)
	}

	responded, err := f.svc.Respond(ctx, f.consultant, q.ID, ports.RespondInput{Message: "Send your forms"})
	if err != nil {
		t.Fatalf("Respond failed: %v", err)
	}
	if len(responded.Responses) != 1 {
		t.Fatalf("expected one response, got %d", len(responded.Responses))
	}
	r := responded.Responses[0]
	if r.UserID != f.consultant.ID || r.UserName != "Con" || r.UserRole != domain.RoleConsultant {
		t.Fatalf("unexpected response author: %+v", r)
	}

	resolved, err := f.svc.Resolve(ctx, f.consultant, q.ID)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if resolved.Status != domain.StatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}

	if _, err := f.svc.Assign(ctx, f.admin, q.ID, f.consultant.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("assigning resolved query: expected ErrInvalidTransition, got %v", err)
	}
	if _, err := f.svc.Resolve(ctx, f.admin, q.ID); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("resolving twice: expected ErrInvalidTransition, got %v", err)
	}

	wantTypes := []domain.QueryEventType{
		domain.EventQueryCreated, domain.EventQueryAssigned, domain.EventQueryResponded, domain.EventQueryResolved,
	}
	if len(f.sink.events) != len(wantTypes) {
		t.Fatalf("expected %d events, got %d", len(wantTypes), len(f.sink.events))
	}
	for i, want := range wantTypes {
		if f.sink.events[i].Type != want || f.sink.events[i].QueryID != q.ID {
			t.Fatalf("event %d: expected %s, got %+v", i, want, f.sink.events[i])
		}
	}
}

func TestQueryService_Assign_Validation(t *testing.T) {
	f := newQueryFixture()
	q := f.create(t)
	ctx := context.Background()

	if _, err := f.svc.Assign(ctx, f.customer, q.ID, f.consultant.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("customer assign: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Assign(ctx, f.admin, q.ID, f.other.ID); !errors.Is(err, domain.ErrInvalidConsultant) {
		t.Fatalf("non-consultant: expected ErrInvalidConsultant, got %v", err)
	}
	if _, err := f.svc.Assign(ctx, f.admin, q.ID, "ghost"); !errors.Is(err, domain.ErrInvalidConsultant) {
		t.Fatalf("unknown user: expected ErrInvalidConsultant, got %v", err)
	}
	if _, err := f.svc.Assign(ctx, f.admin, "nope", f.consultant.ID); !errors.Is(err, domain.ErrQueryNotFound) {
		t.Fatalf("unknown query: expected ErrQueryNotFound, got %v", err)
	}
}

func TestQueryService_Reassign(t *testing.T) {
	f := newQueryFixture()
	q := f.create(t)
	ctx := context.Background()
	second := f.users.add("cons2@example.com", "Two", domain.RoleConsultant)

	if _, err := f.svc.Assign(ctx, f.admin, q.ID, f.consultant.ID); err != nil {
		t.Fatalf("first assign failed: %v", err)
	}
	updated, err := f.svc.Assign(ctx, f.admin, q.ID, second)
	if err != nil {
		t.Fatalf("reassign failed: %v", err)
	}
	if updated.ConsultantID != second {
		t.Fatalf("expected consultant %s, got %s", second, updated.ConsultantID)
	}
	if _, err := f.svc.Respond(ctx, f.consultant, q.ID, ports.RespondInput{Message: "hi"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("previous consultant: expected ErrForbidden, got %v", err)
	}
}

func TestQueryService_Respond_Permissions(t *testing.T) {
	f := newQueryFixture()
	q := f.create(t)
	ctx := context.Background()

	if _, err := f.svc.Respond(ctx, f.consultant, q.ID, ports.RespondInput{Message: "hi"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("unassigned consultant: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Respond(ctx, f.other, q.ID, ports.RespondInput{Message: "hi"}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("other customer: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.Respond(ctx, f.customer, q.ID, ports.RespondInput{Message: "   "}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("blank message: expected ErrInvalidInput, got %v", err)
	}

	updated, err := f.svc.Respond(ctx, f.admin, q.ID, ports.RespondInput{
		Message: "Looking into it",
		File:    &ports.Upload{Filename: "notes.txt", Size: 5, Body: strings.NewReader("notes")},
	})
	if err != nil {
		t.Fatalf("admin respond failed: %v", err)
	}
	if updated.Responses[0].File == nil || updated.Responses[0].File.Filename != "notes.txt" {
		t.Fatalf("expected file on response, got %+v", updated.Responses[0])
	}
}

func TestQueryService_Resolve_ByOwner(t *testing.T) {
	f := newQueryFixture()
	q := f.create(t)
	ctx := context.Background()

	if _, err := f.svc.Resolve(ctx, f.other, q.ID); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("other customer: expected ErrForbidden, got %v", err)
	}
	resolved, err := f.svc.Resolve(ctx, f.customer, q.ID)
	if err != nil {
		t.Fatalf("owner resolve failed: %v", err)
	}
	if resolved.Status != domain.StatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
}

func TestQueryService_List_Scopes(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()
	q := f.create(t)
	f.create(t)
	if _, err := f.svc.Create(ctx, f.other, ports.CreateQueryInput{Title: "Other", Description: "Other"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := f.svc.Assign(ctx, f.admin, q.ID, f.consultant.ID); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}

	all, err := f.svc.List(ctx, f.admin, ports.ListQueriesInput{Scope: ports.ScopeAll})
	if err != nil || all.Total != 3 {
		t.Fatalf("admin: expected 3, got %+v (%v)", all, err)
	}
	mine, err := f.svc.List(ctx, f.customer, ports.ListQueriesInput{Scope: ports.ScopeMine})
	if err != nil || mine.Total != 2 {
		t.Fatalf("customer: expected 2, got %+v (%v)", mine, err)
	}
	assigned, err := f.svc.List(ctx, f.consultant, ports.ListQueriesInput{Scope: ports.ScopeAssigned})
	if err != nil || assigned.Total != 1 || assigned.Items[0].ID != q.ID {
		t.Fatalf("consultant: unexpected %+v (%v)", assigned, err)
	}
	open, err := f.svc.List(ctx, f.admin, ports.ListQueriesInput{Scope: ports.ScopeAll, Status: "open"})
	if err != nil || open.Total != 2 {
		t.Fatalf("status filter: expected 2, got %+v (%v)", open, err)
	}

	if _, err := f.svc.List(ctx, f.customer, ports.ListQueriesInput{Scope: ports.ScopeAll}); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("customer listing all: expected ErrForbidden, got %v", err)
	}
	if _, err := f.svc.List(ctx, f.admin, ports.ListQueriesInput{Scope: ports.ScopeAll, Status: "closed"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("bad status: expected ErrInvalidInput, got %v", err)
	}
}

func TestQueryService_List_Pagination(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.create(t)
	}

	page, err := f.svc.List(ctx, f.customer, ports.ListQueriesInput{Scope: ports.ScopeMine, Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(page.Items) != 1 || page.Total != 3 || page.TotalPages != 2 || page.Page != 2 {
		t.Fatalf("unexpected page: %+v", page)
	}

	defaults, _ := f.svc.List(ctx, f.customer, ports.ListQueriesInput{Scope: ports.ScopeMine})
	if defaults.Page != 1 || defaults.Limit != defaultPageLimit {
		t.Fatalf("unexpected defaults: page=%d limit=%d", defaults.Page, defaults.Limit)
	}
	capped, _ := f.svc.List(ctx, f.customer, ports.ListQueriesInput{Scope: ports.ScopeMine, Limit: 1000})
	if capped.Limit != maxPageLimit {
		t.Fatalf("expected limit capped at %d, got %d", maxPageLimit, capped.Limit)
	}
}

func TestQueryService_List_Cache(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()
	f.create(t)
	in := ports.ListQueriesInput{Scope: ports.ScopeMine}

	if _, err := f.svc.List(ctx, f.customer, in); err != nil {
		t.Fatalf("List failed: %v", err)
	}
	cached, err := f.svc.List(ctx, f.customer, in)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if f.queries.listCalls != 1 {
		t.Fatalf("expected second call to hit cache, store called %d times", f.queries.listCalls)
	}
	if cached.Total != 1 {
		t.Fatalf("cached result mismatch: %+v", cached)
	}

	// another customer must not receive the first customer's cached page
	other, err := f.svc.List(ctx, f.other, in)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if other.Total != 0 {
		t.Fatalf("cache leaked across customers: %+v", other)
	}

	f.create(t)
	fresh, err := f.svc.List(ctx, f.customer, in)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if fresh.Total != 2 {
		t.Fatalf("expected invalidated cache to return 2, got %d", fresh.Total)
	}
}

func TestQueryService_List_WriteDuringReadIsNotCached(t *testing.T) {
	f := newQueryFixture()
	ctx := context.Background()
	f.create(t)
	in := ports.ListQueriesInput{Scope: ports.ScopeMine}

	// A write lands after the store was read but before the page is cached.
	f.queries.onList = func() { f.create(t) }
	stale, err := f.svc.List(ctx, f.customer, in)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if stale.Total != 1 {
		t.Fatalf("expected the pre-write page, got %d", stale.Total)
	}

	fresh, err := f.svc.List(ctx, f.customer, in)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if fresh.Total != 2 {
		t.Fatalf("stale page served from cache: total=%d", fresh.Total)
	}
	if f.queries.listCalls != 2 {
		t.Fatalf("expected the second list to read the store, got %d calls", f.queries.listCalls)
	}
}

func TestQueryService_List_GenerationErrorSkipsCache(t *testing.T) {
	f := newQueryFixture()
	f.create(t)
	f.cache.genErr = errors.New("redis down")
	in := ports.ListQueriesInput{Scope: ports.ScopeMine}

	for i := 0; i < 2; i++ {
		if _, err := f.svc.List(context.Background(), f.customer, in); err != nil {
			t.Fatalf("List failed: %v", err)
		}
	}
	if f.queries.listCalls != 2 || len(f.cache.entries) != 0 {
		t.Fatalf("cache must be bypassed: calls=%d entries=%d", f.queries.listCalls, len(f.cache.entries))
	}
}

func TestQueryService_List_CacheFailureFallsThrough(t *testing.T) {
	f := newQueryFixture()
	f.create(t)
	f.cache.getErr = errors.New("redis down")
	f.cache.setErr = errors.New("redis down")

	res, err := f.svc.List(context.Background(), f.customer, ports.ListQueriesInput{Scope: ports.ScopeMine})
	if err != nil {
		t.Fatalf("cache errors must not fail the request: %v", err)
	}
	if res.Total != 1 || f.queries.listCalls != 1 {
		t.Fatalf("expected store result, got %+v", res)
	}
}

func TestQueryService_WithoutCacheOrEvents(t *testing.T) {
	queries := newStubQueryRepo()
	users := newStubUserRepo()
	customer := domain.Actor{ID: users.add("c@example.com", "C", domain.RoleCustomer), Role: domain.RoleCustomer}
	files := NewFileService(newStubStorage(), FileServiceConfig{}, zerolog.Nop())
	svc := NewQueryService(queries, users, files, nil, nil, zerolog.Nop())

	if _, err := svc.Create(context.Background(), customer, ports.CreateQueryInput{Title: "t", Description: "d"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	res, err := svc.List(context.Background(), customer, ports.ListQueriesInput{Scope: ports.ScopeMine})
	if err != nil || res.Total != 1 {
		t.Fatalf("unexpected list result: %+v (%v)", res, err)
	}
}

func TestQueryService_List_StoreError(t *testing.T) {
	f := newQueryFixture()
	f.queries.listErr = errors.New("connection reset")

	_, err := f.svc.List(context.Background(), f.admin, ports.ListQueriesInput{Scope: ports.ScopeAll})
	if err == nil || !strings.Contains(err.Error(), "list queries") {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}
