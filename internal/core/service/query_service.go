package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"

	"github.com/taxtooter/support-api/internal/api/metrics"
	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	// listCachePrefix namespaces every cached list page. Writes bump its
	// generation and drop the whole prefix.
	listCachePrefix = "queries:list:"
)

// QueryService drives the open -> assigned -> resolved lifecycle.
type QueryService struct {
	queries   ports.QueryRepository
	users     ports.UserRepository
	files     ports.FileService
	cache     ports.ListCache // optional
	events    ports.EventSink // optional
	sanitizer *bluemonday.Policy
	log       zerolog.Logger
}

func NewQueryService(
	queries ports.QueryRepository,
	users ports.UserRepository,
	files ports.FileService,
	cache ports.ListCache,
	events ports.EventSink,
	log zerolog.Logger,
) *QueryService {
	return &QueryService{
		queries:   queries,
		users:     users,
		files:     files,
		cache:     cache,
		events:    events,
		sanitizer: bluemonday.StrictPolicy(),
		log:       log,
	}
}

// Create opens a new query on behalf of a customer.
func (s *QueryService) Create(ctx context.Context, actor domain.Actor, in ports.CreateQueryInput) (*domain.Query, error) {
	if actor.Role != domain.RoleCustomer {
		return nil, domain.ErrForbidden
	}

	title := s.clean(in.Title)
	description := s.clean(in.Description)
	if title == "" || description == "" {
		return nil, domain.ErrInvalidInput
	}

	var attachment *domain.FileRef
	if in.Attachment != nil {
		ref, err := s.files.Upload(ctx, *in.Attachment)
		if err != nil {
			return nil, err
		}
		attachment = ref
	}

	now := time.Now().UTC()
	created, err := s.queries.Create(ctx, &domain.Query{
		Title:       title,
		Description: description,
		Status:      domain.StatusOpen,
		CustomerID:  actor.ID,
		Attachment:  attachment,
		Responses:   []domain.Response{},
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		s.discard(ctx, attachment)
		return nil, fmt.Errorf("create query: %w", err)
	}

	metrics.QueriesCreatedTotal.WithLabelValues(strconv.FormatBool(attachment != nil)).Inc()
	s.log.Info().Str("query_id", created.ID).Str("customer_id", actor.ID).Msg("query created")
	s.afterWrite(ctx, domain.EventQueryCreated, created, actor)
	return created, nil
}

// Get returns a single query if the actor may see it.
func (s *QueryService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Query, error) {
	q, err := s.queries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.VisibleTo(actor) {
		return nil, domain.ErrForbidden
	}
	return q, nil
}

// List returns one page of the queries visible under the requested scope.
// Results are cached per viewer; cache failures fall through to the store.
func (s *QueryService) List(ctx context.Context, actor domain.Actor, in ports.ListQueriesInput) (*ports.ListQueriesResult, error) {
	filter := ports.QueryFilter{Status: in.Status}
	owner := actor.ID
	switch in.Scope {
	case ports.ScopeAll:
		if !actor.IsAdmin() {
			return nil, domain.ErrForbidden
		}
		owner = "all"
	case ports.ScopeMine:
		if actor.Role != domain.RoleCustomer {
			return nil, domain.ErrForbidden
		}
		filter.CustomerID = actor.ID
	case ports.ScopeAssigned:
		if actor.Role != domain.RoleConsultant {
			return nil, domain.ErrForbidden
		}
		filter.ConsultantID = actor.ID
	default:
		return nil, domain.ErrInvalidInput
	}
	if in.Status != "" && !domain.ValidStatus(in.Status) {
		return nil, domain.ErrInvalidInput
	}

	filter.Page, filter.Limit = normalizePage(in.Page, in.Limit)

	// The generation is read before the store so a page computed before a
	// write lands under a stale generation and is never served.
	cache := s.cache
	var key string
	if cache != nil {
		gen, err := cache.Generation(ctx, listCachePrefix)
		if err != nil {
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			s.log.Warn().Err(err).Msg("list cache generation unavailable, querying store")
			cache = nil
		}
		key = fmt.Sprintf("%sg%d:%s:%s:%s:%d:%d", listCachePrefix, gen, in.Scope, owner, in.Status, filter.Page, filter.Limit)
	}

	if cache != nil {
		var cached ports.ListQueriesResult
		found, err := cache.Get(ctx, key, &cached)
		switch {
		case err != nil:
			metrics.CacheLookupsTotal.WithLabelValues("error").Inc()
			s.log.Warn().Err(err).Str("key", key).Msg("list cache read failed, querying store")
		case found:
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return &cached, nil
		default:
			metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		}
	}

	items, total, err := s.queries.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	if items == nil {
		items = []*domain.Query{}
	}

	result := &ports.ListQueriesResult{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages(total, filter.Limit),
	}

	if cache != nil {
		if err := cache.Set(ctx, key, result); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("list cache write failed")
		}
	}
	return result, nil
}

// Assign hands the query to a consultant. Only admins may assign.
func (s *QueryService) Assign(ctx context.Context, actor domain.Actor, id, consultantID string) (*domain.Query, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrForbidden
	}
	if consultantID == "" {
		return nil, domain.ErrInvalidConsultant
	}

	consultant, err := s.users.FindByID(ctx, consultantID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidConsultant
		}
		return nil, fmt.Errorf("assign query: %w", err)
	}
	if consultant.Role != domain.RoleConsultant {
		return nil, domain.ErrInvalidConsultant
	}

	current, err := s.queries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(domain.StatusAssigned) {
		return nil, fmt.Errorf("assign query: %w", &domain.TransitionError{From: current.Status, To: domain.StatusAssigned})
	}

	updated, err := s.queries.Assign(ctx, id, consultant.ID)
	if err != nil {
		return nil, err
	}

	metrics.QueryTransitionsTotal.WithLabelValues(string(domain.StatusAssigned)).Inc()
	s.log.Info().Str("query_id", id).Str("consultant_id", consultant.ID).Msg("query assigned")
	s.afterWrite(ctx, domain.EventQueryAssigned, updated, actor)
	return updated, nil
}

// Respond appends a message, with an optional file, to the conversation.
func (s *QueryService) Respond(ctx context.Context, actor domain.Actor, id string, in ports.RespondInput) (*domain.Query, error) {
	current, err := s.queries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.CanRespond(actor) {
		return nil, domain.ErrForbidden
	}

	message := s.clean(in.Message)
	if message == "" {
		return nil, domain.ErrInvalidInput
	}

	resp := domain.Response{
		UserID:    actor.ID,
		UserName:  actor.Name,
		UserRole:  actor.Role,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	if in.File != nil {
		ref, err := s.files.Upload(ctx, *in.File)
		if err != nil {
			return nil, err
		}
		resp.File = ref
	}

	updated, err := s.queries.AddResponse(ctx, id, resp)
	if err != nil {
		s.discard(ctx, resp.File)
		return nil, err
	}

	metrics.ResponsesTotal.WithLabelValues(actor.Role).Inc()
	s.log.Info().Str("query_id", id).Str("user_id", actor.ID).Msg("response added")
	s.afterWrite(ctx, domain.EventQueryResponded, updated, actor)
	return updated, nil
}

// Resolve closes the query. resolved is terminal.
func (s *QueryService) Resolve(ctx context.Context, actor domain.Actor, id string) (*domain.Query, error) {
	current, err := s.queries.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.CanResolve(actor) {
		return nil, domain.ErrForbidden
	}
	if !current.Status.CanTransitionTo(domain.StatusResolved) {
		return nil, fmt.Errorf("resolve query: %w", &domain.TransitionError{From: current.Status, To: domain.StatusResolved})
	}

	updated, err := s.queries.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	metrics.QueryTransitionsTotal.WithLabelValues(string(domain.StatusResolved)).Inc()
	s.log.Info().Str("query_id", id).Str("by", actor.ID).Msg("query resolved")
	s.afterWrite(ctx, domain.EventQueryResolved, updated, actor)
	return updated, nil
}

// afterWrite drops cached lists and emits the lifecycle event. Neither step
// can fail the request.
func (s *QueryService) afterWrite(ctx context.Context, t domain.QueryEventType, q *domain.Query, actor domain.Actor) {
	if s.cache != nil {
		if err := s.cache.Bump(ctx, listCachePrefix); err != nil {
			s.log.Warn().Err(err).Msg("list cache generation bump failed")
		}
		if err := s.cache.DeletePrefix(ctx, listCachePrefix); err != nil {
			s.log.Warn().Err(err).Msg("list cache invalidation failed")
		}
	}
	if s.events != nil {
		s.events.Enqueue(domain.NewQueryEvent(t, q, actor))
	}
}

// discard removes an object whose owning write failed. A failed removal is
// logged with the key so the orphan can be found later.
func (s *QueryService) discard(ctx context.Context, ref *domain.FileRef) {
	if ref == nil {
		return
	}
	if err := s.files.Remove(ctx, ref.Key); err != nil {
		s.log.Error().Err(err).Str("key", ref.Key).Msg("orphaned attachment left in storage")
	}
}

// clean strips markup. The policy escapes the text it keeps, so entities are
// decoded again before storing: "R&D" stays "R&D".
func (s *QueryService) clean(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(text)))
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}

func totalPages(total int64, limit int) int {
	if total == 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
