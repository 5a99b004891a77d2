package domain

import (
	"time"

	"github.com/google/uuid"
)

// QueryEventType names a lifecycle change published to the event broker.
type QueryEventType string

const (
	EventQueryCreated   QueryEventType = "query.created"
	EventQueryAssigned  QueryEventType = "query.assigned"
	EventQueryResponded QueryEventType = "query.responded"
	EventQueryResolved  QueryEventType = "query.resolved"
)

// QueryEvent records a single lifecycle change on a query.
type QueryEvent struct {
	// ID is unique per event; consumers de-duplicate on it.
	ID           string         `json:"id"`
	Type         QueryEventType `json:"type"`
	QueryID      string         `json:"query_id"`
	CustomerID   string         `json:"customer_id"`
	ConsultantID string         `json:"consultant_id,omitempty"`
	ActorID      string         `json:"actor_id"`
	ActorRole    string         `json:"actor_role"`
	Status       QueryStatus    `json:"status"`
	OccurredAt   time.Time      `json:"occurred_at"`
}

// NewQueryEvent snapshots q after a change made by actor.
func NewQueryEvent(t QueryEventType, q *Query, actor Actor) QueryEvent {
	return QueryEvent{
		ID:           uuid.NewString(),
		Type:         t,
		QueryID:      q.ID,
		CustomerID:   q.CustomerID,
		ConsultantID: q.ConsultantID,
		ActorID:      actor.ID,
		ActorRole:    actor.Role,
		Status:       q.Status,
		OccurredAt:   time.Now().UTC(),
	}
}
