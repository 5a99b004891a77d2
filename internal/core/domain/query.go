package domain

import "time"

// QueryStatus represents the lifecycle state of a tax query.
type QueryStatus string

const (
	StatusOpen     QueryStatus = "open"
	StatusAssigned QueryStatus = "assigned"
	StatusResolved QueryStatus = "resolved"
)

// validTransitions defines the allowed lifecycle moves. assigned -> assigned
// is a re-assignment to a different consultant. resolved is terminal.
var validTransitions = map[QueryStatus][]QueryStatus{
	StatusOpen:     {StatusAssigned, StatusResolved},
	StatusAssigned: {StatusAssigned, StatusResolved},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s QueryStatus) CanTransitionTo(next QueryStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// SourcesFor returns every status from which next can be reached. Stores use
// it to build conditional updates.
func SourcesFor(next QueryStatus) []QueryStatus {
	var from []QueryStatus
	for _, s := range []QueryStatus{StatusOpen, StatusAssigned, StatusResolved} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}

// ValidStatus reports whether s is a known query status.
func ValidStatus(s string) bool {
	switch QueryStatus(s) {
	case StatusOpen, StatusAssigned, StatusResolved:
		return true
	}
	return false
}

// FileRef points at an uploaded object.
type FileRef struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Key      string `json:"key"`
}

// Response is one entry of a query's append-only conversation.
type Response struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	UserRole  string    `json:"user_role"`
	Message   string    `json:"message"`
	File      *FileRef  `json:"file,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Query is the core aggregate: a customer's question and its conversation.
type Query struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Status       QueryStatus `json:"status"`
	CustomerID   string      `json:"customer_id"`
	ConsultantID string      `json:"consultant_id,omitempty"`
	Attachment   *FileRef    `json:"attachment,omitempty"`
	Responses    []Response  `json:"responses"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// VisibleTo reports whether the actor may read the query.
func (q *Query) VisibleTo(a Actor) bool {
	switch a.Role {
	case RoleAdmin:
		return true
	case RoleCustomer:
		return q.CustomerID == a.ID
	case RoleConsultant:
		return q.ConsultantID != "" && q.ConsultantID == a.ID
	}
	return false
}

// CanRespond reports whether the actor may append a response.
func (q *Query) CanRespond(a Actor) bool {
	return q.VisibleTo(a)
}

// CanResolve reports whether the actor may mark the query resolved.
func (q *Query) CanResolve(a Actor) bool {
	return q.VisibleTo(a)
}
