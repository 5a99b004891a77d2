package postgres

import (
	"time"

	"github.com/google/uuid"

	"github.com/taxtooter/support-api/internal/core/domain"
)

type UserModel struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	Name         string `gorm:"not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"index;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string { return "users" }

// FileColumns is an optional file reference flattened into its owner's row.
type FileColumns struct {
	Filename string
	Path     string
	Key      string
}

type QueryModel struct {
	ID           string          `gorm:"type:uuid;primaryKey"`
	Title        string          `gorm:"not null"`
	Description  string          `gorm:"type:text;not null"`
	Status       string          `gorm:"index;not null"`
	CustomerID   string          `gorm:"type:uuid;index;not null"`
	ConsultantID *string         `gorm:"type:uuid;index"`
	Attachment   FileColumns     `gorm:"embedded;embeddedPrefix:attachment_"`
	Responses    []ResponseModel `gorm:"foreignKey:QueryID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time       `gorm:"index"`
	UpdatedAt    time.Time
}

func (QueryModel) TableName() string { return "queries" }

type ResponseModel struct {
	ID        string      `gorm:"type:uuid;primaryKey"`
	QueryID   string      `gorm:"type:uuid;index;not null"`
	UserID    string      `gorm:"type:uuid;not null"`
	UserName  string      `gorm:"not null"`
	UserRole  string      `gorm:"not null"`
	Message   string      `gorm:"type:text;not null"`
	File      FileColumns `gorm:"embedded;embeddedPrefix:file_"`
	CreatedAt time.Time   `gorm:"index"`
}

func (ResponseModel) TableName() string { return "query_responses" }

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func fromUser(u *domain.User) UserModel {
	id := u.ID
	if id == "" {
		id = uuid.NewString()
	}
	return UserModel{
		ID:           id,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func (m *UserModel) toDomain() *domain.User {
	return &domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    m.UpdatedAt.UTC(),
	}
}

func fromFileRef(f *domain.FileRef) FileColumns {
	if f == nil {
		return FileColumns{}
	}
	return FileColumns{Filename: f.Filename, Path: f.Path, Key: f.Key}
}

func (f FileColumns) toDomain() *domain.FileRef {
	if f.Key == "" {
		return nil
	}
	return &domain.FileRef{Filename: f.Filename, Path: f.Path, Key: f.Key}
}

func fromResponse(queryID string, r domain.Response) ResponseModel {
	return ResponseModel{
		ID:        uuid.NewString(),
		QueryID:   queryID,
		UserID:    r.UserID,
		UserName:  r.UserName,
		UserRole:  r.UserRole,
		Message:   r.Message,
		File:      fromFileRef(r.File),
		CreatedAt: r.CreatedAt,
	}
}

func fromQuery(q *domain.Query) QueryModel {
	id := q.ID
	if id == "" {
		id = uuid.NewString()
	}
	m := QueryModel{
		ID:          id,
		Title:       q.Title,
		Description: q.Description,
		Status:      string(q.Status),
		CustomerID:  q.CustomerID,
		Attachment:  fromFileRef(q.Attachment),
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
	if q.ConsultantID != "" {
		c := q.ConsultantID
		m.ConsultantID = &c
	}
	for _, r := range q.Responses {
		m.Responses = append(m.Responses, fromResponse(id, r))
	}
	return m
}

func (m *QueryModel) toDomain() *domain.Query {
	q := &domain.Query{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		Status:      domain.QueryStatus(m.Status),
		CustomerID:  m.CustomerID,
		Attachment:  m.Attachment.toDomain(),
		Responses:   make([]domain.Response, 0, len(m.Responses)),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
	if m.ConsultantID != nil {
		q.ConsultantID = *m.ConsultantID
	}
	for _, r := range m.Responses {
		q.Responses = append(q.Responses, domain.Response{
			UserID:    r.UserID,
			UserName:  r.UserName,
			UserRole:  r.UserRole,
			Message:   r.Message,
			File:      r.File.toDomain(),
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return q
}
