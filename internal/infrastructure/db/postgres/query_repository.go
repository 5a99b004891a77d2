package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/taxtooter/support-api/internal/core/domain"
	"github.com/taxtooter/support-api/internal/core/ports"
)

type QueryRepository struct {
	db *gorm.DB
}

func NewQueryRepository(db *gorm.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

func preloadResponses(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Responses", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	})
}

func (r *QueryRepository) Create(ctx context.Context, q *domain.Query) (*domain.Query, error) {
	m := fromQuery(q)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return nil, fmt.Errorf("insert query: %w", err)
	}
	return m.toDomain(), nil
}

func (r *QueryRepository) FindByID(ctx context.Context, id string) (*domain.Query, error) {
	if !validID(id) {
		return nil, domain.ErrQueryNotFound
	}

	var m QueryModel
	if err := preloadResponses(r.db.WithContext(ctx)).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("find query: %w", err)
	}
	return m.toDomain(), nil
}

// applyFilter narrows tx to the rows selected by f.
func applyFilter(tx *gorm.DB, f ports.QueryFilter) *gorm.DB {
	if f.CustomerID != "" {
		tx = tx.Where("customer_id = ?", f.CustomerID)
	}
	if f.ConsultantID != "" {
		tx = tx.Where("consultant_id = ?", f.ConsultantID)
	}
	if f.Status != "" {
		tx = tx.Where("status = ?", f.Status)
	}
	return tx
}

func (r *QueryRepository) List(ctx context.Context, f ports.QueryFilter) ([]*domain.Query, int64, error) {
	// ids in the filter that are not uuids cannot match any row
	if (f.CustomerID != "" && !validID(f.CustomerID)) || (f.ConsultantID != "" && !validID(f.ConsultantID)) {
		return []*domain.Query{}, 0, nil
	}

	var total int64
	if err := applyFilter(r.db.WithContext(ctx).Model(&QueryModel{}), f).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count queries: %w", err)
	}

	var models []QueryModel
	err := preloadResponses(applyFilter(r.db.WithContext(ctx), f)).
		Order("created_at DESC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list queries: %w", err)
	}

	items := make([]*domain.Query, 0, len(models))
	for i := range models {
		items = append(items, models[i].toDomain())
	}
	return items, total, nil
}

func (r *QueryRepository) Assign(ctx context.Context, id, consultantID string) (*domain.Query, error) {
	return r.transition(ctx, id, domain.StatusAssigned, map[string]any{"consultant_id": consultantID})
}

func (r *QueryRepository) Resolve(ctx context.Context, id string) (*domain.Query, error) {
	return r.transition(ctx, id, domain.StatusResolved, map[string]any{})
}

// transition applies a conditional status update guarded by the allowed
// source statuses.
func (r *QueryRepository) transition(ctx context.Context, id string, next domain.QueryStatus, set map[string]any) (*domain.Query, error) {
	if !validID(id) {
		return nil, domain.ErrQueryNotFound
	}

	from := make([]string, 0, 2)
	for _, s := range domain.SourcesFor(next) {
		from = append(from, string(s))
	}
	set["status"] = string(next)
	set["updated_at"] = time.Now().UTC()

	res := r.db.WithContext(ctx).Model(&QueryModel{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(set)
	if res.Error != nil {
		return nil, fmt.Errorf("update query status: %w", res.Error)
	}

	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&QueryModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("update query status: %w", err)
		}
		if n == 0 {
			return nil, domain.ErrQueryNotFound
		}
		return nil, fmt.Errorf("update query status: %w (to %s)", domain.ErrInvalidTransition, next)
	}
	return r.FindByID(ctx, id)
}

// AddResponse inserts the response row and touches the parent in one transaction.
func (r *QueryRepository) AddResponse(ctx context.Context, id string, resp domain.Response) (*domain.Query, error) {
	if !validID(id) {
		return nil, domain.ErrQueryNotFound
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&QueryModel{}).Where("id = ?", id).Update("updated_at", time.Now().UTC())
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrQueryNotFound
		}
		m := fromResponse(id, resp)
		return tx.Create(&m).Error
	})
	if err != nil {
		if errors.Is(err, domain.ErrQueryNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("add response: %w", err)
	}
	return r.FindByID(ctx, id)
}
