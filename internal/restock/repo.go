package restock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
)

// Repository persists restock requests. Terminal transitions go through compare-and-swap
// updates so concurrent callers cannot both win.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.RestockRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.RestockRequest, error)
	FindByCodeHash(ctx context.Context, hash string) (*models.RestockRequest, error)
	List(ctx context.Context, params listParams) ([]models.RestockRequest, *pagination.Cursor, error)
	MarkFulfilled(ctx context.Context, params fulfillParams) (bool, error)
	MarkCancelled(ctx context.Context, params cancelParams) (bool, error)
	CountExpiredOpen(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a restock request repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listParams struct {
	Filter      enums.RestockStatusFilter
	InventoryID *uuid.UUID
	Now         time.Time
	Limit       int
	Scope       string
	Cursor      *pagination.Cursor
}

type fulfillParams struct {
	ID          uuid.UUID
	CodeHash    string
	FulfilledBy *uuid.UUID
	Now         time.Time
}

type cancelParams struct {
	ID          uuid.UUID
	CancelledBy *uuid.UUID
	Reason      *string
	Now         time.Time
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, request *models.RestockRequest) error {
	return r.db.WithContext(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.RestockRequest, error) {
	var request models.RestockRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindByCodeHash(ctx context.Context, hash string) (*models.RestockRequest, error) {
	var request models.RestockRequest
	if err := r.db.WithContext(ctx).Where("code_hash = ?", hash).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.RestockRequest, *pagination.Cursor, error) {
	query := applyStatusFilter(r.db.WithContext(ctx).Model(&models.RestockRequest{}), params.Filter, params.Now)
	if params.InventoryID != nil {
		query = query.Where("inventory_id = ?", *params.InventoryID)
	}

	var requests []models.RestockRequest
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&requests).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(requests, params.Limit, params.Scope, func(r models.RestockRequest) (time.Time, uuid.UUID) {
		return r.CreatedAt, r.ID
	})
	return page, next, nil
}

// applyStatusFilter expresses the derived lifecycle in SQL. It must agree with
// models.RestockRequest.StatusAt.
func applyStatusFilter(query *gorm.DB, filter enums.RestockStatusFilter, now time.Time) *gorm.DB {
	switch filter {
	case enums.RestockFilterPending:
		return query.Where("fulfilled_at IS NULL AND cancelled_at IS NULL AND expires_at > ?", now)
	case enums.RestockFilterExpired:
		return query.Where("fulfilled_at IS NULL AND cancelled_at IS NULL AND expires_at <= ?", now)
	case enums.RestockFilterFulfilled:
		return query.Where("fulfilled_at IS NOT NULL")
	case enums.RestockFilterCancelled:
		return query.Where("cancelled_at IS NOT NULL")
	default:
		return query
	}
}

// MarkFulfilled sets the fulfilled fields only if the request is still open and unexpired
// and its stored hash matches. It reports whether this caller won the transition.
func (r *repository) MarkFulfilled(ctx context.Context, params fulfillParams) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RestockRequest{}).
		Where("id = ? AND code_hash = ? AND fulfilled_at IS NULL AND cancelled_at IS NULL AND expires_at > ?",
			params.ID, params.CodeHash, params.Now).
		Updates(map[string]any{
			"fulfilled_at": params.Now,
			"fulfilled_by": params.FulfilledBy,
			"updated_at":   params.Now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkCancelled applies the same open-and-unexpired guard as MarkFulfilled.
func (r *repository) MarkCancelled(ctx context.Context, params cancelParams) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.RestockRequest{}).
		Where("id = ? AND fulfilled_at IS NULL AND cancelled_at IS NULL AND expires_at > ?", params.ID, params.Now).
		Updates(map[string]any{
			"cancelled_at":     params.Now,
			"cancelled_by":     params.CancelledBy,
			"cancelled_reason": params.Reason,
			"updated_at":       params.Now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CountExpiredOpen(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := applyStatusFilter(r.db.WithContext(ctx).Model(&models.RestockRequest{}), enums.RestockFilterExpired, now).
		Count(&count).Error
	return count, err
}
