package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
)

// Repository persists audit entries. It offers no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.InventoryAuditEntry) error
	List(ctx context.Context, params listParams) ([]models.InventoryAuditEntry, *pagination.Cursor, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type listParams struct {
	InventoryID *uuid.UUID
	ProductID   *uuid.UUID
	Limit       int
	Scope       string
	Cursor      *pagination.Cursor
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.InventoryAuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.InventoryAuditEntry, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.InventoryAuditEntry{})
	if params.InventoryID != nil {
		query = query.Where("inventory_id = ?", *params.InventoryID)
	}
	if params.ProductID != nil {
		query = query.Where("product_id = ?", *params.ProductID)
	}

	var entries []models.InventoryAuditEntry
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&entries).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(entries, params.Limit, params.Scope, func(e models.InventoryAuditEntry) (time.Time, uuid.UUID) {
		return e.CreatedAt, e.ID
	})
	return page, next, nil
}
