package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

// Repository persists inventory items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.InventoryItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	FindByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error)
	ApplyStock(ctx context.Context, params applyStockParams) (bool, error)
	UpdateSupplier(ctx context.Context, id uuid.UUID, name, email *string, now time.Time) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

type applyStockParams struct {
	ID              uuid.UUID
	ExpectedVersion int64
	Delta           types.SizeQuantities
	RestockedAt     *time.Time
	Now             time.Time
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, item *models.InventoryItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindByProductID(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ApplyStock adds Delta to every stock column when the row still carries ExpectedVersion.
// It reports false when another writer bumped the version first. The non-negative guards
// mirror the table CHECK constraints so a stale caller can never drive a size below zero.
func (r *repository) ApplyStock(ctx context.Context, params applyStockParams) (bool, error) {
	updates := map[string]any{
		"stock_s":    gorm.Expr("stock_s + ?", params.Delta.S),
		"stock_m":    gorm.Expr("stock_m + ?", params.Delta.M),
		"stock_l":    gorm.Expr("stock_l + ?", params.Delta.L),
		"stock_xl":   gorm.Expr("stock_xl + ?", params.Delta.XL),
		"version":    gorm.Expr("version + 1"),
		"updated_at": params.Now,
	}
	if params.RestockedAt != nil {
		updates["last_restocked_at"] = *params.RestockedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ? AND version = ?", params.ID, params.ExpectedVersion).
		Where("stock_s + ? >= 0 AND stock_m + ? >= 0 AND stock_l + ? >= 0 AND stock_xl + ? >= 0",
			params.Delta.S, params.Delta.M, params.Delta.L, params.Delta.XL).
		UpdateColumns(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) UpdateSupplier(ctx context.Context, id uuid.UUID, name, email *string, now time.Time) error {
	updates := map[string]any{"updated_at": now}
	if name != nil {
		updates["supplier_name"] = *name
	}
	if email != nil {
		updates["supplier_email"] = *email
	}
	if len(updates) == 1 {
		return nil
	}
	result := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("id = ?", id).
		UpdateColumns(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
