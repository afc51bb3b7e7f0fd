package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

// InventoryItem tracks per-size stock for a product. Every stock column is non-negative;
// Version increments on each stock mutation.
type InventoryItem struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ProductID       uuid.UUID            `gorm:"column:product_id;type:uuid;not null;uniqueIndex"`
	Stock           types.SizeQuantities `gorm:"embedded;embeddedPrefix:stock_"`
	SupplierName    *string              `gorm:"column:supplier_name"`
	SupplierEmail   *string              `gorm:"column:supplier_email"`
	LastRestockedAt *time.Time           `gorm:"column:last_restocked_at"`
	Version         int64                `gorm:"column:version;not null;default:0"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *InventoryItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
