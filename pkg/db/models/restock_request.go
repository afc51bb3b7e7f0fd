package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

// RestockRequest is an outstanding ask to a supplier, redeemable once with a one-time code.
// At most one of FulfilledAt and CancelledAt is ever set.
type RestockRequest struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	InventoryID     uuid.UUID            `gorm:"column:inventory_id;type:uuid;not null;index"`
	ProductID       uuid.UUID            `gorm:"column:product_id;type:uuid;not null"`
	Requested       types.SizeQuantities `gorm:"embedded;embeddedPrefix:requested_"`
	SupplierName    *string              `gorm:"column:supplier_name"`
	SupplierEmail   string               `gorm:"column:supplier_email;not null"`
	Note            *string              `gorm:"column:note"`
	CodeHash        string               `gorm:"column:code_hash;not null;uniqueIndex" json:"-"`
	CodeEncrypted   *string              `gorm:"column:code_encrypted" json:"-"`
	CodeHint        string               `gorm:"column:code_hint;not null"`
	ExpiresAt       time.Time            `gorm:"column:expires_at;not null"`
	FulfilledAt     *time.Time           `gorm:"column:fulfilled_at"`
	FulfilledBy     *uuid.UUID           `gorm:"column:fulfilled_by;type:uuid"`
	CancelledAt     *time.Time           `gorm:"column:cancelled_at"`
	CancelledBy     *uuid.UUID           `gorm:"column:cancelled_by;type:uuid"`
	CancelledReason *string              `gorm:"column:cancelled_reason"`
	CreatedBy       *uuid.UUID           `gorm:"column:created_by;type:uuid"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *RestockRequest) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// StatusAt derives the lifecycle state at now. Expiry uses the same comparison as the
// fulfill and cancel guards: the request is open only while now is strictly before ExpiresAt.
func (r RestockRequest) StatusAt(now time.Time) enums.RestockStatus {
	switch {
	case r.FulfilledAt != nil:
		return enums.RestockStatusFulfilled
	case r.CancelledAt != nil:
		return enums.RestockStatusCancelled
	case !now.Before(r.ExpiresAt):
		return enums.RestockStatusExpired
	default:
		return enums.RestockStatusPending
	}
}
