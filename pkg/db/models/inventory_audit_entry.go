package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

// ErrAuditEntryImmutable is returned when gorm is asked to modify a stored audit entry.
var ErrAuditEntryImmutable = errors.New("inventory audit entries are append-only")

// InventoryAuditEntry is a write-once record of a single stock mutation.
type InventoryAuditEntry struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	InventoryID       uuid.UUID            `gorm:"column:inventory_id;type:uuid;not null;index"`
	ProductID         uuid.UUID            `gorm:"column:product_id;type:uuid;not null;index"`
	RestockRequestID  *uuid.UUID           `gorm:"column:restock_request_id;type:uuid"`
	Action            enums.AuditAction    `gorm:"column:action;type:inventory_audit_action_enum;not null"`
	Delta             types.SizeQuantities `gorm:"embedded;embeddedPrefix:delta_"`
	Before            types.SizeQuantities `gorm:"embedded;embeddedPrefix:before_"`
	After             types.SizeQuantities `gorm:"embedded;embeddedPrefix:after_"`
	Reason            *string              `gorm:"column:reason"`
	SupplierName      *string              `gorm:"column:supplier_name"`
	SupplierEmail     *string              `gorm:"column:supplier_email"`
	PerformedByUserID *uuid.UUID           `gorm:"column:performed_by_user_id;type:uuid"`
	PerformedByRole   enums.ActorRole      `gorm:"column:performed_by_role;not null"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (InventoryAuditEntry) TableName() string {
	return "inventory_audit_entries"
}

func (e *InventoryAuditEntry) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

func (*InventoryAuditEntry) BeforeUpdate(*gorm.DB) error {
	return ErrAuditEntryImmutable
}

func (*InventoryAuditEntry) BeforeDelete(*gorm.DB) error {
	return ErrAuditEntryImmutable
}
