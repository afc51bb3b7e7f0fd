package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/internal/audit"
	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

type ItemDTO struct {
	ID              uuid.UUID            `json:"id"`
	ProductID       uuid.UUID            `json:"product_id"`
	Stock           types.SizeQuantities `json:"stock"`
	SupplierName    *string              `json:"supplier_name,omitempty"`
	SupplierEmail   *string              `json:"supplier_email,omitempty"`
	LastRestockedAt *time.Time           `json:"last_restocked_at,omitempty"`
	Version         int64                `json:"version"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// MutationDTO pairs the new stock with the audit entry that recorded it.
type MutationDTO struct {
	Item       ItemDTO        `json:"item"`
	AuditEntry audit.EntryDTO `json:"audit_entry"`
}

func NewItemDTO(item models.InventoryItem) ItemDTO {
	return ItemDTO{
		ID:              item.ID,
		ProductID:       item.ProductID,
		Stock:           item.Stock,
		SupplierName:    item.SupplierName,
		SupplierEmail:   item.SupplierEmail,
		LastRestockedAt: item.LastRestockedAt,
		Version:         item.Version,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}

func NewMutationDTO(result *MutationResult) MutationDTO {
	var dto MutationDTO
	if result == nil {
		return dto
	}
	if result.Item != nil {
		dto.Item = NewItemDTO(*result.Item)
	}
	if result.Entry != nil {
		dto.AuditEntry = audit.NewEntryDTO(*result.Entry)
	}
	return dto
}
