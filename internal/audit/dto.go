package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

type PerformedByDTO struct {
	UserID *uuid.UUID      `json:"user_id,omitempty"`
	Role   enums.ActorRole `json:"role"`
}

type EntryDTO struct {
	ID               uuid.UUID            `json:"id"`
	InventoryID      uuid.UUID            `json:"inventory_id"`
	ProductID        uuid.UUID            `json:"product_id"`
	RestockRequestID *uuid.UUID           `json:"restock_request_id,omitempty"`
	Action           enums.AuditAction    `json:"action"`
	Delta            types.SizeQuantities `json:"delta"`
	Before           types.SizeQuantities `json:"before"`
	After            types.SizeQuantities `json:"after"`
	Reason           *string              `json:"reason,omitempty"`
	SupplierName     *string              `json:"supplier_name,omitempty"`
	SupplierEmail    *string              `json:"supplier_email,omitempty"`
	PerformedBy      PerformedByDTO       `json:"performed_by"`
	CreatedAt        time.Time            `json:"created_at"`
}

type PageDTO struct {
	Entries    []EntryDTO `json:"entries"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func NewEntryDTO(entry models.InventoryAuditEntry) EntryDTO {
	return EntryDTO{
		ID:               entry.ID,
		InventoryID:      entry.InventoryID,
		ProductID:        entry.ProductID,
		RestockRequestID: entry.RestockRequestID,
		Action:           entry.Action,
		Delta:            entry.Delta,
		Before:           entry.Before,
		After:            entry.After,
		Reason:           entry.Reason,
		SupplierName:     entry.SupplierName,
		SupplierEmail:    entry.SupplierEmail,
		PerformedBy: PerformedByDTO{
			UserID: entry.PerformedByUserID,
			Role:   entry.PerformedByRole,
		},
		CreatedAt: entry.CreatedAt,
	}
}

// NewPageDTO maps a query result; a nil result yields an empty page.
func NewPageDTO(result *QueryResult) PageDTO {
	page := PageDTO{Entries: []EntryDTO{}}
	if result == nil {
		return page
	}
	for _, entry := range result.Entries {
		page.Entries = append(page.Entries, NewEntryDTO(entry))
	}
	page.NextCursor = result.NextCursor
	return page
}
