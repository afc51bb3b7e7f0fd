package restock

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

// RequestDTO is the outward shape of a restock request. It never carries the code,
// its hash or its ciphertext.
type RequestDTO struct {
	ID              uuid.UUID            `json:"id"`
	InventoryID     uuid.UUID            `json:"inventory_id"`
	ProductID       uuid.UUID            `json:"product_id"`
	Requested       types.SizeQuantities `json:"requested"`
	SupplierName    *string              `json:"supplier_name,omitempty"`
	SupplierEmail   string               `json:"supplier_email"`
	Note            *string              `json:"note,omitempty"`
	CodeHint        string               `json:"code_hint"`
	ExpiresAt       time.Time            `json:"expires_at"`
	Status          enums.RestockStatus  `json:"status"`
	FulfilledAt     *time.Time           `json:"fulfilled_at,omitempty"`
	FulfilledBy     *uuid.UUID           `json:"fulfilled_by,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	CancelledBy     *uuid.UUID           `json:"cancelled_by,omitempty"`
	CancelledReason *string              `json:"cancelled_reason,omitempty"`
	CreatedBy       *uuid.UUID           `json:"created_by,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// NewRequestDTO maps a stored request, deriving its status at now.
func NewRequestDTO(request models.RestockRequest, now time.Time) RequestDTO {
	return RequestDTO{
		ID:              request.ID,
		InventoryID:     request.InventoryID,
		ProductID:       request.ProductID,
		Requested:       request.Requested,
		SupplierName:    request.SupplierName,
		SupplierEmail:   request.SupplierEmail,
		Note:            request.Note,
		CodeHint:        request.CodeHint,
		ExpiresAt:       request.ExpiresAt,
		Status:          request.StatusAt(now),
		FulfilledAt:     request.FulfilledAt,
		FulfilledBy:     request.FulfilledBy,
		CancelledAt:     request.CancelledAt,
		CancelledBy:     request.CancelledBy,
		CancelledReason: request.CancelledReason,
		CreatedBy:       request.CreatedBy,
		CreatedAt:       request.CreatedAt,
	}
}

// Notification reports the outcome of a best-effort supplier email. It is auxiliary to
// the state transition that triggered it.
type Notification struct {
	Sent      bool    `json:"sent"`
	MessageID *string `json:"message_id,omitempty"`
	Error     *string `json:"error,omitempty"`
}

// CreateResult is returned by Service.Create.
type CreateResult struct {
	Request      RequestDTO   `json:"request"`
	Notification Notification `json:"notification"`
}

// CancelResult is returned by Service.Cancel.
type CancelResult struct {
	Request      RequestDTO   `json:"request"`
	Notification Notification `json:"notification"`
}

// FulfillResult is returned by Service.Fulfill and Service.Scan.
type FulfillResult struct {
	Request      RequestDTO           `json:"request"`
	InventoryID  uuid.UUID            `json:"inventory_id"`
	Stock        types.SizeQuantities `json:"stock"`
	AuditEntryID uuid.UUID            `json:"audit_entry_id"`
	Notification Notification         `json:"notification"`
}

// ListResult is one page of restock requests.
type ListResult struct {
	Requests   []RequestDTO `json:"requests"`
	NextCursor string       `json:"next_cursor,omitempty"`
}
