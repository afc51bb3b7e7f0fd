package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

// Service appends and queries the inventory audit trail.
type Service interface {
	WithTx(tx *gorm.DB) Service
	Append(ctx context.Context, input AppendInput) (*models.InventoryAuditEntry, error)
	Query(ctx context.Context, input QueryInput) (*QueryResult, error)
}

// Actor identifies who performed a stock mutation.
type Actor struct {
	UserID *uuid.UUID
	Role   enums.ActorRole
}

// AppendInput describes one accepted stock mutation.
type AppendInput struct {
	InventoryID      uuid.UUID
	ProductID        uuid.UUID
	RestockRequestID *uuid.UUID
	Action           enums.AuditAction
	Delta            types.SizeQuantities
	Before           types.SizeQuantities
	After            types.SizeQuantities
	Reason           string
	SupplierName     *string
	SupplierEmail    *string
	PerformedBy      Actor
}

// QueryInput selects entries for exactly one inventory item or one product.
type QueryInput struct {
	InventoryID *uuid.UUID
	ProductID   *uuid.UUID
	Limit       int
	Cursor      string
}

type QueryResult struct {
	Entries    []models.InventoryAuditEntry
	NextCursor string
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires an audit service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) WithTx(tx *gorm.DB) Service {
	return &service{repo: s.repo.WithTx(tx), now: s.now}
}

func (s *service) Append(ctx context.Context, input AppendInput) (*models.InventoryAuditEntry, error) {
	entry, err := buildEntry(input)
	if err != nil {
		return nil, err
	}
	entry.CreatedAt = s.now()
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, pkgerrors.WrapStore(err, "append audit entry")
	}
	return entry, nil
}

func buildEntry(input AppendInput) (*models.InventoryAuditEntry, error) {
	if input.InventoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !input.Action.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid audit action %q", input.Action))
	}
	if !input.PerformedBy.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid actor role %q", input.PerformedBy.Role))
	}
	reason := strings.TrimSpace(input.Reason)
	if input.Action == enums.AuditActionAdjust && reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reason is required for adjustments")
	}
	if input.Before.Add(input.Delta) != input.After {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "audit snapshot does not match delta")
	}
	if input.After.HasNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeInvariant, "audit snapshot contains negative stock")
	}

	entry := &models.InventoryAuditEntry{
		InventoryID:       input.InventoryID,
		ProductID:         input.ProductID,
		RestockRequestID:  input.RestockRequestID,
		Action:            input.Action,
		Delta:             input.Delta,
		Before:            input.Before,
		After:             input.After,
		SupplierName:      input.SupplierName,
		SupplierEmail:     input.SupplierEmail,
		PerformedByUserID: input.PerformedBy.UserID,
		PerformedByRole:   input.PerformedBy.Role,
	}
	if reason != "" {
		entry.Reason = &reason
	}
	return entry, nil
}

func (s *service) Query(ctx context.Context, input QueryInput) (*QueryResult, error) {
	if (input.InventoryID == nil) == (input.ProductID == nil) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "exactly one of inventory id or product id is required")
	}
	page := pagination.Params{Limit: input.Limit, Cursor: input.Cursor}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	scope := queryScope(input)
	cursor, err := pagination.ParseCursor(page.Cursor, scope)
	if err != nil {
		return nil, err
	}

	entries, next, err := s.repo.List(ctx, listParams{
		InventoryID: input.InventoryID,
		ProductID:   input.ProductID,
		Limit:       page.Limit,
		Scope:       scope,
		Cursor:      cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list audit entries")
	}
	return &QueryResult{Entries: entries, NextCursor: pagination.NextToken(next)}, nil
}

func queryScope(input QueryInput) string {
	if input.InventoryID != nil {
		return "audit:inventory:" + input.InventoryID.String()
	}
	return "audit:product:" + input.ProductID.String()
}
