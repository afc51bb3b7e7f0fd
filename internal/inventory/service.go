package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/internal/audit"
	"github.com/angelmondragon/storefront-backoffice/pkg/db"
	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

const maxVersionRetries = 3

// SignPolicy selects which deltas a mutation accepts.
type SignPolicy int

const (
	// PolicyRestock accepts only non-negative components.
	PolicyRestock SignPolicy = iota
	// PolicyAdjust accepts any sign but requires a reason.
	PolicyAdjust
)

func (p SignPolicy) action() enums.AuditAction {
	if p == PolicyAdjust {
		return enums.AuditActionAdjust
	}
	return enums.AuditActionRestock
}

// Service is the stock ledger: every accepted mutation keeps all sizes non-negative and
// is paired with exactly one audit entry in the same transaction.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.InventoryItem, error)
	Get(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	GetByProduct(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error)
	Adjust(ctx context.Context, input AdjustInput) (*MutationResult, error)
	ApplyTx(ctx context.Context, tx *gorm.DB, input MutationInput) (*MutationResult, error)
	GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.InventoryItem, error)
	UpdateSupplierTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, name, email *string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ProductLookup confirms a catalog product exists before an inventory row is created.
type ProductLookup interface {
	Exists(ctx context.Context, productID uuid.UUID) (bool, error)
}

type CreateInput struct {
	ProductID     uuid.UUID
	SupplierName  *string
	SupplierEmail *string
}

// AdjustInput is a manual correction by an admin.
type AdjustInput struct {
	InventoryID uuid.UUID
	Delta       types.SizeQuantities
	Reason      string
	Actor       audit.Actor
}

// MutationInput is the ledger's single entry point for stock changes.
type MutationInput struct {
	InventoryID      uuid.UUID
	Delta            types.SizeQuantities
	Policy           SignPolicy
	Reason           string
	RestockRequestID *uuid.UUID
	SupplierName     *string
	SupplierEmail    *string
	Actor            audit.Actor
}

type MutationResult struct {
	Item  *models.InventoryItem
	Entry *models.InventoryAuditEntry
}

type service struct {
	repo     Repository
	audit    audit.Service
	tx       txRunner
	products ProductLookup
	logg     *logger.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService wires the stock ledger.
func NewService(repo Repository, auditSvc audit.Service, tx txRunner, products ProductLookup, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     repo,
		audit:    auditSvc,
		tx:       tx,
		products: products,
		logg:     logg,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.InventoryItem, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	name := trimmedOrNil(input.SupplierName)
	email, err := s.normalizeEmail(input.SupplierEmail)
	if err != nil {
		return nil, err
	}

	if s.products != nil {
		exists, err := s.products.Exists(ctx, input.ProductID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup product")
		}
		if !exists {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
	}

	item := &models.InventoryItem{
		ProductID:     input.ProductID,
		SupplierName:  name,
		SupplierEmail: email,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "inventory item already exists for product")
		}
		return nil, pkgerrors.WrapStore(err, "create inventory item")
	}
	return item, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	return s.GetTx(ctx, nil, id)
}

func (s *service) GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.InventoryItem, error) {
	item, err := s.repo.WithTx(tx).FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return item, nil
}

func (s *service) GetByProduct(ctx context.Context, productID uuid.UUID) (*models.InventoryItem, error) {
	item, err := s.repo.FindByProductID(ctx, productID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return item, nil
}

func (s *service) Adjust(ctx context.Context, input AdjustInput) (*MutationResult, error) {
	var result *MutationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.ApplyTx(ctx, tx, MutationInput{
			InventoryID: input.InventoryID,
			Delta:       input.Delta,
			Policy:      PolicyAdjust,
			Reason:      input.Reason,
			Actor:       input.Actor,
		})
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"inventory_id": input.InventoryID.String(),
			"delta":        input.Delta.String(),
		})
		s.logg.Info(logCtx, "inventory adjusted")
	}
	return result, nil
}

// ApplyTx applies input inside tx. The caller owns commit and rollback.
func (s *service) ApplyTx(ctx context.Context, tx *gorm.DB, input MutationInput) (*MutationResult, error) {
	if err := checkPolicy(input); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	auditSvc := s.audit.WithTx(tx)

	for attempt := 0; attempt < maxVersionRetries; attempt++ {
		item, err := repo.FindByID(ctx, input.InventoryID)
		if err != nil {
			return nil, mapLookupError(err)
		}

		before := item.Stock
		after := before.Add(input.Delta)
		if over := after.OutOfRangeSizes(); len(over) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("stock cannot exceed %d per size", types.MaxQuantity)).
				WithDetails(map[string]any{
					"out_of_range_sizes": over,
					"before":             before,
					"delta":              input.Delta,
				})
		}
		if negative := after.NegativeSizes(); len(negative) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeInvariant, "stock cannot go negative").WithDetails(map[string]any{
				"negative_sizes": negative,
				"before":         before,
				"delta":          input.Delta,
			})
		}

		now := s.now()
		var restockedAt *time.Time
		if input.Policy == PolicyRestock {
			restockedAt = &now
		}
		applied, err := repo.ApplyStock(ctx, applyStockParams{
			ID:              item.ID,
			ExpectedVersion: item.Version,
			Delta:           input.Delta,
			RestockedAt:     restockedAt,
			Now:             now,
		})
		if err != nil {
			return nil, pkgerrors.WrapStore(err, "apply stock delta")
		}
		if !applied {
			continue
		}

		supplierName, supplierEmail := input.SupplierName, input.SupplierEmail
		if supplierName == nil {
			supplierName = item.SupplierName
		}
		if supplierEmail == nil {
			supplierEmail = item.SupplierEmail
		}
		entry, err := auditSvc.Append(ctx, audit.AppendInput{
			InventoryID:      item.ID,
			ProductID:        item.ProductID,
			RestockRequestID: input.RestockRequestID,
			Action:           input.Policy.action(),
			Delta:            input.Delta,
			Before:           before,
			After:            after,
			Reason:           input.Reason,
			SupplierName:     supplierName,
			SupplierEmail:    supplierEmail,
			PerformedBy:      input.Actor,
		})
		if err != nil {
			return nil, err
		}

		item.Stock = after
		item.Version++
		item.UpdatedAt = now
		if restockedAt != nil {
			item.LastRestockedAt = restockedAt
		}
		return &MutationResult{Item: item, Entry: entry}, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "inventory item changed concurrently; retry")
}

func (s *service) UpdateSupplierTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, name, email *string) error {
	name = trimmedOrNil(name)
	normalized, err := s.normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := s.repo.WithTx(tx).UpdateSupplier(ctx, id, name, normalized, s.now()); err != nil {
		return mapLookupError(err)
	}
	return nil
}

func checkPolicy(input MutationInput) error {
	if input.InventoryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "inventory id is required")
	}
	if input.Delta.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "delta must change at least one size")
	}
	if over := input.Delta.OutOfRangeSizes(); len(over) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("delta must be at most %d in magnitude per size", types.MaxQuantity)).
			WithDetails(map[string]any{"out_of_range_sizes": over})
	}
	switch input.Policy {
	case PolicyRestock:
		if input.Delta.HasNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "restock quantities must be non-negative").
				WithDetails(map[string]any{"negative_sizes": input.Delta.NegativeSizes()})
		}
	case PolicyAdjust:
		if strings.TrimSpace(input.Reason) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "reason is required for adjustments")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown sign policy")
	}
	return nil
}

func (s *service) normalizeEmail(email *string) (*string, error) {
	trimmed := trimmedOrNil(email)
	if trimmed == nil {
		return nil, nil
	}
	lowered := strings.ToLower(*trimmed)
	if err := s.validate.Var(lowered, "email"); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier email is invalid")
	}
	return &lowered, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "inventory item not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load inventory item")
}
