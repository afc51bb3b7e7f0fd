package restock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/internal/audit"
	"github.com/angelmondragon/storefront-backoffice/internal/inventory"
	"github.com/angelmondragon/storefront-backoffice/pkg/db"
	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/mailer"
	"github.com/angelmondragon/storefront-backoffice/pkg/metrics"
	"github.com/angelmondragon/storefront-backoffice/pkg/pagination"
	"github.com/angelmondragon/storefront-backoffice/pkg/security"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

const (
	defaultCodeTTL = 7 * 24 * time.Hour
	maxNoteLength  = 1000
	maxCodeRetries = 3
)

// Reasons a redemption was refused. They are logged and counted, never returned.
const (
	rejectEmpty         = "empty_code"
	rejectUnknown       = "unknown_code"
	rejectEmailMismatch = "email_mismatch"
	rejectFulfilled     = "already_fulfilled"
	rejectCancelled     = "cancelled"
	rejectExpired       = "expired"
	rejectLostRace      = "concurrent_redemption"
)

// Service is the restock request state machine.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*CreateResult, error)
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Cancel(ctx context.Context, input CancelInput) (*CancelResult, error)
	Fulfill(ctx context.Context, input FulfillInput) (*FulfillResult, error)
	Scan(ctx context.Context, input ScanInput) (*FulfillResult, error)
	CountExpiredOpen(ctx context.Context) (int64, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockLedger is the part of the inventory service the state machine drives.
type StockLedger interface {
	GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.InventoryItem, error)
	UpdateSupplierTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, name, email *string) error
	ApplyTx(ctx context.Context, tx *gorm.DB, input inventory.MutationInput) (*inventory.MutationResult, error)
}

type CreateInput struct {
	InventoryID   uuid.UUID
	Requested     types.SizeQuantities
	SupplierName  *string
	SupplierEmail *string
	Note          *string
	Actor         audit.Actor
}

type ListInput struct {
	Status      enums.RestockStatusFilter
	InventoryID *uuid.UUID
	Limit       int
	Cursor      string
}

type CancelInput struct {
	RequestID uuid.UUID
	Reason    *string
	Actor     audit.Actor
}

// FulfillInput is a supplier redemption. CallerEmail must match the request's supplier.
type FulfillInput struct {
	Code        string
	CallerEmail string
	Actor       audit.Actor
}

// ScanInput is a redemption from an admin device; it skips the ownership check.
type ScanInput struct {
	Code  string
	Actor audit.Actor
}

// ServiceParams names the dependencies of the restock service.
type ServiceParams struct {
	Repo       Repository
	Inventory  StockLedger
	Tx         txRunner
	Cipher     *security.CodeCipher
	Mailer     mailer.Dispatcher
	Products   ProductNamer
	Metrics    *metrics.RestockMetrics
	Logger     *logger.Logger
	CodeTTL    time.Duration
	CodeLength int
}

type service struct {
	repo       Repository
	inventory  StockLedger
	tx         txRunner
	cipher     *security.CodeCipher
	notify     *notifier
	metrics    *metrics.RestockMetrics
	logg       *logger.Logger
	validate   *validator.Validate
	codeTTL    time.Duration
	codeLength int
	newCode    func(length int) (string, error)
	now        func() time.Time
}

// NewService wires the restock state machine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("restock repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	ttl := params.CodeTTL
	if ttl <= 0 {
		ttl = defaultCodeTTL
	}
	length := params.CodeLength
	if length <= 0 {
		length = security.DefaultRestockCodeLength
	}
	return &service{
		repo:      params.Repo,
		inventory: params.Inventory,
		tx:        params.Tx,
		cipher:    params.Cipher,
		notify: &notifier{
			mailer:   params.Mailer,
			products: params.Products,
			metrics:  params.Metrics,
			logg:     params.Logger,
		},
		metrics:    params.Metrics,
		logg:       params.Logger,
		validate:   validator.New(),
		codeTTL:    ttl,
		codeLength: length,
		newCode:    security.GenerateRestockCode,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*CreateResult, error) {
	if input.InventoryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "inventory id is required")
	}
	if input.Requested.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested quantities must include at least one size")
	}
	if input.Requested.HasNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested quantities must be non-negative").
			WithDetails(map[string]any{"negative_sizes": input.Requested.NegativeSizes()})
	}
	if over := input.Requested.OutOfRangeSizes(); len(over) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("requested quantities must be at most %d per size", types.MaxQuantity)).
			WithDetails(map[string]any{"out_of_range_sizes": over})
	}
	supplierName := trimmedOrNil(input.SupplierName)
	supplierEmail, err := s.normalizeEmail(input.SupplierEmail)
	if err != nil {
		return nil, err
	}
	note := trimmedOrNil(input.Note)
	if note != nil && utf8.RuneCountInString(*note) > maxNoteLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("note must be at most %d characters", maxNoteLength))
	}

	var (
		request *models.RestockRequest
		code    string
	)
	for attempt := 0; attempt < maxCodeRetries; attempt++ {
		code, err = s.newCode(s.codeLength)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate restock code")
		}
		request, err = s.createWithCode(ctx, input, supplierName, supplierEmail, note, code)
		if err == nil || !db.IsUniqueViolation(err, "") {
			break
		}
	}
	if err != nil {
		return nil, pkgerrors.WrapStore(err, "create restock request")
	}

	s.metrics.IncIssued()
	if s.logg != nil {
		logCtx := s.logg.WithRestockRequestID(ctx, request.ID.String())
		logCtx = s.logg.WithInventoryID(logCtx, request.InventoryID.String())
		s.logg.Info(logCtx, "restock request created")
	}

	notification := s.notify.requested(ctx, request, code)
	return &CreateResult{
		Request:      NewRequestDTO(*request, s.now()),
		Notification: notification,
	}, nil
}

func (s *service) createWithCode(ctx context.Context, input CreateInput, supplierName, supplierEmail, note *string, code string) (*models.RestockRequest, error) {
	var encrypted *string
	if s.cipher.Enabled() {
		token, err := s.cipher.Encrypt(code)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encrypt restock code")
		}
		encrypted = &token
	}

	var request *models.RestockRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		item, err := s.inventory.GetTx(ctx, tx, input.InventoryID)
		if err != nil {
			return err
		}

		if supplierName != nil || supplierEmail != nil {
			if err := s.inventory.UpdateSupplierTx(ctx, tx, item.ID, supplierName, supplierEmail); err != nil {
				return err
			}
		}
		if supplierName == nil {
			supplierName = item.SupplierName
		}
		if supplierEmail == nil {
			supplierEmail = item.SupplierEmail
		}
		if supplierEmail == nil || strings.TrimSpace(*supplierEmail) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "supplier email is required: none given and none on file")
		}

		now := s.now()
		request = &models.RestockRequest{
			InventoryID:   item.ID,
			ProductID:     item.ProductID,
			Requested:     input.Requested,
			SupplierName:  supplierName,
			SupplierEmail: strings.ToLower(*supplierEmail),
			Note:          note,
			CodeHash:      security.HashRestockCode(code),
			CodeEncrypted: encrypted,
			CodeHint:      security.RestockCodeHint(code),
			ExpiresAt:     now.Add(s.codeTTL),
			CreatedBy:     input.Actor.UserID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		return s.repo.WithTx(tx).Create(ctx, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	filter := input.Status
	if filter == "" {
		filter = enums.RestockFilterPending
	}
	if !filter.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", filter))
	}
	page := pagination.Params{Limit: input.Limit, Cursor: input.Cursor}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	scope := listScope(filter, input.InventoryID)
	cursor, err := pagination.ParseCursor(page.Cursor, scope)
	if err != nil {
		return nil, err
	}

	now := s.now()
	requests, next, err := s.repo.List(ctx, listParams{
		Filter:      filter,
		InventoryID: input.InventoryID,
		Now:         now,
		Limit:       page.Limit,
		Scope:       scope,
		Cursor:      cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list restock requests")
	}

	result := &ListResult{
		Requests:   make([]RequestDTO, 0, len(requests)),
		NextCursor: pagination.NextToken(next),
	}
	for _, request := range requests {
		result.Requests = append(result.Requests, NewRequestDTO(request, now))
	}
	return result, nil
}

// listScope ties a cursor to the status filter and inventory it was minted for.
func listScope(filter enums.RestockStatusFilter, inventoryID *uuid.UUID) string {
	scope := "restock:" + string(filter)
	if inventoryID != nil {
		scope += ":" + inventoryID.String()
	}
	return scope
}

func (s *service) Cancel(ctx context.Context, input CancelInput) (*CancelResult, error) {
	if input.RequestID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request id is required")
	}
	reason := trimmedOrNil(input.Reason)

	request, err := s.repo.FindByID(ctx, input.RequestID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	now := s.now()
	if status := request.StatusAt(now); status != enums.RestockStatusPending {
		return nil, stateConflict(status)
	}

	cancelled, err := s.repo.MarkCancelled(ctx, cancelParams{
		ID:          request.ID,
		CancelledBy: input.Actor.UserID,
		Reason:      reason,
		Now:         now,
	})
	if err != nil {
		return nil, pkgerrors.WrapStore(err, "cancel restock request")
	}
	if !cancelled {
		// lost to a concurrent fulfill or cancel; report what won
		current, err := s.repo.FindByID(ctx, request.ID)
		if err != nil {
			return nil, mapLookupError(err)
		}
		return nil, stateConflict(current.StatusAt(s.now()))
	}

	request.CancelledAt = &now
	request.CancelledBy = input.Actor.UserID
	request.CancelledReason = reason
	request.UpdatedAt = now

	s.metrics.IncCancelled()
	if s.logg != nil {
		s.logg.Info(s.logg.WithRestockRequestID(ctx, request.ID.String()), "restock request cancelled")
	}

	notification := s.notify.cancelled(ctx, request, s.recoverCode(ctx, request))
	return &CancelResult{
		Request:      NewRequestDTO(*request, now),
		Notification: notification,
	}, nil
}

// recoverCode decrypts the stored code for the cancellation notice. Any failure
// degrades to an empty string so the notice falls back to the hint.
func (s *service) recoverCode(ctx context.Context, request *models.RestockRequest) string {
	if request.CodeEncrypted == nil || !s.cipher.Enabled() {
		return ""
	}
	code, err := s.cipher.Decrypt(*request.CodeEncrypted)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithRestockRequestID(ctx, request.ID.String()), fmt.Sprintf("restock code not recoverable: %v", err))
		}
		return ""
	}
	return code
}

func (s *service) Fulfill(ctx context.Context, input FulfillInput) (*FulfillResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.CallerEmail))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "caller email is required")
	}
	return s.redeem(ctx, input.Code, &email, input.Actor, metrics.ChannelSupplier)
}

func (s *service) Scan(ctx context.Context, input ScanInput) (*FulfillResult, error) {
	return s.redeem(ctx, input.Code, nil, input.Actor, metrics.ChannelScan)
}

func (s *service) redeem(ctx context.Context, rawCode string, callerEmail *string, actor audit.Actor, channel string) (*FulfillResult, error) {
	code := security.NormalizeRestockCode(rawCode)
	if code == "" {
		return nil, s.invalidCode(ctx, channel, rejectEmpty, nil)
	}
	hash := security.HashRestockCode(code)

	request, err := s.repo.FindByCodeHash(ctx, hash)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, s.invalidCode(ctx, channel, rejectUnknown, nil)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup restock request")
	}
	if callerEmail != nil && !strings.EqualFold(request.SupplierEmail, *callerEmail) {
		return nil, s.invalidCode(ctx, channel, rejectEmailMismatch, request)
	}
	switch request.StatusAt(s.now()) {
	case enums.RestockStatusFulfilled:
		return nil, s.invalidCode(ctx, channel, rejectFulfilled, request)
	case enums.RestockStatusCancelled:
		return nil, s.invalidCode(ctx, channel, rejectCancelled, request)
	case enums.RestockStatusExpired:
		return nil, s.invalidCode(ctx, channel, rejectExpired, request)
	}

	var (
		now      time.Time
		mutation *inventory.MutationResult
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now = s.now()
		won, err := s.repo.WithTx(tx).MarkFulfilled(ctx, fulfillParams{
			ID:          request.ID,
			CodeHash:    hash,
			FulfilledBy: actor.UserID,
			Now:         now,
		})
		if err != nil {
			return pkgerrors.WrapStore(err, "mark restock request fulfilled")
		}
		if !won {
			return s.invalidCode(ctx, channel, rejectLostRace, request)
		}

		mutation, err = s.inventory.ApplyTx(ctx, tx, inventory.MutationInput{
			InventoryID:      request.InventoryID,
			Delta:            request.Requested,
			Policy:           inventory.PolicyRestock,
			Reason:           fmt.Sprintf("restock request %s", request.ID),
			RestockRequestID: &request.ID,
			SupplierName:     request.SupplierName,
			SupplierEmail:    &request.SupplierEmail,
			Actor:            actor,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	request.FulfilledAt = &now
	request.FulfilledBy = actor.UserID
	request.UpdatedAt = now

	s.metrics.IncFulfilled(channel)
	if s.logg != nil {
		logCtx := s.logg.WithRestockRequestID(ctx, request.ID.String())
		logCtx = s.logg.WithInventoryID(logCtx, request.InventoryID.String())
		logCtx = s.logg.WithField(logCtx, "channel", channel)
		s.logg.Info(logCtx, "restock request fulfilled")
	}

	notification := s.notify.received(ctx, request, now)
	return &FulfillResult{
		Request:      NewRequestDTO(*request, now),
		InventoryID:  mutation.Item.ID,
		Stock:        mutation.Item.Stock,
		AuditEntryID: mutation.Entry.ID,
		Notification: notification,
	}, nil
}

// invalidCode records why a redemption was refused and returns the generic error.
func (s *service) invalidCode(ctx context.Context, channel, reason string, request *models.RestockRequest) error {
	s.metrics.IncInvalidCode(channel, reason)
	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"channel": channel,
			"reason":  reason,
		})
		if request != nil {
			logCtx = s.logg.WithRestockRequestID(logCtx, request.ID.String())
		}
		s.logg.Warn(logCtx, "restock code rejected")
	}
	return pkgerrors.New(pkgerrors.CodeInvalidCode, "invalid code")
}

func (s *service) CountExpiredOpen(ctx context.Context) (int64, error) {
	count, err := s.repo.CountExpiredOpen(ctx, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count expired restock requests")
	}
	return count, nil
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

func stateConflict(status enums.RestockStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("restock request is %s", status)).
		WithDetails(map[string]any{"status": status})
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "restock request not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load restock request")
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
