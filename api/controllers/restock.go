package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/api/middleware"
	"github.com/angelmondragon/storefront-backoffice/api/responses"
	"github.com/angelmondragon/storefront-backoffice/api/validators"
	"github.com/angelmondragon/storefront-backoffice/internal/restock"
	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

type createRestockRequest struct {
	InventoryID   string               `json:"inventory_id" validate:"required,uuid"`
	Requested     types.SizeQuantities `json:"requested" validate:"restock_quantities"`
	SupplierName  *string              `json:"supplier_name" validate:"omitempty,max=200"`
	SupplierEmail *string              `json:"supplier_email" validate:"omitempty,email"`
	Note          *string              `json:"note" validate:"omitempty,max=1000"`
}

type cancelRestockRequest struct {
	Reason *string `json:"reason"`
}

// redeemCodeRequest leaves code checks to the service so every refusal reads the same.
type redeemCodeRequest struct {
	Code string `json:"code"`
}

// AdminCreateRestockRequest issues a one-time code for a supplier and emails it.
func AdminCreateRestockRequest(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "restock service unavailable"))
			return
		}

		var req createRestockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inventoryID, err := uuid.Parse(req.InventoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid inventory_id"))
			return
		}

		input := restock.CreateInput{
			InventoryID:   inventoryID,
			Requested:     req.Requested,
			SupplierName:  validators.SanitizeOptional(req.SupplierName, validators.MaxSupplierNameLength),
			SupplierEmail: req.SupplierEmail,
			Note:          validators.SanitizeOptional(req.Note, validators.MaxNoteLength),
			Actor:         middleware.ActorFromContext(r.Context()),
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithInventoryID(ctx, inventoryID.String())
		}

		result, err := svc.Create(ctx, input)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// AdminListRestockRequests pages through requests by derived status, newest first.
func AdminListRestockRequests(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "restock service unavailable"))
			return
		}

		status, err := enums.ParseRestockStatusFilter(r.URL.Query().Get("status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
				WithDetails(map[string]any{"field": "status"}))
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		inventoryID, err := validators.ParseQueryUUID(r, "inventory_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := restock.ListInput{Status: status, InventoryID: inventoryID, Limit: page.Limit, Cursor: page.Cursor}
		result, err := svc.List(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminCancelRestockRequest(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "restock service unavailable"))
			return
		}

		requestID, err := uuidParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req cancelRestockRequest
		if hasBody(r) {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		req.Reason = validators.SanitizeOptional(req.Reason, validators.MaxReasonLength)

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithRestockRequestID(ctx, requestID.String())
		}

		result, err := svc.Cancel(ctx, restock.CancelInput{
			RequestID: requestID,
			Reason:    req.Reason,
			Actor:     middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminScanRestockCode redeems a code presented at the receiving dock.
func AdminScanRestockCode(svc restock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "restock service unavailable"))
			return
		}

		var req redeemCodeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Scan(r.Context(), restock.ScanInput{
			Code:  req.Code,
			Actor: middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
