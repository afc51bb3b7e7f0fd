package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/api/middleware"
	"github.com/angelmondragon/storefront-backoffice/api/responses"
	"github.com/angelmondragon/storefront-backoffice/api/validators"
	"github.com/angelmondragon/storefront-backoffice/internal/inventory"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
	"github.com/angelmondragon/storefront-backoffice/pkg/types"
)

type createInventoryRequest struct {
	ProductID     string  `json:"product_id" validate:"required,uuid"`
	SupplierName  *string `json:"supplier_name" validate:"omitempty,max=200"`
	SupplierEmail *string `json:"supplier_email" validate:"omitempty,email"`
}

type adjustInventoryRequest struct {
	Delta  types.SizeQuantities `json:"delta" validate:"stock_delta"`
	Reason string               `json:"reason" validate:"required,max=500"`
}

// AdminCreateInventory registers stock tracking for a catalog product.
func AdminCreateInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		var req createInventoryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id"))
			return
		}

		input := inventory.CreateInput{
			ProductID:     productID,
			SupplierName:  validators.SanitizeOptional(req.SupplierName, validators.MaxSupplierNameLength),
			SupplierEmail: req.SupplierEmail,
		}

		item, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, inventory.NewItemDTO(*item))
	}
}

func AdminGetInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		inventoryID, err := uuidParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Get(r.Context(), inventoryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, inventory.NewItemDTO(*item))
	}
}

// AdminAdjustInventory applies a signed manual correction with a mandatory reason.
func AdminAdjustInventory(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}

		inventoryID, err := uuidParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adjustInventoryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithInventoryID(ctx, inventoryID.String())
		}

		result, err := svc.Adjust(ctx, inventory.AdjustInput{
			InventoryID: inventoryID,
			Delta:       req.Delta,
			Reason:      validators.SanitizeString(req.Reason, validators.MaxReasonLength),
			Actor:       middleware.ActorFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, inventory.NewMutationDTO(result))
	}
}
