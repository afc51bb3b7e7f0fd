package controllers

import (
	"net/http"

	"github.com/angelmondragon/storefront-backoffice/api/responses"
	"github.com/angelmondragon/storefront-backoffice/api/validators"
	"github.com/angelmondragon/storefront-backoffice/internal/audit"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
	"github.com/angelmondragon/storefront-backoffice/pkg/logger"
)

// AdminInventoryAudit lists audit entries for one inventory item, newest first.
func AdminInventoryAudit(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inventoryID, err := uuidParam(r, "inventoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAuditPage(w, r, svc, logg, audit.QueryInput{InventoryID: &inventoryID})
	}
}

// AdminProductAudit lists audit entries for one product, newest first.
func AdminProductAudit(svc audit.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := uuidParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeAuditPage(w, r, svc, logg, audit.QueryInput{ProductID: &productID})
	}
}

func writeAuditPage(w http.ResponseWriter, r *http.Request, svc audit.Service, logg *logger.Logger, input audit.QueryInput) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
		return
	}

	page, err := validators.ParsePage(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	input.Limit = page.Limit
	input.Cursor = page.Cursor

	result, err := svc.Query(r.Context(), input)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, audit.NewPageDTO(result))
}
