package product

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backoffice/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
)

// Lookup resolves catalog products for inventory bootstrap and email copy.
type Lookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	DisplayName(ctx context.Context, id uuid.UUID) (string, error)
}

type productReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type lookup struct {
	repo productReader
}

// NewLookup wires the catalog lookup.
func NewLookup(repo productReader) (Lookup, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "product repository required")
	}
	return &lookup{repo: repo}, nil
}

func (l *lookup) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	return l.repo.Exists(ctx, id)
}

// DisplayName prefers the product title, then the SKU.
func (l *lookup) DisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	product, err := l.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if title := strings.TrimSpace(product.Title); title != "" {
		return title, nil
	}
	if sku := strings.TrimSpace(product.SKU); sku != "" {
		return sku, nil
	}
	return product.ID.String(), nil
}
