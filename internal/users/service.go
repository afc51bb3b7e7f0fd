package users

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/storefront-backoffice/pkg/errors"
)

// EmailLookup maps an authenticated caller to the email that scopes supplier redemptions.
type EmailLookup interface {
	EmailFor(ctx context.Context, userID uuid.UUID) (string, error)
}

type contactReader interface {
	FindContact(ctx context.Context, id uuid.UUID) (*Contact, error)
}

type emailLookup struct {
	repo contactReader
}

func NewEmailLookup(repo contactReader) (EmailLookup, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "users repository required")
	}
	return &emailLookup{repo: repo}, nil
}

// EmailFor returns the lower-cased email of an active user.
func (l *emailLookup) EmailFor(ctx context.Context, userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user")
	}
	user, err := l.repo.FindContact(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "user not found")
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "user is inactive")
	}
	email := strings.ToLower(strings.TrimSpace(user.Email))
	if email == "" {
		return "", pkgerrors.New(pkgerrors.CodeForbidden, "user has no email")
	}
	return email, nil
}
