package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backoffice/pkg/enums"
)

// ErrSystemActor rejects the role reserved for scheduled jobs, which never holds a token.
var ErrSystemActor = errors.New("system actor cannot authenticate over HTTP")

// AccessTokenPayload is what tooling and tests supply when minting a token.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims is the token an admin, device or supplier presents. Subject mirrors
// UserID.
type AccessTokenClaims struct {
	UserID uuid.UUID       `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

func checkActor(userID uuid.UUID, role enums.ActorRole) error {
	switch {
	case userID == uuid.Nil:
		return errors.New("token missing user id")
	case role == enums.ActorRoleSystem:
		return ErrSystemActor
	case !role.IsValid():
		return fmt.Errorf("invalid actor role %q", role)
	}
	return nil
}
