// Package auth decides whether an authenticated caller may perform an action.
package auth

import (
	"slices"

	"github.com/saeid-a/SoccerCoachBack/internal/apperr"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
)

const (
	MessageAuthenticationRequired = "Authentication required"
	MessageInsufficientPermission = "Insufficient permissions"
)

// Identity is the verified caller, derived from an access token.
type Identity struct {
	UserID int64
	Email  string
	Role   models.Role
}

// Is reports whether the caller holds role. A nil identity holds none.
func (i *Identity) Is(role models.Role) bool {
	return i != nil && i.Role == role
}

// Authorize requires an identity and, when roles are given, one of them.
func Authorize(identity *Identity, allowed ...models.Role) error {
	if identity == nil {
		return apperr.Authentication(MessageAuthenticationRequired)
	}
	if len(allowed) > 0 && !slices.Contains(allowed, identity.Role) {
		return apperr.Authorization(MessageInsufficientPermission)
	}
	return nil
}

// CanAccessOwned allows the owner of a resource and any privileged role.
func CanAccessOwned(identity *Identity, ownerID int64, privileged ...models.Role) error {
	if identity == nil {
		return apperr.Authentication(MessageAuthenticationRequired)
	}
	if identity.UserID == ownerID || slices.Contains(privileged, identity.Role) {
		return nil
	}
	return apperr.Authorization(MessageInsufficientPermission)
}
