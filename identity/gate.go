// Package identity resolves the acting owner of a request. JWTGate backs the
// multi-user profile with accounts and signed tokens; LocalGate backs the
// single-owner profiles and accepts everyone as the local owner.
package identity

import (
	"context"

	"github.com/cppla/hongbao/models"
)

// LocalOwnerID owns every record in the single and local profiles.
const LocalOwnerID uint = 0

// Identity is the resolved caller.
type Identity struct {
	UserID   uint
	Username string
	Email    string
	// Token is the raw credential, empty for the local gate.
	Token string
}

// Gate turns a credential into an Identity.
type Gate interface {
	Resolve(ctx context.Context, token string) (Identity, error)
	// RequiresCredential reports whether callers must present a bearer token.
	RequiresCredential() bool
}

// Users is the identity persistence the JWT gate needs.
type Users interface {
	Create(ctx context.Context, u *models.User) error
	ByEmail(ctx context.Context, email string) (models.User, error)
	ByID(ctx context.Context, id uint) (models.User, error)
	SetVisibility(ctx context.Context, id uint, public bool) (models.User, error)
}

// Hasher is the password digest capability.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// LocalGate resolves every request to the local owner.
type LocalGate struct{}

func (LocalGate) Resolve(context.Context, string) (Identity, error) {
	return Identity{UserID: LocalOwnerID, Username: "local"}, nil
}

func (LocalGate) RequiresCredential() bool { return false }
