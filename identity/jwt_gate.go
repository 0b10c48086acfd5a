package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/models"
	"github.com/cppla/hongbao/utils"
)

// Registration is the input of Register.
type Registration struct {
	Username string `validate:"required,min=3,max=32"`
	Email    string `validate:"required,email,max=255"`
	// bcrypt ignores bytes past 72
	Password string `validate:"required,min=6,max=72"`
}

// JWTGate manages accounts and stateless bearer tokens.
type JWTGate struct {
	users     Users
	signer    *utils.TokenSigner
	hasher    Hasher
	blacklist *utils.Blacklist
	validate  *validator.Validate
}

var _ Gate = (*JWTGate)(nil)

// NewJWTGate wires the gate. blacklist may be nil to disable logout revocation.
func NewJWTGate(users Users, signer *utils.TokenSigner, hasher Hasher, blacklist *utils.Blacklist) *JWTGate {
	return &JWTGate{
		users:     users,
		signer:    signer,
		hasher:    hasher,
		blacklist: blacklist,
		validate:  validator.New(),
	}
}

func (g *JWTGate) RequiresCredential() bool { return true }

// Register creates an account and returns its id.
func (g *JWTGate) Register(ctx context.Context, in Registration) (uint, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := g.validate.Struct(in); err != nil {
		return 0, registrationError(err)
	}

	hash, err := g.hasher.Hash(in.Password)
	if err != nil {
		return 0, apperr.Internal(fmt.Errorf("hash password: %w", err))
	}
	user := models.User{Username: in.Username, Email: in.Email, PasswordHash: hash}
	if err := g.users.Create(ctx, &user); err != nil {
		return 0, err
	}
	return user.ID, nil
}

func registrationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperr.Validation(apperr.CodeInvalidPayload, "invalid registration")
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return apperr.Validation(apperr.CodeInvalidField, field+" is required")
	case "email":
		return apperr.Validation(apperr.CodeInvalidField, "email is not valid")
	case "min":
		if field == "password" {
			return apperr.Validation(apperr.CodeInvalidField, "password must be at least 6 characters")
		}
		return apperr.Validation(apperr.CodeInvalidField, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
	case "max":
		return apperr.Validation(apperr.CodeInvalidField, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	default:
		return apperr.Validation(apperr.CodeInvalidField, field+" is not valid")
	}
}

// Authenticate checks the password and issues a token.
func (g *JWTGate) Authenticate(ctx context.Context, email, password string) (string, models.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return "", models.User{}, apperr.Validation(apperr.CodeInvalidField, "email and password are required")
	}
	user, err := g.users.ByEmail(ctx, email)
	if err != nil {
		return "", models.User{}, err
	}
	if !g.hasher.Verify(user.PasswordHash, password) {
		return "", models.User{}, apperr.ErrWrongPassword
	}
	token, _, err := g.signer.Sign(user.ID, user.Username, user.Email)
	if err != nil {
		return "", models.User{}, apperr.Internal(fmt.Errorf("sign token: %w", err))
	}
	return token, user, nil
}

// Resolve validates a bearer token. Expired, forged and revoked tokens all
// fail the same way.
func (g *JWTGate) Resolve(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, apperr.ErrMissingCredential
	}
	claims, err := g.signer.Parse(token)
	if err != nil {
		return Identity{}, apperr.ErrInvalidCredential.WithCause(err)
	}
	if g.blacklist != nil && g.blacklist.IsRevoked(ctx, token) {
		return Identity{}, apperr.ErrInvalidCredential
	}
	return Identity{UserID: claims.UserID, Username: claims.Username, Email: claims.Email, Token: token}, nil
}

// Logout revokes token until it would have expired.
func (g *JWTGate) Logout(ctx context.Context, token string) error {
	claims, err := g.signer.Parse(token)
	if err != nil {
		return apperr.ErrInvalidCredential.WithCause(err)
	}
	if g.blacklist == nil {
		return nil
	}
	expires := time.Now().Add(g.signer.TTL())
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	if err := g.blacklist.Revoke(ctx, token, expires); err != nil {
		return apperr.Internal(fmt.Errorf("revoke token: %w", err))
	}
	return nil
}

// Me returns the stored account of userID.
func (g *JWTGate) Me(ctx context.Context, userID uint) (models.User, error) {
	return g.users.ByID(ctx, userID)
}

// SetVisibility opts a user in or out of the leaderboard.
func (g *JWTGate) SetVisibility(ctx context.Context, userID uint, public bool) (models.User, error) {
	return g.users.SetVisibility(ctx, userID, public)
}
