package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/hongbao/apperr"
	"github.com/cppla/hongbao/models"
)

// UserStore persists identities.
type UserStore struct {
	db *gorm.DB
}

// NewUserStore wraps an open gorm handle.
func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

// Create inserts u. Duplicate username or email is a conflict.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	db := s.db.WithContext(ctx)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))

	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", u.Username).Count(&count).Error; err != nil {
		return apperr.Internal(fmt.Errorf("check username: %w", err))
	}
	if count > 0 {
		return apperr.ErrUsernameTaken
	}
	if err := db.Model(&models.User{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
		return apperr.Internal(fmt.Errorf("check email: %w", err))
	}
	if count > 0 {
		return apperr.ErrEmailTaken
	}

	if err := db.Create(u).Error; err != nil {
		// lost a race against a concurrent register
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return duplicateUserErr(db, u.Email, err)
		}
		return apperr.Internal(fmt.Errorf("create user: %w", err))
	}
	return nil
}

// duplicateUserErr names the unique column a failed insert collided with. Only
// email is re-checked; any other collision is reported as the username.
func duplicateUserErr(db *gorm.DB, email string, cause error) error {
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err == nil && count > 0 {
		return apperr.ErrEmailTaken.WithCause(cause)
	}
	return apperr.ErrUsernameTaken.WithCause(cause)
}

// ByEmail looks a user up by (case-insensitive) email.
func (s *UserStore) ByEmail(ctx context.Context, email string) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	return u, userLookupErr(err)
}

// ByID looks a user up by primary key.
func (s *UserStore) ByID(ctx context.Context, id uint) (models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).First(&u, id).Error
	return u, userLookupErr(err)
}

// SetVisibility toggles leaderboard participation and returns the updated user.
func (s *UserStore) SetVisibility(ctx context.Context, id uint, public bool) (models.User, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_public", public)
	if res.Error != nil {
		return models.User{}, apperr.Internal(fmt.Errorf("update visibility: %w", res.Error))
	}
	// RowsAffected is 0 on mysql when the value is unchanged, so existence is
	// decided by the reload
	return s.ByID(ctx, id)
}

func userLookupErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.ErrUserNotFound
	default:
		return apperr.Internal(fmt.Errorf("lookup user: %w", err))
	}
}
