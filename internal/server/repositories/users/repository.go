// Package users declares the credential store: persistence of user accounts.
package users

import (
	"context"
	"time"

	"github.com/dmitrijs2005/recordapi/internal/server/models"
)

// Repository stores user accounts. Lookups of a missing row return
// common.ErrorNotFound; a duplicate username or email surfaces as
// dbx.ErrUniqueViolation carrying the constraint name.
type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	UpdateProfile(ctx context.Context, id int64, upd models.ProfileUpdate) (*models.User, error)
	AdminUpdate(ctx context.Context, id int64, upd models.AdminUserUpdate) (*models.User, error)
	UpdatePassword(ctx context.Context, id int64, hashedPassword string) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error

	List(ctx context.Context, page models.Page) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
}

// Constraint names used to tell duplicate usernames from duplicate emails.
const (
	UsernameConstraint = "pyapi_users_username_key"
	EmailConstraint    = "pyapi_users_email_key"
)
