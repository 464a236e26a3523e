package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/server/auth"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// NormalizePage applies the default limit and rejects out-of-range values.
// A zero limit means "use the default".
func NormalizePage(p models.Page) (models.Page, error) {
	verr := &common.ValidationError{}
	if p.Skip < 0 {
		verr.Add("skip", "must be >= 0")
	}
	if p.Limit == 0 {
		p.Limit = defaultLimit
	}
	if p.Limit < 1 || p.Limit > maxLimit {
		verr.Add("limit", "must be between 1 and 1000")
	}
	if !verr.Empty() {
		return p, verr
	}
	return p, nil
}

func requireSuperuser(principal *models.User) error {
	if principal == nil {
		return common.ErrorUnauthorized
	}
	if !principal.IsSuperuser {
		return common.ErrorForbidden
	}
	return nil
}

// ListUsers returns one page of accounts and the total count.
func (s *AuthService) ListUsers(ctx context.Context, principal *models.User, page models.Page) ([]*models.User, int64, models.Page, error) {
	if err := requireSuperuser(principal); err != nil {
		return nil, 0, page, err
	}
	page, err := NormalizePage(page)
	if err != nil {
		return nil, 0, page, err
	}

	repo := s.repos.Users(s.db)
	list, err := repo.List(ctx, page)
	if err != nil {
		return nil, 0, page, err
	}
	total, err := repo.Count(ctx)
	if err != nil {
		return nil, 0, page, err
	}
	return list, total, page, nil
}

func (s *AuthService) GetUser(ctx context.Context, principal *models.User, id int64) (*models.User, error) {
	if err := requireSuperuser(principal); err != nil {
		return nil, err
	}
	return s.GetProfile(ctx, id)
}

func (s *AuthService) AdminUpdateUser(ctx context.Context, principal *models.User, id int64, upd models.AdminUserUpdate) (*models.User, error) {
	if err := requireSuperuser(principal); err != nil {
		return nil, err
	}
	if err := auth.ValidateFullName(upd.FullName); err != nil {
		return nil, err
	}
	email, err := s.validateEmailChange(ctx, id, upd.Email)
	if err != nil {
		return nil, err
	}
	upd.Email = email

	u, err := s.repos.Users(s.db).AdminUpdate(ctx, id, upd)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, userConflict(err)
	}

	s.log.Info(ctx, "user updated by admin", "user_id", id, "admin_id", principal.ID)
	return u, nil
}

// RevokeUserTokens deactivates every refresh token of the given user.
func (s *AuthService) RevokeUserTokens(ctx context.Context, principal *models.User, id int64) (int64, error) {
	if err := requireSuperuser(principal); err != nil {
		return 0, err
	}
	n, err := s.RevokeAllTokens(ctx, id)
	if err != nil {
		return 0, err
	}
	s.log.Info(ctx, "user tokens revoked", "user_id", id, "admin_id", principal.ID, "revoked", n)
	return n, nil
}

// RevokeAllTokens deactivates every refresh token of an existing user
// without a principal check. It backs the admin CLI.
func (s *AuthService) RevokeAllTokens(ctx context.Context, id int64) (int64, error) {
	if _, err := s.GetProfile(ctx, id); err != nil {
		return 0, err
	}
	return s.repos.RefreshTokens(s.db).RevokeAllForUser(ctx, id)
}

// PruneExpiredTokens deletes refresh tokens that expired more than grace ago.
func (s *AuthService) PruneExpiredTokens(ctx context.Context, grace time.Duration) (int64, error) {
	return s.repos.RefreshTokens(s.db).DeleteExpired(ctx, s.now().Add(-grace))
}
