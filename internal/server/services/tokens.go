package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/dbx"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/repomanager"
)

const (
	refreshTokenBytes = 32
	tokenTypeBearer   = "bearer"
)

// AccessTokenIssuer signs access tokens. *auth.Issuer satisfies it.
type AccessTokenIssuer interface {
	IssueAccessToken(u *models.User) (string, time.Time, error)
	TTL() time.Duration
}

// TokenService persists opaque refresh tokens and rotates them.
type TokenService struct {
	db         *sql.DB
	repos      repomanager.RepositoryManager
	issuer     AccessTokenIssuer
	refreshTTL time.Duration
	now        func() time.Time
	newToken   func(size int) (string, error)
}

func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, issuer AccessTokenIssuer, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		db:         db,
		repos:      m,
		issuer:     issuer,
		refreshTTL: refreshTTL,
		now:        time.Now,
		newToken:   common.MakeRandURLToken,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IssueRefreshToken stores a fresh token for userID through tx and returns
// its opaque value.
func (s *TokenService) IssueRefreshToken(ctx context.Context, tx dbx.DBTX, userID int64, meta models.ClientMeta) (string, error) {
	value, err := s.newToken(refreshTokenBytes)
	if err != nil {
		return "", fmt.Errorf("%w: generate refresh token: %v", common.ErrorInternal, err)
	}

	_, err = s.repos.RefreshTokens(tx).Create(ctx, &models.RefreshToken{
		Token:     value,
		UserID:    userID,
		ExpiresAt: s.now().Add(s.refreshTTL),
		UserAgent: optional(meta.UserAgent),
		IPAddress: optional(meta.IPAddress),
	})
	if err != nil {
		return "", fmt.Errorf("store refresh token: %w", err)
	}
	return value, nil
}

// IssuePair signs an access token for u and stores a new refresh token.
func (s *TokenService) IssuePair(ctx context.Context, tx dbx.DBTX, u *models.User, meta models.ClientMeta) (*models.TokenPair, error) {
	access, _, err := s.issuer.IssueAccessToken(u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	refresh, err := s.IssueRefreshToken(ctx, tx, u.ID, meta)
	if err != nil {
		return nil, err
	}

	return &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.issuer.TTL() / time.Second),
	}, nil
}

// Rotate redeems old and issues a new pair in one transaction. The old token
// is deactivated before anything else so a concurrent redemption of the same
// token matches no row. Failures are ErrRefreshTokenNotFound,
// ErrRefreshTokenRevoked or ErrRefreshTokenExpired; on any failure nothing
// is committed.
func (s *TokenService) Rotate(ctx context.Context, old string, meta models.ClientMeta) (*models.TokenPair, error) {
	var pair *models.TokenPair

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := s.repos.RefreshTokens(tx)

		consumed, err := tokens.Consume(ctx, old)
		if errors.Is(err, common.ErrorNotFound) {
			if _, findErr := tokens.Find(ctx, old); findErr != nil {
				if errors.Is(findErr, common.ErrorNotFound) {
					return common.ErrRefreshTokenNotFound
				}
				return findErr
			}
			return common.ErrRefreshTokenRevoked
		}
		if err != nil {
			return err
		}

		if consumed.Expired(s.now()) {
			return common.ErrRefreshTokenExpired
		}

		user, err := s.repos.Users(tx).GetByID(ctx, consumed.UserID)
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrRefreshTokenRevoked
		}
		if err != nil {
			return err
		}
		if !user.IsActive {
			return common.ErrRefreshTokenRevoked
		}

		pair, err = s.IssuePair(ctx, tx, user, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}
