// Package services contains the server's business logic: authentication and
// token lifecycle, and data records. Services validate input, run
// repositories (inside a transaction where several writes must agree) and
// translate storage errors into the common error taxonomy.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/dbx"
	"github.com/dmitrijs2005/recordapi/internal/logging"
	"github.com/dmitrijs2005/recordapi/internal/server/auth"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/users"
)

// PasswordHasher hashes and checks passwords. *auth.Hasher satisfies it.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
	VerifyDummy(plain string) bool
}

// RegisterInput is a registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName *string
}

// AuthService registers users, logs them in and out, and manages profiles.
type AuthService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	hasher PasswordHasher
	tokens *TokenService
	log    logging.Logger
	now    func() time.Time
}

func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, hasher PasswordHasher, tokens *TokenService, log logging.Logger) *AuthService {
	return &AuthService{
		db:     db,
		repos:  m,
		hasher: hasher,
		tokens: tokens,
		log:    log,
		now:    time.Now,
	}
}

// userConflict maps a unique violation on pyapi_users to the matching error.
func userConflict(err error) error {
	switch c, _ := dbx.ViolatedConstraint(err); c {
	case users.UsernameConstraint:
		return common.ErrUsernameTaken
	case users.EmailConstraint:
		return common.ErrEmailTaken
	}
	return err
}

// Register creates a regular, active account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	return s.CreateAccount(ctx, in, false)
}

// CreateAccount creates an active account, optionally with superuser rights.
// It is used directly by the admin CLI.
func (s *AuthService) CreateAccount(ctx context.Context, in RegisterInput, superuser bool) (*models.User, error) {
	verr := &common.ValidationError{}

	username, err := auth.NormalizeUsername(in.Username)
	if err != nil {
		verr.Add("username", fieldReason(err, "username"))
	}
	email, err := auth.NormalizeEmail(in.Email)
	if err != nil {
		verr.Add("email", fieldReason(err, "email"))
	}
	if err := auth.ValidateFullName(in.FullName); err != nil {
		verr.Add("full_name", fieldReason(err, "full_name"))
	}
	if !verr.Empty() {
		return nil, verr
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	repo := s.repos.Users(s.db)

	if _, err := repo.GetByUsername(ctx, username); err == nil {
		return nil, common.ErrUsernameTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}
	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrEmailTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	u, err := repo.Create(ctx, &models.User{
		Username:       username,
		Email:          email,
		FullName:       in.FullName,
		HashedPassword: hash,
		IsActive:       true,
		IsSuperuser:    superuser,
	})
	if err != nil {
		return nil, userConflict(err)
	}

	s.log.Info(ctx, "user registered", "user_id", u.ID, "username", u.Username, "superuser", superuser)
	return u, nil
}

// Login answers ErrInvalidCredentials for both an unknown username and a
// wrong password, spending one bcrypt comparison either way. The inactive
// account check happens only after the password matched.
func (s *AuthService) Login(ctx context.Context, username, password string, meta models.ClientMeta) (*models.TokenPair, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	u, err := s.repos.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.VerifyDummy(password)
			return nil, common.ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.hasher.Verify(password, u.HashedPassword) {
		return nil, common.ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, common.ErrAccountInactive
	}

	var pair *models.TokenPair
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).TouchLastLogin(ctx, u.ID, s.now()); err != nil {
			return err
		}
		var err error
		pair, err = s.tokens.IssuePair(ctx, tx, u, meta)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user logged in", "user_id", u.ID)
	return pair, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string, meta models.ClientMeta) (*models.TokenPair, error) {
	return s.tokens.Rotate(ctx, refreshToken, meta)
}

// Logout deactivates one of the principal's own active refresh tokens.
func (s *AuthService) Logout(ctx context.Context, principal *models.User, refreshToken string) error {
	if principal == nil {
		return common.ErrorUnauthorized
	}

	err := s.repos.RefreshTokens(s.db).Revoke(ctx, principal.ID, refreshToken)
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrRefreshTokenNotFound
	}
	return err
}

// LogoutAll deactivates every active refresh token of the principal.
func (s *AuthService) LogoutAll(ctx context.Context, principal *models.User) (int64, error) {
	if principal == nil {
		return 0, common.ErrorUnauthorized
	}
	return s.repos.RefreshTokens(s.db).RevokeAllForUser(ctx, principal.ID)
}

func (s *AuthService) GetProfile(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.repos.Users(s.db).GetByID(ctx, userID)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUserNotFound
	}
	return u, err
}

// validateEmailChange normalises a requested email and makes sure it is not
// held by another account.
func (s *AuthService) validateEmailChange(ctx context.Context, userID int64, email *string) (*string, error) {
	if email == nil {
		return nil, nil
	}
	norm, err := auth.NormalizeEmail(*email)
	if err != nil {
		return nil, err
	}

	other, err := s.repos.Users(s.db).GetByEmail(ctx, norm)
	switch {
	case err == nil && other.ID != userID:
		return nil, common.ErrEmailTaken
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		return nil, err
	}
	return &norm, nil
}

func (s *AuthService) UpdateProfile(ctx context.Context, userID int64, upd models.ProfileUpdate) (*models.User, error) {
	if err := auth.ValidateFullName(upd.FullName); err != nil {
		return nil, err
	}
	email, err := s.validateEmailChange(ctx, userID, upd.Email)
	if err != nil {
		return nil, err
	}
	upd.Email = email

	u, err := s.repos.Users(s.db).UpdateProfile(ctx, userID, upd)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, userConflict(err)
	}
	return u, nil
}

// ChangePassword verifies the current password, stores the new hash and
// revokes every refresh token of the user in the same transaction.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	u, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if !s.hasher.Verify(current, u.HashedPassword) {
		return common.ErrIncorrectPassword
	}
	if err := auth.ValidatePassword(next); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrorInternal, err)
	}

	var revoked int64
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repos.Users(tx).UpdatePassword(ctx, userID, hash); err != nil {
			return err
		}
		var err error
		revoked, err = s.repos.RefreshTokens(tx).RevokeAllForUser(ctx, userID)
		return err
	})
	if err != nil {
		return err
	}

	s.log.Info(ctx, "password changed", "user_id", userID, "revoked_tokens", revoked)
	return nil
}

// fieldReason extracts the reason recorded for field from a
// *common.ValidationError, falling back to the error text.
func fieldReason(err error, field string) string {
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		if r, ok := ve.Fields[field]; ok {
			return r
		}
	}
	return err.Error()
}
