package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/dbx"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
)

const tokenColumns = `id, token, user_id, is_active, expires_at, user_agent, ip_address, created_at, revoked_at`

// PostgresRepository implements Repository over dbx.DBTX (satisfied by
// *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&t.ID, &t.Token, &t.UserID, &t.IsActive,
		&t.ExpiresAt, &t.UserAgent, &t.IPAddress, &t.CreatedAt, &t.RevokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.ClassifyError(err))
	}
	return t, nil
}

func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) (*models.RefreshToken, error) {
	query := `
		INSERT INTO pyapi_refresh_tokens (token, user_id, expires_at, user_agent, ip_address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + tokenColumns

	return r.queryOne(ctx, query, token.Token, token.UserID, token.ExpiresAt, token.UserAgent, token.IPAddress)
}

func (r *PostgresRepository) Find(ctx context.Context, token string) (*models.RefreshToken, error) {
	return r.queryOne(ctx, `SELECT `+tokenColumns+` FROM pyapi_refresh_tokens WHERE token = $1`, token)
}

// Consume relies on the row lock taken by the conditional UPDATE: a second
// transaction redeeming the same token blocks, then sees is_active = false
// and matches nothing.
func (r *PostgresRepository) Consume(ctx context.Context, token string) (*models.RefreshToken, error) {
	query := `
		UPDATE pyapi_refresh_tokens
		SET is_active = FALSE, revoked_at = now()
		WHERE token = $1 AND is_active
		RETURNING ` + tokenColumns

	return r.queryOne(ctx, query, token)
}

func (r *PostgresRepository) Revoke(ctx context.Context, userID int64, token string) error {
	query := `
		UPDATE pyapi_refresh_tokens
		SET is_active = FALSE, revoked_at = now()
		WHERE token = $1 AND user_id = $2 AND is_active
	`
	res, err := r.db.ExecContext(ctx, query, token, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	query := `
		UPDATE pyapi_refresh_tokens
		SET is_active = FALSE, revoked_at = now()
		WHERE user_id = $1 AND is_active
	`
	return r.execCount(ctx, query, userID)
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	return r.execCount(ctx, `DELETE FROM pyapi_refresh_tokens WHERE expires_at < $1`, before)
}

func (r *PostgresRepository) execCount(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
