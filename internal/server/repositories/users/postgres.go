package users

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

const userColumns = `id, username, email, full_name, hashed_password, is_active, is_superuser, created_at, updated_at, last_login_at`

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.FullName, &u.HashedPassword,
		&u.IsActive, &u.IsSuperuser, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.ClassifyError(err))
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	query := `
		INSERT INTO pyapi_users (username, email, full_name, hashed_password, is_active, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + userColumns

	return r.queryOne(ctx, query,
		user.Username, user.Email, user.FullName, user.HashedPassword, user.IsActive, user.IsSuperuser)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM pyapi_users WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM pyapi_users WHERE username = $1`, username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.queryOne(ctx, `SELECT `+userColumns+` FROM pyapi_users WHERE email = $1`, email)
}

func (r *PostgresRepository) UpdateProfile(ctx context.Context, id int64, upd models.ProfileUpdate) (*models.User, error) {
	query := `
		UPDATE pyapi_users
		SET email = COALESCE($2, email),
		    full_name = CASE WHEN $4 THEN NULL ELSE COALESCE($3, full_name) END,
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	return r.queryOne(ctx, query, id, upd.Email, upd.FullName, upd.ClearFullName)
}

func (r *PostgresRepository) AdminUpdate(ctx context.Context, id int64, upd models.AdminUserUpdate) (*models.User, error) {
	query := `
		UPDATE pyapi_users
		SET email = COALESCE($2, email),
		    full_name = CASE WHEN $6 THEN NULL ELSE COALESCE($3, full_name) END,
		    is_active = COALESCE($4, is_active),
		    is_superuser = COALESCE($5, is_superuser),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + userColumns

	return r.queryOne(ctx, query, id, upd.Email, upd.FullName, upd.IsActive, upd.IsSuperuser, upd.ClearFullName)
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
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

func (r *PostgresRepository) UpdatePassword(ctx context.Context, id int64, hashedPassword string) error {
	query := `
		UPDATE pyapi_users
		SET hashed_password = $2, updated_at = now()
		WHERE id = $1
	`
	return r.exec(ctx, query, id, hashedPassword)
}

func (r *PostgresRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE pyapi_users SET last_login_at = $2 WHERE id = $1`, id, at)
}

func (r *PostgresRepository) List(ctx context.Context, page models.Page) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM pyapi_users ORDER BY id OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, page.Skip, page.Limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]*models.User, 0, page.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM pyapi_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
