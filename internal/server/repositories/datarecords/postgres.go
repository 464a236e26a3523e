package datarecords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/dbx"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
)

const recordColumns = `id, name, description, config, status, created_at, updated_at`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.DataRecord, error) {
	rec := &models.DataRecord{}
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Description, &rec.Config,
		&rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *PostgresRepository) queryOne(ctx context.Context, query string, args ...any) (*models.DataRecord, error) {
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", dbx.ClassifyError(err))
	}
	return rec, nil
}

func (r *PostgresRepository) Create(ctx context.Context, rec *models.DataRecord) (*models.DataRecord, error) {
	query := `
		INSERT INTO data_records (name, description, config, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + recordColumns

	return r.queryOne(ctx, query, rec.Name, rec.Description, rec.Config, rec.Status)
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.DataRecord, error) {
	return r.queryOne(ctx, `SELECT `+recordColumns+` FROM data_records WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.DataRecord, error) {
	return r.queryOne(ctx, `SELECT `+recordColumns+` FROM data_records WHERE name = $1`, name)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// where renders the filter as a WHERE clause with positional parameters.
func where(f models.DataRecordFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.NameSearch != "" {
		args = append(args, "%"+likeEscaper.Replace(f.NameSearch)+"%")
		conds = append(conds, fmt.Sprintf(`name ILIKE $%d ESCAPE '\'`, len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *PostgresRepository) List(ctx context.Context, f models.DataRecordFilter) ([]*models.DataRecord, error) {
	clause, args := where(f)
	args = append(args, f.Skip, f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM data_records%s ORDER BY created_at DESC, id DESC OFFSET $%d LIMIT $%d`,
		recordColumns, clause, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]*models.DataRecord, 0, f.Limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Count(ctx context.Context, f models.DataRecordFilter) (int64, error) {
	clause, args := where(f)

	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM data_records`+clause, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) Update(ctx context.Context, id int64, upd models.DataRecordUpdate) (*models.DataRecord, error) {
	query := `
		UPDATE data_records
		SET name = COALESCE($2, name),
		    description = CASE WHEN $6 THEN NULL ELSE COALESCE($3, description) END,
		    config = CASE WHEN $7 THEN NULL ELSE COALESCE($4, config) END,
		    status = COALESCE($5, status),
		    updated_at = now()
		WHERE id = $1
		RETURNING ` + recordColumns

	var config any
	if upd.Config != nil {
		config = *upd.Config
	}
	return r.queryOne(ctx, query, id, upd.Name, upd.Description, config, upd.Status,
		upd.ClearDescription, upd.ClearConfig)
}

func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM data_records WHERE id = $1`, id)
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
