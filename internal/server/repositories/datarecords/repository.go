// Package datarecords declares the data record store.
package datarecords

import (
	"context"

	"github.com/dmitrijs2005/recordapi/internal/server/models"
)

// NameConstraint is the unique constraint on data_records.name.
const NameConstraint = "data_records_name_key"

// Repository stores data records. A missing row is common.ErrorNotFound and
// a duplicate name surfaces as dbx.ErrUniqueViolation.
type Repository interface {
	Create(ctx context.Context, rec *models.DataRecord) (*models.DataRecord, error)
	GetByID(ctx context.Context, id int64) (*models.DataRecord, error)
	GetByName(ctx context.Context, name string) (*models.DataRecord, error)

	// List returns one page ordered newest first; Count returns the number
	// of rows matching the same filter, ignoring paging.
	List(ctx context.Context, filter models.DataRecordFilter) ([]*models.DataRecord, error)
	Count(ctx context.Context, filter models.DataRecordFilter) (int64, error)

	Update(ctx context.Context, id int64, upd models.DataRecordUpdate) (*models.DataRecord, error)
	Delete(ctx context.Context, id int64) error
}
