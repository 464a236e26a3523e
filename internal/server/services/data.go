package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/dbx"
	"github.com/dmitrijs2005/recordapi/internal/logging"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/datarecords"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/repomanager"
)

const (
	maxNameLen        = 255
	maxDescriptionLen = 1000
)

// ConfigPublisher mirrors record configs to an external store.
type ConfigPublisher interface {
	Publish(ctx context.Context, rec *models.DataRecord) error
	Remove(ctx context.Context, id int64) error
}

// DataInput is a create request.
type DataInput struct {
	Name        string
	Description *string
	Config      models.JSONMap
	Status      string
}

// RecordPage is one page of a list query.
type RecordPage struct {
	Total int64
	Skip  int
	Limit int
	Data  []*models.DataRecord
}

// DataService implements CRUD over data records. Reads accept an anonymous
// principal; writes require one. Records are not owned by users, so any
// authenticated caller may change any record.
type DataService struct {
	db        *sql.DB
	repos     repomanager.RepositoryManager
	publisher ConfigPublisher
	log       logging.Logger
}

func NewDataService(db *sql.DB, m repomanager.RepositoryManager, p ConfigPublisher, log logging.Logger) *DataService {
	return &DataService{db: db, repos: m, publisher: p, log: log}
}

func validateName(verr *common.ValidationError, name string) string {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		verr.Add("name", "must not be empty")
	case utf8.RuneCountInString(name) > maxNameLen:
		verr.Add("name", fmt.Sprintf("must be at most %d characters", maxNameLen))
	}
	return name
}

func validateDescription(verr *common.ValidationError, d *string) {
	if d != nil && utf8.RuneCountInString(*d) > maxDescriptionLen {
		verr.Add("description", fmt.Sprintf("must be at most %d characters", maxDescriptionLen))
	}
}

func validateStatus(verr *common.ValidationError, status string) {
	if !slices.Contains(models.Statuses, status) {
		verr.Add("status", "must be one of: "+strings.Join(models.Statuses, ", "))
	}
}

func recordConflict(err error) error {
	if c, ok := dbx.ViolatedConstraint(err); ok && c == datarecords.NameConstraint {
		return common.ErrNameTaken
	}
	return err
}

func notFound(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.ErrRecordNotFound
	}
	return err
}

func (s *DataService) publish(ctx context.Context, rec *models.DataRecord) {
	if err := s.publisher.Publish(ctx, rec); err != nil {
		s.log.Warn(ctx, "publish record config failed", "id", rec.ID, "error", err)
	}
}

func (s *DataService) Create(ctx context.Context, principal *models.User, in DataInput) (*models.DataRecord, error) {
	if principal == nil {
		return nil, common.ErrorUnauthorized
	}

	verr := &common.ValidationError{}
	name := validateName(verr, in.Name)
	validateDescription(verr, in.Description)
	status := in.Status
	if status == "" {
		status = models.StatusActive
	}
	validateStatus(verr, status)
	if !verr.Empty() {
		return nil, verr
	}

	repo := s.repos.DataRecords(s.db)
	if _, err := repo.GetByName(ctx, name); err == nil {
		return nil, common.ErrNameTaken
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	rec, err := repo.Create(ctx, &models.DataRecord{
		Name:        name,
		Description: in.Description,
		Config:      in.Config,
		Status:      status,
	})
	if err != nil {
		return nil, recordConflict(err)
	}

	s.log.Info(ctx, "record created", "id", rec.ID, "name", rec.Name, "user_id", principal.ID)
	s.publish(ctx, rec)
	return rec, nil
}

// Get returns one record. principal may be nil.
func (s *DataService) Get(ctx context.Context, principal *models.User, id int64) (*models.DataRecord, error) {
	rec, err := s.repos.DataRecords(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

// List returns a filtered page, newest first. principal may be nil.
func (s *DataService) List(ctx context.Context, principal *models.User, f models.DataRecordFilter) (*RecordPage, error) {
	page, err := NormalizePage(f.Page)
	if err != nil {
		return nil, err
	}
	f.Page = page
	f.NameSearch = strings.TrimSpace(f.NameSearch)
	if f.Status != "" {
		verr := &common.ValidationError{}
		validateStatus(verr, f.Status)
		if !verr.Empty() {
			return nil, verr
		}
	}

	repo := s.repos.DataRecords(s.db)
	data, err := repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	total, err := repo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	return &RecordPage{Total: total, Skip: f.Skip, Limit: f.Limit, Data: data}, nil
}

// Update applies the non-nil fields of upd and bumps updated_at.
func (s *DataService) Update(ctx context.Context, principal *models.User, id int64, upd models.DataRecordUpdate) (*models.DataRecord, error) {
	if principal == nil {
		return nil, common.ErrorUnauthorized
	}

	verr := &common.ValidationError{}
	if upd.Name != nil {
		name := validateName(verr, *upd.Name)
		upd.Name = &name
	}
	validateDescription(verr, upd.Description)
	if upd.Status != nil {
		validateStatus(verr, *upd.Status)
	}
	if !verr.Empty() {
		return nil, verr
	}

	repo := s.repos.DataRecords(s.db)
	if upd.Name != nil {
		other, err := repo.GetByName(ctx, *upd.Name)
		switch {
		case err == nil && other.ID != id:
			return nil, common.ErrNameTaken
		case err != nil && !errors.Is(err, common.ErrorNotFound):
			return nil, err
		}
	}

	rec, err := repo.Update(ctx, id, upd)
	if err != nil {
		return nil, notFound(recordConflict(err))
	}

	s.log.Info(ctx, "record updated", "id", rec.ID, "user_id", principal.ID)
	s.publish(ctx, rec)
	return rec, nil
}

// Delete removes a record. A missing id is ErrRecordNotFound and touches
// nothing.
func (s *DataService) Delete(ctx context.Context, principal *models.User, id int64) error {
	if principal == nil {
		return common.ErrorUnauthorized
	}

	if err := s.repos.DataRecords(s.db).Delete(ctx, id); err != nil {
		return notFound(err)
	}

	s.log.Info(ctx, "record deleted", "id", id, "user_id", principal.ID)
	if err := s.publisher.Remove(ctx, id); err != nil {
		s.log.Warn(ctx, "remove record config failed", "id", id, "error", err)
	}
	return nil
}
