package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Statuses lists every value accepted in DataRecord.Status.
var Statuses = []string{StatusActive, StatusInactive, StatusPending, StatusCompleted}

// DataRecord is a named, JSON-configurable entity consumed by the scheduler.
type DataRecord struct {
	ID          int64
	Name        string
	Description *string
	Config      JSONMap
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DataRecordUpdate carries a partial update. Nil fields are left untouched
// unless the matching Clear flag asks for the column to be set to NULL.
type DataRecordUpdate struct {
	Name        *string
	Description *string
	Config      *JSONMap
	Status      *string

	ClearDescription bool
	ClearConfig      bool
}

// DataRecordFilter narrows a list query.
type DataRecordFilter struct {
	Page
	Status     string
	NameSearch string
}

// JSONMap is an opaque JSON object stored in a JSONB column. A nil map is
// stored as SQL NULL.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(map[string]any(m))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (m *JSONMap) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for JSONMap", src)
	}

	out := map[string]any{}
	if err := json.Unmarshal(data, &out); err != nil {
		return errors.New("config column is not a JSON object")
	}
	*m = out
	return nil
}
