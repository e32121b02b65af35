package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Schedules is the JSONB-backed list of schedules stored on an owner row.
type Schedules []Schedule

// Personalities is the JSONB-backed list of personalities stored on an owner row.
type Personalities []Personality

// Compile-time interface assertions.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*Schedules)(nil)
	_ driver.Valuer = Schedules(nil)
	_ sql.Scanner   = (*Personalities)(nil)
	_ driver.Valuer = Personalities(nil)
)

// scanJSONB is a generic helper that scans a JSONB database value into a Go pointer.
// It handles nil values, []byte, and string representations from different database drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	return json.Unmarshal(data, dest)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (s *Schedules) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	return scanJSONB(s, value)
}

// Value implements the driver.Valuer interface. A nil list is stored as an
// empty array so the column's NOT NULL constraint holds.
func (s Schedules) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Schedule(s))
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (p *Personalities) Scan(value interface{}) error {
	if value == nil {
		*p = nil
		return nil
	}
	return scanJSONB(p, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (p Personalities) Value() (driver.Value, error) {
	if p == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Personality(p))
}
