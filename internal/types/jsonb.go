package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// These ensure the JSONB-stored types implement both sql.Scanner and
// driver.Valuer, catching method signature drift at compile time.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*ComponentScores)(nil)
	_ driver.Valuer = ComponentScores{}
	_ sql.Scanner   = (*LandCover)(nil)
	_ driver.Valuer = LandCover{}
	_ sql.Scanner   = (*DensityAnchor)(nil)
	_ driver.Valuer = DensityAnchor{}
)

// scanJSONB is a generic helper that scans a JSONB database value into a Go
// pointer. It handles nil values, []byte, and string representations from
// different database drivers.
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
func (c *ComponentScores) Scan(value interface{}) error {
	return scanJSONB(c, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (c ComponentScores) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (lc *LandCover) Scan(value interface{}) error {
	return scanJSONB(lc, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (lc LandCover) Value() (driver.Value, error) {
	return json.Marshal(lc)
}

// Scan implements the sql.Scanner interface for reading JSONB from the database.
func (d *DensityAnchor) Scan(value interface{}) error {
	return scanJSONB(d, value)
}

// Value implements the driver.Valuer interface for writing JSONB to the database.
func (d DensityAnchor) Value() (driver.Value, error) {
	return json.Marshal(d)
}
