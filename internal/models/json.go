package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// DateList stores a list of timestamps as a JSON array column.
type DateList []time.Time

// Value implements the driver.Valuer interface
func (d DateList) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]time.Time(d))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (d *DateList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*d = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported date list type %T", value)
	}
	var out []time.Time
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*d = out
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
