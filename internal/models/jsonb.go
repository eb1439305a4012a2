package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB stores free-form activity metadata in a jsonb column.
type JSONB []byte

// NewJSONB marshals m; nil or unmarshalable input gives an empty object.
func NewJSONB(m map[string]any) JSONB {
	if len(m) == 0 {
		return JSONB("{}")
	}
	b, err := json.Marshal(m)
	if err != nil {
		return JSONB("{}")
	}
	return JSONB(b)
}

func (j JSONB) Map() map[string]any {
	out := map[string]any{}
	if len(j) == 0 {
		return out
	}
	_ = json.Unmarshal(j, &out)
	return out
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return []byte(j), nil
}

func (j *JSONB) UnmarshalJSON(b []byte) error {
	*j = append((*j)[:0], b...)
	return nil
}

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return []byte(j), nil
}

func (j *JSONB) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*j = JSONB("{}")
	case []byte:
		*j = append(JSONB(nil), v...)
	case string:
		*j = JSONB(v)
	default:
		return fmt.Errorf("jsonb scan: unsupported type %T", value)
	}
	return nil
}
