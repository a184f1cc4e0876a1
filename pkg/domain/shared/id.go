package shared

import (
	"database/sql/driver"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ID is an opaque entity identifier backed by a UUID. The zero value is
// not a valid identifier.
type ID struct {
	value uuid.UUID
}

// NewID returns a fresh random ID.
func NewID() ID {
	return ID{value: uuid.New()}
}

// IDFromString parses an ID from its canonical string form.
func IDFromString(s string) (ID, error) {
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ID{}, fmt.Errorf("invalid id format: %w", err)
	}
	return ID{value: parsed}, nil
}

// MustIDFromString parses an ID, panicking on malformed input. For tests
// and compile-time-known constants only.
func MustIDFromString(s string) ID {
	id, err := IDFromString(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the canonical UUID string.
func (id ID) String() string {
	return id.value.String()
}

// IsZero reports whether the ID is unset.
func (id ID) IsZero() bool {
	return id.value == uuid.Nil
}

// Equals reports whether two IDs identify the same entity.
func (id ID) Equals(other ID) bool {
	return id.value == other.value
}

// Value implements driver.Valuer so IDs bind directly as query arguments.
func (id ID) Value() (driver.Value, error) {
	return id.value.String(), nil
}

// Scan implements sql.Scanner for reading UUID columns.
func (id *ID) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("scan id: %w", err)
		}
		id.value = parsed
		return nil
	case []byte:
		parsed, err := uuid.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("scan id: %w", err)
		}
		id.value = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into ID", src)
	}
}

// MarshalJSON renders the ID as a JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(id.String())), nil
}

// UnmarshalJSON parses an ID from a JSON string.
func (id *ID) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("invalid id format: %w", err)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return fmt.Errorf("invalid id format: %w", err)
	}
	id.value = parsed
	return nil
}
