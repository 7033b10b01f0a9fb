// Package language wraps x/text/language so a BCP 47 tag can travel through
// pgx, database/sql and JSON request bodies.
package language

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/language"
)

type Tag language.Tag

// Und is the unset tag. It is stored as NULL.
var Und = Tag(language.Und)

// Parse accepts an empty string as Und.
func Parse(s string) (Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Und, nil
	}
	t, err := language.Parse(s)
	if err != nil {
		return Und, fmt.Errorf("language %q: %w", s, err)
	}
	return Tag(t), nil
}

func (t Tag) String() string {
	return language.Tag(t).String()
}

func (t Tag) IsUnd() bool {
	return t == Und
}

// Base returns the primary language subtag ("en" for "en-GB"), or "" for Und.
func (t Tag) Base() string {
	if t.IsUnd() {
		return ""
	}
	b, _ := language.Tag(t).Base()
	return b.String()
}

// Or returns t, or fallback when t is Und.
func (t Tag) Or(fallback Tag) Tag {
	if t.IsUnd() {
		return fallback
	}
	return t
}

// Scan implements the sql.Scanner interface.
func (t *Tag) Scan(value any) error {
	if value == nil {
		*t = Und
		return nil
	}

	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("language.Tag.Scan: expected string, got %T", value)
	}

	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Value implements the driver.Valuer interface.
func (t Tag) Value() (driver.Value, error) {
	if t.IsUnd() {
		return nil, nil
	}
	return t.String(), nil
}

// ScanText implements the pgtype.TextScanner interface for pgx v5.
func (t *Tag) ScanText(v pgtype.Text) error {
	if !v.Valid {
		*t = Und
		return nil
	}
	return t.Scan(v.String)
}

// TextValue implements the pgtype.TextValuer interface for pgx v5.
func (t Tag) TextValue() (pgtype.Text, error) {
	if t.IsUnd() {
		return pgtype.Text{Valid: false}, nil
	}
	return pgtype.Text{String: t.String(), Valid: true}, nil
}

func (t Tag) MarshalJSON() ([]byte, error) {
	if t.IsUnd() {
		return []byte("null"), nil
	}
	return json.Marshal(t.String())
}

func (t *Tag) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Und
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	return t.Scan(s)
}
