package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day serialized as "YYYY-MM-DD".
type Date time.Time

func NewDate(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

func (t Date) Time() time.Time {
	return time.Time(t)
}

func (t Date) String() string {
	return time.Time(t).Format(DateLayout)
}

func (t Date) Before(other Date) bool {
	return time.Time(t).Before(time.Time(other))
}

func (t Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*t = Date(time.Time{})
		return nil
	}
	parsed, err := time.Parse(DateLayout, s)
	if err != nil {
		// tolerate full timestamps from older producers
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("invalid date %q: %w", s, err)
		}
	}
	*t = NewDate(parsed)
	return nil
}

// Value implements the driver.Valuer interface
func (t Date) Value() (driver.Value, error) {
	return time.Time(t), nil
}

// Scan implements the sql.Scanner interface
func (t *Date) Scan(value interface{}) error {
	if value == nil {
		*t = Date(time.Time{})
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*t = NewDate(v)
	default:
		return fmt.Errorf("cannot convert %T to Date", value)
	}
	return nil
}
