package repository

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// timeLayout is fixed-width so SQLite TEXT columns sort and compare in
// chronological order. PostgreSQL parses it into TIMESTAMPTZ.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// sqlTime carries timestamps across both drivers: lib/pq hands back
// time.Time, modernc SQLite hands back the stored text.
type sqlTime struct {
	Time  time.Time
	Valid bool
}

func newSQLTime(t time.Time) sqlTime {
	return sqlTime{Time: t, Valid: true}
}

func (t sqlTime) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time.UTC().Format(timeLayout), nil
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = sqlTime{}
		return nil
	case time.Time:
		*t = sqlTime{Time: v.UTC(), Valid: true}
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("cannot scan %T into timestamp", src)
	}
}

func (t *sqlTime) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	*t = sqlTime{Time: parsed.UTC(), Valid: true}
	return nil
}

func (t sqlTime) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// stamp normalises a clock reading to what both databases can store exactly.
func stamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
