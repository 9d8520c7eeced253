package sqlutil

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Conversions between sqlc's nullable column types and the pointer fields
// the match models use.

// FromSqlInt32 returns nil for a NULL column.
func FromSqlInt32(val sql.NullInt32) *int {
	if !val.Valid {
		return nil
	}
	v := int(val.Int32)
	return &v
}

// FromSqlString returns defaultVal for a NULL column.
func FromSqlString(val sql.NullString, defaultVal string) string {
	if !val.Valid {
		return defaultVal
	}
	return val.String
}

// FromNullUUID returns the id as a string, or nil when unset.
func FromNullUUID(val uuid.NullUUID) *string {
	if !val.Valid {
		return nil
	}
	s := val.UUID.String()
	return &s
}

// ToSqlTime stores nil as NULL. Times are written in UTC.
func ToSqlTime(val *time.Time) sql.NullTime {
	if val == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: val.UTC(), Valid: true}
}

// FromSqlTime returns nil for a NULL column.
func FromSqlTime(val sql.NullTime) *time.Time {
	if !val.Valid {
		return nil
	}
	t := val.Time
	return &t
}
