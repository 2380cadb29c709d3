// Package sqlxrepos implements the repositories on Postgres and SQLite through sqlx.
package sqlxrepos

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

// stringList is a []string stored as a JSON text column.
type stringList []string

func (sl stringList) Value() (driver.Value, error) {
	if sl == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(sl))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (sl *stringList) Scan(src interface{}) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*sl = stringList{}
		return nil
	case string:
		b = []byte(v)
	case []byte:
		b = v
	default:
		return errors.Errorf("stringList: unsupported type %T", src)
	}
	out := make([]string, 0)
	if err := json.Unmarshal(b, &out); err != nil {
		return errors.Wrap(err, "stringList")
	}
	*sl = out
	return nil
}

// utc normalizes stored times; SQLite compares them as text.
func utc(t time.Time) time.Time { return t.UTC().Truncate(time.Second) }

func nullUTC(t null.Time) null.Time {
	if t.Valid {
		t.Time = utc(t.Time)
	}
	return t
}

func rowsAffected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "rows affected")
}
