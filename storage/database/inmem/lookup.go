package inmemdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/tadris/core/validation"
)

type lookup struct {
	db *DB
}

var _ validation.Lookup = (*lookup)(nil)

// NewLookup answers existence checks from the users table and the inserted records.
func NewLookup(db *DB) *lookup {
	return &lookup{db: db}
}

func (l *lookup) Exists(ctx context.Context, collection, column string, value interface{}) (bool, error) {
	return l.ExistsExcluding(ctx, collection, column, value, "")
}

func (l *lookup) ExistsExcluding(_ context.Context, collection, column string, value interface{}, excludeID string) (bool, error) {
	want := fmt.Sprint(value)
	match := func(id string, got interface{}) bool {
		if got == nil || (excludeID != "" && id == excludeID) {
			return false
		}
		if column == "email" {
			return strings.EqualFold(fmt.Sprint(got), want)
		}
		return fmt.Sprint(got) == want
	}

	if collection == "users" {
		l.db.user.mutex.RLock()
		defer l.db.user.mutex.RUnlock()
		for _, usr := range l.db.user.table {
			var got interface{}
			switch column {
			case "id":
				got = usr.ID
			case "email":
				got = usr.Email
			case "phone":
				if usr.Phone != "" {
					got = usr.Phone
				}
			}
			if match(usr.ID, got) {
				return true, nil
			}
		}
		return false, nil
	}

	l.db.records.mutex.RLock()
	defer l.db.records.mutex.RUnlock()
	for _, rec := range l.db.records.table[collection] {
		got := rec.Fields[column]
		if column == "id" {
			got = rec.ID
		}
		if match(rec.ID, got) {
			return true, nil
		}
	}
	return false, nil
}
