package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core/validation"
)

// lookupColumns lists the columns existence checks may read, per table.
// Email columns compare case-insensitively.
var lookupColumns = map[string]map[string]bool{
	"users":          {"id": true, "email": true, "phone": true},
	"students":       {"id": true, "email": true},
	"groups":         {"id": true, "name": true},
	"sessions":       {"id": true},
	"payments":       {"id": true, "reference": true},
	"quizzes":        {"id": true},
	"quiz_questions": {"id": true},
	"exams":          {"id": true},
}

var ErrUnknownColumn = errors.New("column is not available for lookups")

// Lookup answers existence checks against the application tables.
type Lookup struct {
	db sqlx.QueryerContext
}

var _ validation.Lookup = (*Lookup)(nil)

func NewLookup(db sqlx.QueryerContext) *Lookup {
	return &Lookup{db: db}
}

func (l *Lookup) Exists(ctx context.Context, collection, column string, value interface{}) (bool, error) {
	return l.ExistsExcluding(ctx, collection, column, value, "")
}

func (l *Lookup) ExistsExcluding(ctx context.Context, collection, column string, value interface{}, excludeID string) (bool, error) {
	if !lookupColumns[collection][column] {
		return false, errors.Wrapf(ErrUnknownColumn, "%s.%s", collection, column)
	}

	cond := pq.QuoteIdentifier(column) + " = $1"
	if column == "email" {
		cond = "LOWER(" + pq.QuoteIdentifier(column) + ") = LOWER($1)"
	}
	args := []interface{}{value}
	if excludeID != "" {
		cond += " AND id::text <> $2"
		args = append(args, excludeID)
	}

	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM " + pq.QuoteIdentifier(collection) + " WHERE " + cond + ")"
	if err := sqlx.GetContext(ctx, l.db, &exists, q, args...); err != nil {
		return false, errors.Wrapf(err, "checking %s.%s", collection, column)
	}
	return exists, nil
}
