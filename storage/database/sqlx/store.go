package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

const dayLayout = "2006-01-02"

// clause accumulates AND-ed conditions and their positional arguments.
type clause struct {
	conds []string
	args  []interface{}
}

// bind registers arg and returns its placeholder.
func (c *clause) bind(arg interface{}) string {
	c.args = append(c.args, arg)
	return "$" + strconv.Itoa(len(c.args))
}

// add appends cond, replacing its `?` with the placeholder of arg.
func (c *clause) add(cond string, arg interface{}) *clause {
	c.conds = append(c.conds, strings.Replace(cond, "?", c.bind(arg), 1))
	return c
}

func (c *clause) raw(cond string) *clause {
	c.conds = append(c.conds, cond)
	return c
}

func (c *clause) where() string {
	if len(c.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.conds, " AND ")
}

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return core.StoreFailure(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	if err = fn(tx); err != nil {
		return err
	}
	return core.StoreFailure(tx.Commit(), "committing transaction")
}

func exec(ctx context.Context, q sqlx.ExecerContext, op, query string, args ...interface{}) (int, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, core.StoreFailure(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, core.StoreFailure(err, op)
	}
	return int(n), nil
}

// notFoundOr maps sql.ErrNoRows to a NotFoundError on resource.
func notFoundOr(err error, resource, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFoundError(resource)
	}
	return core.StoreFailure(err, op)
}

func day(t time.Time) string {
	return t.UTC().Format(dayLayout)
}
