package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"go.uber.org/multierr"
)

const maxChainDepth = 16

// ErrorDump is the log-only view of an error: the wrap chain plus whatever a
// Postgres driver attached. It is never sent to clients.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	d.Chain = chain(err, 0)
	d.fillPostgres(err)
	return d
}

// chain flattens the unwrap chain; errors combined with multierr contribute
// each branch in order.
func chain(err error, depth int) []string {
	var out []string
	for e := err; e != nil && depth < maxChainDepth; depth++ {
		if branches := multierr.Errors(e); len(branches) > 1 {
			out = append(out, fmt.Sprintf("%T: %d errors", e, len(branches)))
			for _, branch := range branches {
				out = append(out, chain(branch, depth+1)...)
			}
			return out
		}
		out = append(out, fmt.Sprintf("%T: %v", e, e))
		e = errors.Unwrap(e)
	}
	return out
}

func (d *ErrorDump) fillPostgres(err error) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		d.PGCode, d.PGMessage, d.PGDetail = pgxErr.Code, pgxErr.Message, pgxErr.Detail
		d.PGTable, d.PGColumn, d.PGConstraint = pgxErr.TableName, pgxErr.ColumnName, pgxErr.ConstraintName
		return
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		d.PGCode, d.PGMessage, d.PGDetail = string(pqErr.Code), pqErr.Message, pqErr.Detail
		d.PGTable, d.PGColumn, d.PGConstraint = pqErr.Table, pqErr.Column, pqErr.Constraint
	}
}
