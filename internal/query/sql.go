package query

import (
	"context"
	"database/sql"
	"sync"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contract-cli/internal/model"
)

// SQLExecutor runs queries through database/sql. The handle is a shared,
// long-lived resource opened lazily on first use and reused across requests;
// each query commits independently, no transaction spans a generation.
type SQLExecutor struct {
	driver  string
	dsn     string
	limiter *rate.Limiter

	once    sync.Once
	db      *sql.DB
	openErr error
}

// NewSQL creates an executor for the given database/sql driver and DSN.
// ratePerSec <= 0 disables rate limiting.
func NewSQL(driver, dsn string, ratePerSec float64, burst int) *SQLExecutor {
	e := &SQLExecutor{driver: driver, dsn: dsn}
	if ratePerSec > 0 {
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return e
}

func (e *SQLExecutor) open() {
	e.db, e.openErr = sql.Open(e.driver, e.dsn)
	if e.openErr != nil {
		e.openErr = eris.Wrapf(e.openErr, "query: open %s", e.driver)
	}
}

func (e *SQLExecutor) Execute(ctx context.Context, queryText string, params model.Params) ([]model.Row, error) {
	e.once.Do(e.open)
	if e.openErr != nil {
		return nil, e.openErr
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "query: rate limit wait")
		}
	}

	translated := translatePlaceholders(queryText, params)
	args := make([]any, 0, len(params))
	for key, value := range params {
		args = append(args, sql.Named(key, value))
	}

	rows, err := e.db.QueryContext(ctx, translated, args...)
	if err != nil {
		return nil, eris.Wrap(err, "query: execute")
	}
	defer rows.Close() //nolint:errcheck

	return scanRows(rows)
}

// Close releases the shared handle if it was ever opened.
func (e *SQLExecutor) Close() error {
	if e.db == nil {
		return nil
	}
	return e.db.Close()
}

func scanRows(rows *sql.Rows) ([]model.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "query: columns")
	}

	var out []model.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "query: scan")
		}

		row := make(model.Row, len(cols))
		for i, col := range cols {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "query: rows")
	}
	return out, nil
}
