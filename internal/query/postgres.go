package query

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/contract-cli/internal/model"
)

// PostgresExecutor runs queries through a pgx connection pool. Connections
// are established lazily by the pool and reused across requests.
type PostgresExecutor struct {
	pool    *pgxpool.Pool
	limiter *rate.Limiter
}

// NewPostgres creates an executor backed by a pgx pool for connString.
func NewPostgres(ctx context.Context, connString string, ratePerSec float64, burst int) (*PostgresExecutor, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "query: postgres pool")
	}
	e := &PostgresExecutor{pool: pool}
	if ratePerSec > 0 {
		if burst <= 0 {
			burst = 1
		}
		e.limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}
	return e, nil
}

func (e *PostgresExecutor) Execute(ctx context.Context, queryText string, params model.Params) ([]model.Row, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "query: rate limit wait")
		}
	}

	translated := translatePlaceholders(queryText, params)
	rows, err := e.pool.Query(ctx, translated, pgx.NamedArgs(params))
	if err != nil {
		return nil, eris.Wrap(err, "query: execute")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var out []model.Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "query: values")
		}
		row := make(model.Row, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "query: rows")
	}
	return out, nil
}

// Close releases the pool.
func (e *PostgresExecutor) Close() error {
	e.pool.Close()
	return nil
}
