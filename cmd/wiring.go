package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/afero"

	"github.com/sells-group/contract-cli/internal/contract"
	"github.com/sells-group/contract-cli/internal/files"
	"github.com/sells-group/contract-cli/internal/model"
	"github.com/sells-group/contract-cli/internal/query"
	"github.com/sells-group/contract-cli/internal/render"
	"github.com/sells-group/contract-cli/internal/store"
)

// env bundles the wired components shared by all commands.
type env struct {
	store    store.Store
	files    *files.Store
	executor query.Executor
	svc      *contract.Service
}

func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	exec, err := initExecutor(ctx)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	fs := files.New(afero.NewOsFs(), cfg.Files.Dir)
	svc := contract.NewService(st, exec, render.NewDocx(), fs)

	return &env{store: st, files: fs, executor: exec, svc: svc}, nil
}

func (e *env) Close() {
	e.store.Close() //nolint:errcheck
	if c, ok := e.executor.(interface{ Close() error }); ok {
		c.Close() //nolint:errcheck
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "contract.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initExecutor(ctx context.Context) (query.Executor, error) {
	switch cfg.Query.Driver {
	case "sqlite":
		return query.NewSQL("sqlite", cfg.Query.DatabaseURL, cfg.Query.RatePerSec, cfg.Query.Burst), nil
	case "postgres":
		return query.NewPostgres(ctx, cfg.Query.DatabaseURL, cfg.Query.RatePerSec, cfg.Query.Burst)
	default:
		return nil, eris.Errorf("unsupported query driver: %s", cfg.Query.Driver)
	}
}

// parseParams turns --param key=value pairs into a parameter set. Values
// stay strings; the normalizer and the query executor handle typing.
func parseParams(pairs []string) (model.Params, error) {
	params := make(model.Params, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, eris.Errorf("invalid --param %q, expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}
