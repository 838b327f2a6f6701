package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-cli/internal/model"
)

// pgxPool is the subset of pgxpool.Pool the store uses; pgxmock implements
// it for tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgxPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// newPostgresWithPool wires an existing pool; used by tests with pgxmock.
func newPostgresWithPool(pool pgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS models (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	type          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	template_path TEXT NOT NULL,
	primary_query TEXT NOT NULL,
	variables     JSONB NOT NULL DEFAULT '[]',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS artifacts (
	id              TEXT PRIMARY KEY,
	model_id        TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	version         INTEGER NOT NULL,
	active          BOOLEAN NOT NULL DEFAULT true,
	params          JSONB NOT NULL,
	data            JSONB,
	field_primary   TEXT NOT NULL DEFAULT '',
	field_secondary TEXT NOT NULL DEFAULT '',
	file_path       TEXT NOT NULL,
	generated_at    TIMESTAMPTZ NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_version
	ON artifacts(model_id, fingerprint, version);
CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_single_active
	ON artifacts(model_id, fingerprint) WHERE active;
CREATE INDEX IF NOT EXISTS idx_artifacts_model ON artifacts(model_id, generated_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateModel(ctx context.Context, m model.Model) (*model.Model, error) {
	m.ID = uuid.New().String()
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	variablesJSON, err := json.Marshal(m.Variables)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal variables")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO models (id, title, type, description, template_path, primary_query, variables, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.Title, m.Type, m.Description, m.TemplatePath, m.PrimaryQuery, string(variablesJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert model")
	}
	return &m, nil
}

func (s *PostgresStore) UpdateModel(ctx context.Context, m *model.Model) error {
	m.UpdatedAt = time.Now().UTC()

	variablesJSON, err := json.Marshal(m.Variables)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal variables")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE models SET title = $1, type = $2, description = $3, template_path = $4, primary_query = $5, variables = $6, updated_at = $7
		 WHERE id = $8`,
		m.Title, m.Type, m.Description, m.TemplatePath, m.PrimaryQuery, string(variablesJSON), m.UpdatedAt, m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update model %s", m.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "model %s", m.ID)
	}
	return nil
}

func (s *PostgresStore) GetModel(ctx context.Context, id string) (*model.Model, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, title, type, description, template_path, primary_query, variables, created_at, updated_at
		 FROM models WHERE id = $1`, id)
	return scanModelPgx(row)
}

func (s *PostgresStore) ListModels(ctx context.Context) ([]model.Model, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, type, description, template_path, primary_query, variables, created_at, updated_at
		 FROM models ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list models")
	}
	defer rows.Close()

	var out []model.Model
	for rows.Next() {
		m, err := scanModelPgx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list models")
}

func (s *PostgresStore) DeleteModel(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM models WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete model %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "model %s", id)
	}
	return nil
}

func (s *PostgresStore) GetActiveArtifact(ctx context.Context, modelID, fingerprint string) (*model.Artifact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE model_id = $1 AND fingerprint = $2 AND active`,
		modelID, fingerprint)
	return scanArtifactPgx(row)
}

func (s *PostgresStore) ListActiveArtifacts(ctx context.Context, modelID string) ([]model.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE active`
	var args []any
	if modelID != "" {
		query += ` AND model_id = $1`
		args = append(args, modelID)
	}
	query += ` ORDER BY generated_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active artifacts")
	}
	defer rows.Close()
	return collectArtifactsPgx(rows)
}

func (s *PostgresStore) ListArtifactVersions(ctx context.Context, modelID, fingerprint string) ([]model.Artifact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE model_id = $1 AND fingerprint = $2 ORDER BY version DESC`,
		modelID, fingerprint)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list artifact versions")
	}
	defer rows.Close()
	return collectArtifactsPgx(rows)
}

func (s *PostgresStore) MaxArtifactVersion(ctx context.Context, modelID, fingerprint string) (int, error) {
	var maxVersion *int
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(version) FROM artifacts WHERE model_id = $1 AND fingerprint = $2`,
		modelID, fingerprint).Scan(&maxVersion)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: max artifact version")
	}
	if maxVersion == nil {
		return 0, nil
	}
	return *maxVersion, nil
}

func (s *PostgresStore) InsertArtifact(ctx context.Context, a *model.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	paramsJSON, err := json.Marshal(a.Params)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal params")
	}
	var dataJSON any
	if a.Data != nil {
		b, err := json.Marshal(a.Data)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal data")
		}
		dataJSON = string(b)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO artifacts (`+artifactColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.ModelID, a.Fingerprint, a.Version, a.Active, string(paramsJSON), dataJSON,
		a.Fields.Primary, a.Fields.Secondary, a.FilePath, a.GeneratedAt,
	)
	return eris.Wrap(err, "postgres: insert artifact")
}

func (s *PostgresStore) DeactivateArtifact(ctx context.Context, artifactID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE artifacts SET active = false WHERE id = $1 AND active`, artifactID)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate artifact %s", artifactID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "artifact %s", artifactID)
	}
	return nil
}

func scanModelPgx(row pgx.Row) (*model.Model, error) {
	var m model.Model
	var variablesJSON []byte
	err := row.Scan(&m.ID, &m.Title, &m.Type, &m.Description, &m.TemplatePath, &m.PrimaryQuery,
		&variablesJSON, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan model")
	}
	if err := json.Unmarshal(variablesJSON, &m.Variables); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal variables")
	}
	return &m, nil
}

func scanArtifactPgx(row pgx.Row) (*model.Artifact, error) {
	var a model.Artifact
	var paramsJSON []byte
	var dataJSON []byte
	err := row.Scan(&a.ID, &a.ModelID, &a.Fingerprint, &a.Version, &a.Active, &paramsJSON, &dataJSON,
		&a.Fields.Primary, &a.Fields.Secondary, &a.FilePath, &a.GeneratedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan artifact")
	}
	if err := json.Unmarshal(paramsJSON, &a.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &a.Data); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal data")
		}
	}
	return &a, nil
}

func collectArtifactsPgx(rows pgx.Rows) ([]model.Artifact, error) {
	var out []model.Artifact
	for rows.Next() {
		a, err := scanArtifactPgx(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: collect artifacts")
}
