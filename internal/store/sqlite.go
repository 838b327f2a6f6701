package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contract-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	return &SQLiteStore{db: db}, nil
}

// sqliteDSN appends the pragmas as DSN parameters. busy_timeout and
// synchronous are per-connection, so they must apply to every connection the
// pool opens, not only the one that ran an Exec.
func sqliteDSN(dsn string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS models (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	type          TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	template_path TEXT NOT NULL,
	primary_query TEXT NOT NULL,
	variables     TEXT NOT NULL DEFAULT '[]',
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS artifacts (
	id              TEXT PRIMARY KEY,
	model_id        TEXT NOT NULL,
	fingerprint     TEXT NOT NULL,
	version         INTEGER NOT NULL,
	active          INTEGER NOT NULL DEFAULT 1,
	params          TEXT NOT NULL,
	data            TEXT,
	field_primary   TEXT NOT NULL DEFAULT '',
	field_secondary TEXT NOT NULL DEFAULT '',
	file_path       TEXT NOT NULL,
	generated_at    DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_version
	ON artifacts(model_id, fingerprint, version);
CREATE UNIQUE INDEX IF NOT EXISTS idx_artifacts_single_active
	ON artifacts(model_id, fingerprint) WHERE active = 1;
CREATE INDEX IF NOT EXISTS idx_artifacts_model ON artifacts(model_id, generated_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateModel(ctx context.Context, m model.Model) (*model.Model, error) {
	m.ID = uuid.New().String()
	now := time.Now().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now

	variablesJSON, err := json.Marshal(m.Variables)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal variables")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO models (id, title, type, description, template_path, primary_query, variables, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Title, m.Type, m.Description, m.TemplatePath, m.PrimaryQuery, string(variablesJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert model")
	}
	return &m, nil
}

func (s *SQLiteStore) UpdateModel(ctx context.Context, m *model.Model) error {
	m.UpdatedAt = time.Now().UTC()

	variablesJSON, err := json.Marshal(m.Variables)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal variables")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE models SET title = ?, type = ?, description = ?, template_path = ?, primary_query = ?, variables = ?, updated_at = ?
		 WHERE id = ?`,
		m.Title, m.Type, m.Description, m.TemplatePath, m.PrimaryQuery, string(variablesJSON), m.UpdatedAt, m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update model %s", m.ID)
	}
	return checkRowsAffected(res, "model", m.ID)
}

func (s *SQLiteStore) GetModel(ctx context.Context, id string) (*model.Model, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, type, description, template_path, primary_query, variables, created_at, updated_at
		 FROM models WHERE id = ?`, id)
	return scanModel(row)
}

func (s *SQLiteStore) ListModels(ctx context.Context) ([]model.Model, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, type, description, template_path, primary_query, variables, created_at, updated_at
		 FROM models ORDER BY created_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list models")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Model
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list models")
}

func (s *SQLiteStore) DeleteModel(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM models WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete model %s", id)
	}
	return checkRowsAffected(res, "model", id)
}

const artifactColumns = `id, model_id, fingerprint, version, active, params, data, field_primary, field_secondary, file_path, generated_at`

func (s *SQLiteStore) GetActiveArtifact(ctx context.Context, modelID, fingerprint string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE model_id = ? AND fingerprint = ? AND active = 1`,
		modelID, fingerprint)
	return scanArtifact(row)
}

func (s *SQLiteStore) ListActiveArtifacts(ctx context.Context, modelID string) ([]model.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE active = 1`
	var args []any
	if modelID != "" {
		query += ` AND model_id = ?`
		args = append(args, modelID)
	}
	query += ` ORDER BY generated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active artifacts")
	}
	defer rows.Close() //nolint:errcheck
	return collectArtifacts(rows)
}

func (s *SQLiteStore) ListArtifactVersions(ctx context.Context, modelID, fingerprint string) ([]model.Artifact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+artifactColumns+` FROM artifacts WHERE model_id = ? AND fingerprint = ? ORDER BY version DESC`,
		modelID, fingerprint)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list artifact versions")
	}
	defer rows.Close() //nolint:errcheck
	return collectArtifacts(rows)
}

func (s *SQLiteStore) MaxArtifactVersion(ctx context.Context, modelID, fingerprint string) (int, error) {
	var maxVersion sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(version) FROM artifacts WHERE model_id = ? AND fingerprint = ?`,
		modelID, fingerprint).Scan(&maxVersion)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: max artifact version")
	}
	return int(maxVersion.Int64), nil
}

func (s *SQLiteStore) InsertArtifact(ctx context.Context, a *model.Artifact) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}

	paramsJSON, err := json.Marshal(a.Params)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal params")
	}
	var dataJSON any
	if a.Data != nil {
		b, err := json.Marshal(a.Data)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal data")
		}
		dataJSON = string(b)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO artifacts (`+artifactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ModelID, a.Fingerprint, a.Version, boolToInt(a.Active), string(paramsJSON), dataJSON,
		a.Fields.Primary, a.Fields.Secondary, a.FilePath, a.GeneratedAt,
	)
	return eris.Wrap(err, "sqlite: insert artifact")
}

func (s *SQLiteStore) DeactivateArtifact(ctx context.Context, artifactID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE artifacts SET active = 0 WHERE id = ? AND active = 1`, artifactID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate artifact %s", artifactID)
	}
	return checkRowsAffected(res, "artifact", artifactID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(row rowScanner) (*model.Model, error) {
	var m model.Model
	var variablesJSON string
	err := row.Scan(&m.ID, &m.Title, &m.Type, &m.Description, &m.TemplatePath, &m.PrimaryQuery,
		&variablesJSON, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan model")
	}
	if err := json.Unmarshal([]byte(variablesJSON), &m.Variables); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal variables")
	}
	return &m, nil
}

func scanArtifact(row rowScanner) (*model.Artifact, error) {
	var a model.Artifact
	var active int
	var paramsJSON string
	var dataJSON sql.NullString
	err := row.Scan(&a.ID, &a.ModelID, &a.Fingerprint, &a.Version, &active, &paramsJSON, &dataJSON,
		&a.Fields.Primary, &a.Fields.Secondary, &a.FilePath, &a.GeneratedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan artifact")
	}
	a.Active = active != 0
	if err := json.Unmarshal([]byte(paramsJSON), &a.Params); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal params")
	}
	if dataJSON.Valid {
		if err := json.Unmarshal([]byte(dataJSON.String), &a.Data); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal data")
		}
	}
	return &a, nil
}

func collectArtifacts(rows *sql.Rows) ([]model.Artifact, error) {
	var out []model.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: collect artifacts")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", kind, id)
	}
	return nil
}
