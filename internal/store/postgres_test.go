package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-cli/internal/model"
)

func newMockedPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPostgresWithPool(mock), mock
}

var modelColumns = []string{
	"id", "title", "type", "description", "template_path", "primary_query",
	"variables", "created_at", "updated_at",
}

func TestPostgresGetModel(t *testing.T) {
	s, mock := newMockedPostgres(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`SELECT (.+) FROM models WHERE id =`).
		WithArgs("m1").
		WillReturnRows(pgxmock.NewRows(modelColumns).AddRow(
			"m1", "Contrato", "cessao", "", "uploads/templates/c.docx",
			"SELECT 1", []byte(`[{"name":"parcelas","kind":"table"}]`), now, now,
		))

	m, err := s.GetModel(context.Background(), "m1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "Contrato", m.Title)
	require.Len(t, m.Variables, 1)
	assert.Equal(t, model.VariableTable, m.Variables[0].Kind)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetModel_Absent(t *testing.T) {
	s, mock := newMockedPostgres(t)

	mock.ExpectQuery(`SELECT (.+) FROM models WHERE id =`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	m, err := s.GetModel(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, m)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateModel(t *testing.T) {
	s, mock := newMockedPostgres(t)

	mock.ExpectExec(`INSERT INTO models`).
		WithArgs(pgxmock.AnyArg(), "Contrato", "cessao", "", "uploads/templates/c.docx",
			"SELECT 1", `[]`, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	m, err := s.CreateModel(context.Background(), model.Model{
		Title:        "Contrato",
		Type:         "cessao",
		TemplatePath: "uploads/templates/c.docx",
		PrimaryQuery: "SELECT 1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateModel_NotFound(t *testing.T) {
	s, mock := newMockedPostgres(t)

	mock.ExpectExec(`UPDATE models SET`).
		WithArgs("Contrato", "", "", "x.docx", "SELECT 1", `null`, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateModel(context.Background(), &model.Model{
		ID: "missing", Title: "Contrato", TemplatePath: "x.docx", PrimaryQuery: "SELECT 1",
	})
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMaxArtifactVersion_EmptyHistory(t *testing.T) {
	s, mock := newMockedPostgres(t)

	mock.ExpectQuery(`SELECT MAX\(version\) FROM artifacts`).
		WithArgs("m1", "fp").
		WillReturnRows(pgxmock.NewRows([]string{"max"}).AddRow(nil))

	maxVersion, err := s.MaxArtifactVersion(context.Background(), "m1", "fp")
	require.NoError(t, err)
	assert.Equal(t, 0, maxVersion)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertArtifact(t *testing.T) {
	s, mock := newMockedPostgres(t)

	mock.ExpectExec(`INSERT INTO artifacts`).
		WithArgs(pgxmock.AnyArg(), "m1", "fp", 1, true, pgxmock.AnyArg(), pgxmock.AnyArg(),
			"acme", "123", "out.docx", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	a := &model.Artifact{
		ModelID:     "m1",
		Fingerprint: "fp",
		Version:     1,
		Active:      true,
		Params:      model.Params{"id": "42"},
		Data:        &model.ContractData{Primary: []model.Row{{"cliente": "ACME"}}},
		Fields:      model.FieldIdentifiers{Primary: "acme", Secondary: "123"},
		FilePath:    "out.docx",
		GeneratedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertArtifact(context.Background(), a))
	assert.NotEmpty(t, a.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDeactivateArtifact_NotFound(t *testing.T) {
	s, mock := newMockedPostgres(t)

	mock.ExpectExec(`UPDATE artifacts SET active = false`).
		WithArgs("missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.DeactivateArtifact(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
