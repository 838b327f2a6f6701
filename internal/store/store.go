package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contract-cli/internal/model"
)

// ErrNotFound reports an update or delete against an absent record.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for models and generated
// artifacts. Get lookups return (nil, nil) when the record is absent.
//
// Artifact lifecycle contract: version numbers are scoped to
// (model_id, fingerprint) and never reused; at most one artifact per pair is
// active, enforced by a partial unique index. Only the generation
// orchestrator calls DeactivateArtifact and InsertArtifact.
type Store interface {
	// Models
	CreateModel(ctx context.Context, m model.Model) (*model.Model, error)
	UpdateModel(ctx context.Context, m *model.Model) error
	GetModel(ctx context.Context, id string) (*model.Model, error)
	ListModels(ctx context.Context) ([]model.Model, error)
	DeleteModel(ctx context.Context, id string) error

	// Artifacts
	GetActiveArtifact(ctx context.Context, modelID, fingerprint string) (*model.Artifact, error)
	ListActiveArtifacts(ctx context.Context, modelID string) ([]model.Artifact, error)
	ListArtifactVersions(ctx context.Context, modelID, fingerprint string) ([]model.Artifact, error)
	MaxArtifactVersion(ctx context.Context, modelID, fingerprint string) (int, error)
	InsertArtifact(ctx context.Context, a *model.Artifact) error
	DeactivateArtifact(ctx context.Context, artifactID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
