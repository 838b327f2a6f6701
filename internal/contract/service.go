// Package contract implements the content-addressed generation and
// versioning engine: parameter normalization, fingerprinting, staleness
// detection, and the artifact version lifecycle.
package contract

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/files"
	"github.com/sells-group/contract-cli/internal/model"
	"github.com/sells-group/contract-cli/internal/query"
	"github.com/sells-group/contract-cli/internal/render"
	"github.com/sells-group/contract-cli/internal/store"
)

// Template data tree keys are a contract with template authors and follow
// the established template vocabulary.
const (
	primaryDataKey = "principal"
	todayDataKey   = "hoje"
)

// Service orchestrates contract generation: it exclusively owns artifact
// version transitions; no other component mutates active flags or versions.
type Service struct {
	store    store.Store
	executor query.Executor
	renderer render.Renderer
	files    *files.Store

	// locks serializes generation per (model, fingerprint) so the version
	// read-then-insert cannot race with itself.
	locks *keyedMutex
	now   func() time.Time
}

// NewService wires the generation engine.
func NewService(st store.Store, exec query.Executor, r render.Renderer, fs *files.Store) *Service {
	return &Service{
		store:    st,
		executor: exec,
		renderer: r,
		files:    fs,
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Model resolves a model by id, reporting NotFound when absent.
func (s *Service) Model(ctx context.Context, id string) (*model.Model, error) {
	m, err := s.store.GetModel(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "get model", Err: err}
	}
	if m == nil {
		return nil, &NotFoundError{Kind: "model", ID: id}
	}
	return m, nil
}

// Generate produces (or reuses) the document for a model and parameter set.
//
// Reuse applies when an active artifact exists for the fingerprint, force is
// false, its output file is still present, and the model has not been
// modified since the artifact was generated. Otherwise the engine fetches
// data, renders, persists a new artifact with the next version for the
// (model, fingerprint) pair, and deactivates the superseded one.
func (s *Service) Generate(ctx context.Context, modelID string, params model.Params, force bool) (*model.Artifact, error) {
	m, err := s.Model(ctx, modelID)
	if err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(modelID, params)

	unlock := s.locks.Lock(modelID + ":" + fingerprint)
	defer unlock()

	active, err := s.store.GetActiveArtifact(ctx, modelID, fingerprint)
	if err != nil {
		return nil, &StorageError{Op: "lookup active artifact", Err: err}
	}

	if active != nil && !force && s.files.Exists(active.FilePath) && !m.UpdatedAt.After(active.GeneratedAt) {
		zap.L().Debug("reusing artifact",
			zap.String("model_id", modelID),
			zap.String("fingerprint", fingerprint),
			zap.Int("version", active.Version),
		)
		return active, nil
	}

	if ext := strings.ToLower(filepath.Ext(m.TemplatePath)); ext != ".docx" {
		return nil, &InvalidInputError{Reason: "unsupported template format " + ext + ", only .docx templates are supported"}
	}
	if !s.files.Exists(m.TemplatePath) {
		return nil, &NotFoundError{Kind: "template", ID: m.TemplatePath}
	}

	// Query engines receive the raw parameter values, never the
	// normalized form.
	data, err := s.FetchData(ctx, m, params)
	if err != nil {
		return nil, err
	}

	template, err := s.files.ReadTemplate(m.TemplatePath)
	if err != nil {
		return nil, &StorageError{Op: "read template", Err: err}
	}

	now := s.now().UTC()
	tree := buildDataTree(data, now)

	// Version numbers scan the full history, never just the active record:
	// they must not be reused even after artifacts are deactivated.
	maxVersion, err := s.store.MaxArtifactVersion(ctx, modelID, fingerprint)
	if err != nil {
		return nil, &StorageError{Op: "max artifact version", Err: err}
	}
	version := maxVersion + 1

	output, err := s.renderer.Render(template, tree)
	if err != nil {
		if errors.Is(err, render.ErrUnsupportedFormat) {
			return nil, &InvalidInputError{Reason: "unsupported template format, only .docx templates are supported"}
		}
		return nil, &UpstreamError{Op: "render", Err: err}
	}

	filePath, err := s.files.WriteOutput(m.Title, fingerprint, version, output)
	if err != nil {
		return nil, &StorageError{Op: "write output", Err: err}
	}

	// The file is on disk but no record exists yet; a crash here orphans
	// the file and the next request regenerates a fresh version.
	if active != nil {
		if err := s.store.DeactivateArtifact(ctx, active.ID); err != nil {
			return nil, &StorageError{Op: "deactivate artifact", Err: err}
		}
	}

	artifact := &model.Artifact{
		ModelID:     modelID,
		Fingerprint: fingerprint,
		Version:     version,
		Active:      true,
		Params:      params,
		Data:        data,
		Fields:      IdentifyFields(data),
		FilePath:    filePath,
		GeneratedAt: now,
	}
	if err := s.store.InsertArtifact(ctx, artifact); err != nil {
		return nil, &StorageError{Op: "insert artifact", Err: err}
	}

	zap.L().Info("contract generated",
		zap.String("model_id", modelID),
		zap.String("fingerprint", fingerprint),
		zap.Int("version", version),
		zap.Bool("forced", force),
	)
	return artifact, nil
}

// FetchData executes the model's primary query and each declared variable's
// query, all parameterized by the original parameter set. Variables without
// a query get an empty result set.
func (s *Service) FetchData(ctx context.Context, m *model.Model, params model.Params) (*model.ContractData, error) {
	primary, err := s.executor.Execute(ctx, m.PrimaryQuery, params)
	if err != nil {
		return nil, &UpstreamError{Op: "primary query", Err: err}
	}

	variables := make(map[string][]model.Row, len(m.Variables))
	for _, v := range m.Variables {
		if strings.TrimSpace(v.Query) == "" {
			variables[v.Name] = []model.Row{}
			continue
		}
		rows, err := s.executor.Execute(ctx, v.Query, params)
		if err != nil {
			return nil, &UpstreamError{Op: "variable query " + v.Name, Err: err}
		}
		if rows == nil {
			rows = []model.Row{}
		}
		variables[v.Name] = rows
	}

	return &model.ContractData{Primary: primary, Variables: variables}, nil
}

// buildDataTree assembles the template-fill tree: the primary query's first
// row merged under the primary key together with today's date, plus one
// entry per variable.
func buildDataTree(data *model.ContractData, now time.Time) map[string]any {
	primary := make(map[string]any)
	if len(data.Primary) > 0 {
		for k, v := range data.Primary[0] {
			primary[k] = v
		}
	}
	primary[todayDataKey] = now

	tree := map[string]any{primaryDataKey: primary}
	for name, rows := range data.Variables {
		tree[name] = rows
	}
	return tree
}

// ActiveArtifact returns the active artifact for (modelID, fingerprint),
// reporting NotFound when none exists.
func (s *Service) ActiveArtifact(ctx context.Context, modelID, fingerprint string) (*model.Artifact, error) {
	a, err := s.store.GetActiveArtifact(ctx, modelID, fingerprint)
	if err != nil {
		return nil, &StorageError{Op: "lookup active artifact", Err: err}
	}
	if a == nil {
		return nil, &NotFoundError{Kind: "artifact", ID: modelID + ":" + fingerprint}
	}
	return a, nil
}

// ListActive returns all active artifacts, optionally filtered by model,
// newest first.
func (s *Service) ListActive(ctx context.Context, modelID string) ([]model.Artifact, error) {
	out, err := s.store.ListActiveArtifacts(ctx, modelID)
	if err != nil {
		return nil, &StorageError{Op: "list active artifacts", Err: err}
	}
	return out, nil
}

// History returns every version ever generated for (modelID, fingerprint),
// newest first, deactivated entries included.
func (s *Service) History(ctx context.Context, modelID, fingerprint string) ([]model.Artifact, error) {
	out, err := s.store.ListArtifactVersions(ctx, modelID, fingerprint)
	if err != nil {
		return nil, &StorageError{Op: "list artifact versions", Err: err}
	}
	return out, nil
}

// HistoryForParams resolves the parameter set to its fingerprint and returns
// that history. Parameter equivalence is explicit here; there is no
// process-wide "last parameters" state.
func (s *Service) HistoryForParams(ctx context.Context, modelID string, params model.Params) ([]model.Artifact, error) {
	return s.History(ctx, modelID, Fingerprint(modelID, params))
}

// CreateModel registers a model whose template binary is already stored at
// m.TemplatePath.
func (s *Service) CreateModel(ctx context.Context, m model.Model) (*model.Model, error) {
	if m.Title == "" || m.PrimaryQuery == "" || m.TemplatePath == "" {
		return nil, &InvalidInputError{Reason: "title, primary_query and template_path are required"}
	}
	created, err := s.store.CreateModel(ctx, m)
	if err != nil {
		return nil, &StorageError{Op: "create model", Err: err}
	}
	return created, nil
}

// UpdateModel applies changes to an existing model. Replacing the template
// binary deletes the previous one best-effort; the updated-at bump is what
// invalidates reuse of existing artifacts.
func (s *Service) UpdateModel(ctx context.Context, m *model.Model) (*model.Model, error) {
	current, err := s.Model(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	if m.TemplatePath != "" && m.TemplatePath != current.TemplatePath {
		if err := s.files.Remove(current.TemplatePath); err != nil {
			zap.L().Warn("could not remove replaced template",
				zap.String("path", current.TemplatePath),
				zap.Error(err),
			)
		}
	} else {
		m.TemplatePath = current.TemplatePath
	}

	if err := s.store.UpdateModel(ctx, m); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{Kind: "model", ID: m.ID}
		}
		return nil, &StorageError{Op: "update model", Err: err}
	}
	return m, nil
}

// DeleteModel removes a model and its template binary. Artifact records are
// kept; history outlives the model. The binary is removed only after the
// record delete succeeds so a failed delete leaves the model usable.
func (s *Service) DeleteModel(ctx context.Context, id string) error {
	m, err := s.Model(ctx, id)
	if err != nil {
		return err
	}

	if err := s.store.DeleteModel(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &NotFoundError{Kind: "model", ID: id}
		}
		return &StorageError{Op: "delete model", Err: err}
	}

	if m.TemplatePath != "" {
		if err := s.files.Remove(m.TemplatePath); err != nil {
			zap.L().Warn("could not remove template binary",
				zap.String("path", m.TemplatePath),
				zap.Error(err),
			)
		}
	}
	return nil
}

// TestQuery runs an ad-hoc query through the shared executor.
func (s *Service) TestQuery(ctx context.Context, queryText string, params model.Params) ([]model.Row, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, &InvalidInputError{Reason: "query text is required"}
	}
	rows, err := s.executor.Execute(ctx, queryText, params)
	if err != nil {
		return nil, &UpstreamError{Op: "test query", Err: err}
	}
	return rows, nil
}
