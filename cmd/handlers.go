package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/contract-cli/internal/contract"
	"github.com/sells-group/contract-cli/internal/files"
	"github.com/sells-group/contract-cli/internal/model"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// api holds the HTTP handlers over the wired environment.
type api struct {
	env *env
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError maps the engine's error taxonomy to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case contract.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case contract.IsInvalidInput(err) || errors.Is(err, files.ErrUnsupportedExtension):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// -- models --

func (a *api) listModels(w http.ResponseWriter, r *http.Request) {
	models, err := a.env.store.ListModels(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if models == nil {
		models = []model.Model{}
	}
	writeJSON(w, http.StatusOK, models)
}

func (a *api) createModel(w http.ResponseWriter, r *http.Request) {
	var m model.Model
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	created, err := a.env.svc.CreateModel(r.Context(), m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *api) getModel(w http.ResponseWriter, r *http.Request) {
	m, err := a.env.svc.Model(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *api) updateModel(w http.ResponseWriter, r *http.Request) {
	var m model.Model
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	m.ID = chi.URLParam(r, "id")

	updated, err := a.env.svc.UpdateModel(r.Context(), &m)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (a *api) deleteModel(w http.ResponseWriter, r *http.Request) {
	if err := a.env.svc.DeleteModel(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *api) uploadTemplate(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file uploaded"})
		return
	}
	defer file.Close() //nolint:errcheck

	path, err := a.env.files.SaveTemplate(header.Filename, file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"template_path": path})
}

func (a *api) downloadTemplate(w http.ResponseWriter, r *http.Request) {
	m, err := a.env.svc.Model(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	a.sendFile(w, m.TemplatePath, m.Title+".docx")
}

// -- contracts --

func (a *api) generateContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ModelID string       `json:"model_id"`
		Params  model.Params `json:"params"`
		Force   bool         `json:"force"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.ModelID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "model_id is required"})
		return
	}

	artifact, err := a.env.svc.Generate(r.Context(), req.ModelID, req.Params, req.Force)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifact)
}

func (a *api) listActiveContracts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := a.env.svc.ListActive(r.Context(), r.URL.Query().Get("model_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if artifacts == nil {
		artifacts = []model.Artifact{}
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (a *api) contractHistory(w http.ResponseWriter, r *http.Request) {
	fingerprint := r.URL.Query().Get("fingerprint")
	if fingerprint == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "fingerprint is required"})
		return
	}

	artifacts, err := a.env.svc.History(r.Context(), chi.URLParam(r, "modelID"), fingerprint)
	if err != nil {
		writeError(w, err)
		return
	}
	if artifacts == nil {
		artifacts = []model.Artifact{}
	}
	writeJSON(w, http.StatusOK, artifacts)
}

// contractHistoryByParams resolves a parameter set to its fingerprint and
// returns that history; parameter equivalence is explicit per request.
func (a *api) contractHistoryByParams(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Params model.Params `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	artifacts, err := a.env.svc.HistoryForParams(r.Context(), chi.URLParam(r, "modelID"), req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	if artifacts == nil {
		artifacts = []model.Artifact{}
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (a *api) downloadContract(w http.ResponseWriter, r *http.Request) {
	artifact, err := a.env.svc.ActiveArtifact(r.Context(),
		chi.URLParam(r, "modelID"), chi.URLParam(r, "fingerprint"))
	if err != nil {
		writeError(w, err)
		return
	}
	a.sendFile(w, artifact.FilePath, "")
}

func (a *api) testQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query  string       `json:"query"`
		Params model.Params `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	rows, err := a.env.svc.TestQuery(r.Context(), req.Query, req.Params)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []model.Row{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (a *api) sendFile(w http.ResponseWriter, path, downloadName string) {
	f, err := a.env.files.Open(path)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "file not found"})
		return
	}
	defer f.Close() //nolint:errcheck

	if downloadName != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+files.Slug(downloadName)+`"`)
	}
	w.Header().Set("Content-Type", docxContentType)
	if _, err := io.Copy(w, f); err != nil {
		zap.L().Warn("file download interrupted", zap.String("path", path), zap.Error(err))
	}
}
