package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contract-cli/internal/contract"
	"github.com/sells-group/contract-cli/internal/files"
	"github.com/sells-group/contract-cli/internal/model"
	"github.com/sells-group/contract-cli/internal/render"
	"github.com/sells-group/contract-cli/internal/store"
)

type stubExecutor struct {
	rows map[string][]model.Row
}

func (s *stubExecutor) Execute(ctx context.Context, queryText string, params model.Params) ([]model.Row, error) {
	return s.rows[queryText], nil
}

func newServerEnv(t *testing.T) *env {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	fs := files.New(afero.NewMemMapFs(), "uploads")
	exec := &stubExecutor{rows: map[string][]model.Row{
		"SELECT 1": {{"razao_social": "Empresa Teste ME", "cnpj": "12345678901234"}},
	}}

	return &env{
		store:    st,
		files:    fs,
		executor: exec,
		svc:      contract.NewService(st, exec, render.NewDocx(), fs),
	}
}

func minimalDocx(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:t>{principal.razao_social}</w:t>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func uploadTemplate(t *testing.T, srv *httptest.Server, name string, content []byte) *http.Response {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/models/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close() //nolint:errcheck

	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthEndpoint(t *testing.T) {
	srv := httptest.NewServer(buildRouter(newServerEnv(t)))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestContractLifecycleOverHTTP(t *testing.T) {
	srv := httptest.NewServer(buildRouter(newServerEnv(t)))
	defer srv.Close()

	// Upload the template binary.
	resp := uploadTemplate(t, srv, "cessao.docx", minimalDocx(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	templatePath := decodeBody[map[string]string](t, resp)["template_path"]
	require.NotEmpty(t, templatePath)

	// Register the model.
	resp = postJSON(t, srv.URL+"/api/models/", model.Model{
		Title:        "Contrato de Cessão",
		Type:         "cessao",
		TemplatePath: templatePath,
		PrimaryQuery: "SELECT 1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[model.Model](t, resp)
	require.NotEmpty(t, created.ID)

	// First generation creates version 1.
	generateReq := map[string]any{"model_id": created.ID, "params": map[string]any{"id": "42"}}
	resp = postJSON(t, srv.URL+"/api/contracts/generate", generateReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeBody[model.Artifact](t, resp)
	assert.Equal(t, 1, first.Version)
	assert.True(t, first.Active)
	assert.Equal(t, "empresa teste me", first.Fields.Primary)

	// The same request reuses the artifact.
	resp = postJSON(t, srv.URL+"/api/contracts/generate", generateReq)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reused := decodeBody[model.Artifact](t, resp)
	assert.Equal(t, first.ID, reused.ID)

	// Force produces version 2 and supersedes version 1.
	resp = postJSON(t, srv.URL+"/api/contracts/generate",
		map[string]any{"model_id": created.ID, "params": map[string]any{"id": "42"}, "force": true})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	forced := decodeBody[model.Artifact](t, resp)
	assert.Equal(t, 2, forced.Version)

	// History lists both versions, newest first.
	resp, err := http.Get(srv.URL + "/api/contracts/" + created.ID + "/history?fingerprint=" + first.Fingerprint)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeBody[[]model.Artifact](t, resp)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].Version)
	assert.False(t, history[1].Active)

	// History by parameter set resolves to the same fingerprint.
	resp = postJSON(t, srv.URL+"/api/contracts/"+created.ID+"/history",
		map[string]any{"params": map[string]any{"id": "42"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	byParams := decodeBody[[]model.Artifact](t, resp)
	assert.Len(t, byParams, 2)

	// Download the active version.
	resp, err = http.Get(srv.URL + "/api/contracts/" + created.ID + "/" + first.Fingerprint + "/download")
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, docxContentType, resp.Header.Get("Content-Type"))

	// Active listing filters by model.
	resp, err = http.Get(srv.URL + "/api/contracts/?model_id=" + created.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	active := decodeBody[[]model.Artifact](t, resp)
	require.Len(t, active, 1)
	assert.Equal(t, 2, active[0].Version)
}

func TestGenerate_UnknownModelReturns404(t *testing.T) {
	srv := httptest.NewServer(buildRouter(newServerEnv(t)))
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/contracts/generate",
		map[string]any{"model_id": "missing", "params": map[string]any{}})
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGenerate_RequiresModelID(t *testing.T) {
	srv := httptest.NewServer(buildRouter(newServerEnv(t)))
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/contracts/generate", map[string]any{"params": map[string]any{}})
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpload_RejectsNonDocx(t *testing.T) {
	srv := httptest.NewServer(buildRouter(newServerEnv(t)))
	defer srv.Close()

	resp := uploadTemplate(t, srv, "contrato.pdf", []byte("%PDF"))
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestModelDeleteOverHTTP(t *testing.T) {
	e := newServerEnv(t)
	srv := httptest.NewServer(buildRouter(e))
	defer srv.Close()

	resp := uploadTemplate(t, srv, "cessao.docx", minimalDocx(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	templatePath := decodeBody[map[string]string](t, resp)["template_path"]

	resp = postJSON(t, srv.URL+"/api/models/", model.Model{
		Title: "Contrato", Type: "c", TemplatePath: templatePath, PrimaryQuery: "SELECT 1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[model.Model](t, resp)

	// Generate before deleting; the delete must succeed anyway and the
	// artifact history must remain queryable.
	resp = postJSON(t, srv.URL+"/api/contracts/generate",
		map[string]any{"model_id": created.ID, "params": map[string]any{"id": "42"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	artifact := decodeBody[model.Artifact](t, resp)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/models/"+created.ID, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.False(t, e.files.Exists(templatePath), "template binary is removed with the model")

	resp, err = http.Get(srv.URL + "/api/models/" + created.ID)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/contracts/" + created.ID + "/history?fingerprint=" + artifact.Fingerprint)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeBody[[]model.Artifact](t, resp)
	assert.Len(t, history, 1)
}
