// Package files owns the template and output binaries on disk. All access
// goes through an afero filesystem so tests can run on memory.
package files

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/afero"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ErrUnsupportedExtension reports a template upload that is not a .docx file.
var ErrUnsupportedExtension = eris.New("files: only .docx templates are supported")

// Store persists template binaries and generated outputs under a base
// directory.
type Store struct {
	fs           afero.Fs
	templatesDir string
	outputsDir   string
}

// New creates a file store rooted at baseDir.
func New(fs afero.Fs, baseDir string) *Store {
	return &Store{
		fs:           fs,
		templatesDir: filepath.Join(baseDir, "templates"),
		outputsDir:   filepath.Join(baseDir, "contracts"),
	}
}

// SaveTemplate writes an uploaded template binary under a unique name and
// returns its path. Only .docx uploads are accepted.
func (s *Store) SaveTemplate(originalName string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext != ".docx" {
		return "", ErrUnsupportedExtension
	}

	if err := s.fs.MkdirAll(s.templatesDir, 0o755); err != nil {
		return "", eris.Wrap(err, "files: create templates dir")
	}

	base := strings.TrimSuffix(filepath.Base(originalName), filepath.Ext(originalName))
	name := fmt.Sprintf("%s-%s%s", Slug(base), uuid.New().String(), ext)
	path := filepath.Join(s.templatesDir, name)

	f, err := s.fs.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "files: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, r); err != nil {
		return "", eris.Wrapf(err, "files: write %s", path)
	}
	return path, nil
}

// ReadTemplate returns the template binary at path.
func (s *Store) ReadTemplate(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return nil, eris.Wrapf(err, "files: read template %s", path)
	}
	return data, nil
}

// Exists reports whether the file at path is still present.
func (s *Store) Exists(path string) bool {
	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

// Remove deletes the file at path.
func (s *Store) Remove(path string) error {
	if err := s.fs.Remove(path); err != nil {
		return eris.Wrapf(err, "files: remove %s", path)
	}
	return nil
}

// WriteOutput persists a generated document. The name derives from the model
// title (whitespace collapsed, accents folded), the fingerprint, and the
// version, which makes it unique per (model, fingerprint, version).
func (s *Store) WriteOutput(title, fingerprint string, version int, data []byte) (string, error) {
	if err := s.fs.MkdirAll(s.outputsDir, 0o755); err != nil {
		return "", eris.Wrap(err, "files: create outputs dir")
	}

	name := fmt.Sprintf("%s_%s_v%d.docx", Slug(title), fingerprint, version)
	path := filepath.Join(s.outputsDir, name)
	if err := afero.WriteFile(s.fs, path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "files: write output %s", path)
	}
	return path, nil
}

// Open returns a reader over the file at path, for downloads.
func (s *Store) Open(path string) (io.ReadCloser, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "files: open %s", path)
	}
	return f, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// accentFolder strips combining marks after NFD decomposition, so "Cessão"
// slugs to "Cessao".
var accentFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slug collapses whitespace runs to underscores and folds accents, producing
// a filesystem-safe fragment of the model title.
func Slug(s string) string {
	folded, _, err := transform.String(accentFolder, s)
	if err != nil {
		folded = s
	}
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(folded), "_")
}
