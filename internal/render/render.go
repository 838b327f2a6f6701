// Package render fills placeholders in a binary document template from a
// nested data tree. The only supported container is the docx word-processing
// format (a zip of XML parts).
package render

import "github.com/rotisserie/eris"

// ErrUnsupportedFormat reports a template binary that is not a docx
// container.
var ErrUnsupportedFormat = eris.New("render: template is not a docx container")

// Renderer produces an output binary from a template binary and a data
// tree of nested maps and row sequences.
type Renderer interface {
	Render(template []byte, data map[string]any) ([]byte, error)
}
