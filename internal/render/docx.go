package render

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DocxRenderer rewrites the XML parts of a docx template, replacing
// `{path.to.value}` tags, expanding `{#variable}...{/variable}` loop
// sections over row sequences, and applying the `dateToExtenso` filter
// (`{principal.data_assinatura | dateToExtenso}`).
type DocxRenderer struct{}

// NewDocx creates a docx renderer.
func NewDocx() *DocxRenderer {
	return &DocxRenderer{}
}

var (
	loopPattern = regexp.MustCompile(`(?s)\{#([a-zA-Z_][a-zA-Z0-9_]*)\}(.*?)\{/([a-zA-Z_][a-zA-Z0-9_]*)\}`)
	tagPattern  = regexp.MustCompile(`\{([a-zA-Z_][a-zA-Z0-9_.]*)(?:\s*\|\s*([a-zA-Z]+))?\}`)
)

func (r *DocxRenderer) Render(template []byte, data map[string]any) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(template), int64(len(template)))
	if err != nil {
		return nil, eris.Wrap(ErrUnsupportedFormat, err.Error())
	}

	hasDocument := false
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			hasDocument = true
			break
		}
	}
	if !hasDocument {
		return nil, ErrUnsupportedFormat
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range zr.File {
		src, err := f.Open()
		if err != nil {
			return nil, eris.Wrapf(err, "render: open part %s", f.Name)
		}

		dst, err := zw.Create(f.Name)
		if err != nil {
			src.Close()
			return nil, eris.Wrapf(err, "render: create part %s", f.Name)
		}

		if isTemplatePart(f.Name) {
			content, err := io.ReadAll(src)
			src.Close()
			if err != nil {
				return nil, eris.Wrapf(err, "render: read part %s", f.Name)
			}
			if _, err := dst.Write([]byte(substitute(string(content), data, nil))); err != nil {
				return nil, eris.Wrapf(err, "render: write part %s", f.Name)
			}
			continue
		}

		_, err = io.Copy(dst, src)
		src.Close()
		if err != nil {
			return nil, eris.Wrapf(err, "render: copy part %s", f.Name)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, eris.Wrap(err, "render: close container")
	}
	return buf.Bytes(), nil
}

// isTemplatePart reports whether a zip entry holds user-visible document XML.
func isTemplatePart(name string) bool {
	if name == "word/document.xml" {
		return true
	}
	return strings.HasSuffix(name, ".xml") &&
		(strings.HasPrefix(name, "word/header") || strings.HasPrefix(name, "word/footer"))
}

// substitute expands loop sections, then resolves scalar tags. scope holds
// the current loop row, consulted before the root data tree.
func substitute(content string, data map[string]any, scope map[string]any) string {
	content = loopPattern.ReplaceAllStringFunc(content, func(m string) string {
		parts := loopPattern.FindStringSubmatch(m)
		name, body, closing := parts[1], parts[2], parts[3]
		if name != closing {
			return m
		}
		rows := rowsOf(lookup(name, data, scope))
		var b strings.Builder
		for _, row := range rows {
			b.WriteString(substitute(body, data, row))
		}
		return b.String()
	})

	return tagPattern.ReplaceAllStringFunc(content, func(m string) string {
		parts := tagPattern.FindStringSubmatch(m)
		path, filter := parts[1], parts[2]
		value := lookup(path, data, scope)
		return escapeXML(formatValue(value, filter))
	})
}

// lookup resolves a dotted path against the loop scope first, then the root
// data tree.
func lookup(path string, data map[string]any, scope map[string]any) any {
	segments := strings.Split(path, ".")

	if scope != nil {
		if v, ok := walk(scope, segments); ok {
			return v
		}
	}
	if v, ok := walk(data, segments); ok {
		return v
	}
	return nil
}

func walk(node map[string]any, segments []string) (any, bool) {
	var current any = node
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// rowsOf coerces a variable's query results into a row slice. JSON-decoded
// snapshots arrive as []any of map[string]any.
func rowsOf(v any) []map[string]any {
	switch rows := v.(type) {
	case []map[string]any:
		return rows
	case []any:
		out := make([]map[string]any, 0, len(rows))
		for _, r := range rows {
			if m, ok := r.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

var ptMonths = []string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

func formatValue(v any, filter string) string {
	if filter == "dateToExtenso" {
		t, ok := asTime(v)
		if !ok {
			return ""
		}
		return fmt.Sprintf("%d de %s de %d", t.Day(), ptMonths[t.Month()-1], t.Year())
	}

	switch val := v.(type) {
	case nil:
		return ""
	case time.Time:
		return val.Format("02/01/2006")
	case string:
		return val
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

var renderDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func asTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, true
	case string:
		for _, layout := range renderDateLayouts {
			if t, err := time.Parse(layout, val); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
