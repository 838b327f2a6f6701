// Package query is the data-fetch boundary: it executes a model's queries
// against the operational database, substituting `:name` placeholders with
// the backend's native binding syntax.
package query

import (
	"context"
	"sort"
	"strings"

	"github.com/sells-group/contract-cli/internal/model"
)

// Executor runs one parameterized query and returns its rows. Placeholders
// in the query text use the `:name` convention; the executor receives the
// caller's raw parameter values, never the normalized form.
type Executor interface {
	Execute(ctx context.Context, queryText string, params model.Params) ([]model.Row, error)
}

// translatePlaceholders rewrites every `:name` placeholder whose name is
// present in params to `@name`. Keys are applied longest-first so `:data`
// never clobbers a `:data_inicio` placeholder.
func translatePlaceholders(queryText string, params model.Params) string {
	if len(params) == 0 {
		return queryText
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return len(keys[i]) > len(keys[j]) })

	translated := queryText
	for _, key := range keys {
		translated = strings.ReplaceAll(translated, ":"+key, "@"+key)
	}
	return translated
}
