package contract

import (
	"time"

	"github.com/sells-group/contract-cli/internal/model"
)

// canonicalTimeFormat is the fixed ISO-8601 representation every date-typed
// parameter is rewritten to before fingerprinting.
const canonicalTimeFormat = "2006-01-02T15:04:05.000Z"

// dateLayouts lists the string shapes accepted as calendar dates. A string
// that matches none of these is kept verbatim, never coerced.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	"January 2, 2006",
	"02/01/2006", // day-first, pt-BR locale inputs
}

// NormalizeParams canonicalizes a parameter set for stable fingerprinting:
// entries whose value is nil or an empty string are dropped, and values that
// carry a calendar date (time.Time, or a string parsing as one of
// dateLayouts) are rewritten to a fixed UTC ISO-8601 form. Key ordering is
// applied at serialization time by the fingerprint generator.
func NormalizeParams(params model.Params) map[string]any {
	out := make(map[string]any, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case nil:
			continue
		case string:
			if v == "" {
				continue
			}
			if t, ok := parseDate(v); ok {
				out[key] = t.UTC().Format(canonicalTimeFormat)
			} else {
				out[key] = v
			}
		case time.Time:
			out[key] = v.UTC().Format(canonicalTimeFormat)
		default:
			out[key] = v
		}
	}
	return out
}

// parseDate attempts to read s as a calendar date. Parsing is attempted
// only; on failure the caller keeps the original string.
func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
