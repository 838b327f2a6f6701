package contract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/contract-cli/internal/model"
)

// documentPattern matches the three accepted government ID shapes: formatted
// CPF, formatted CNPJ, or the bare-digit variant of either.
var documentPattern = regexp.MustCompile(`(^\d{3}\.\d{3}\.\d{3}-\d{2}$)|(^\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}$)|(^(\d{11}|\d{14})$)`)

// entitySuffixPattern matches Brazilian legal-entity suffix tokens.
var entitySuffixPattern = regexp.MustCompile(`(?i)\b(ltda|me|eireli|s/a|ss|ei|empresa)\b`)

// primaryKeywords are field-name fragments that suggest a legal or company
// name column.
var primaryKeywords = []string{"nome", "razao", "razaosocial", "empresa", "cedente", "fantasia"}

var whitespacePattern = regexp.MustCompile(`\s`)

// IdentifyFields scans the primary query's first result row for a
// human-meaningful primary label (legal/company name) and secondary label
// (government ID). Advisory metadata only: it never blocks generation and
// never fails. Row maps carry no column order, so fields are scanned in
// sorted key order to keep results stable.
func IdentifyFields(data *model.ContractData) model.FieldIdentifiers {
	if data == nil || len(data.Primary) == 0 {
		return model.FieldIdentifiers{}
	}

	row := data.Primary[0]
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var ids model.FieldIdentifiers
	maxScore := 0

	for _, key := range keys {
		value, ok := row[key].(string)
		if !ok {
			continue
		}

		// Secondary: first match wins, no re-scoring.
		if ids.Secondary == "" && documentPattern.MatchString(whitespacePattern.ReplaceAllString(value, "")) {
			ids.Secondary = strings.ToLower(value)
		}

		score := 0
		lowerKey := strings.ToLower(key)
		for _, kw := range primaryKeywords {
			if strings.Contains(lowerKey, kw) {
				score += 3
				break
			}
		}
		if entitySuffixPattern.MatchString(value) {
			score += 2
		}
		if len(strings.Fields(value)) >= 2 {
			score++
		}
		if len(value) >= 6 && len(value) <= 99 {
			score++
		}

		if score > maxScore {
			maxScore = score
			ids.Primary = strings.ToLower(value)
		}
	}

	return ids
}
