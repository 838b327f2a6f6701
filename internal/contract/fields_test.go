package contract

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/contract-cli/internal/model"
)

func TestIdentifyFields_CompanyRow(t *testing.T) {
	data := &model.ContractData{Primary: []model.Row{{
		"razao_social": "Empresa Teste ME",
		"cpf":          "123.456.789-00",
		"cnpj":         "12345678901234",
	}}}

	ids := IdentifyFields(data)

	assert.Equal(t, "empresa teste me", ids.Primary)
	// Keys are scanned in sorted order; cnpj is the first ID-shaped value.
	assert.Equal(t, "12345678901234", ids.Secondary)
}

func TestIdentifyFields_SecondaryFirstMatchWins(t *testing.T) {
	data := &model.ContractData{Primary: []model.Row{{
		"documento": "123.456.789-00",
		"extra":     "98.765.432/0001-10",
	}}}

	ids := IdentifyFields(data)
	assert.Equal(t, "123.456.789-00", ids.Secondary)
}

func TestIdentifyFields_StripsWhitespaceBeforeMatching(t *testing.T) {
	data := &model.ContractData{Primary: []model.Row{{
		"cnpj": " 12.345.678/0001-90 ",
	}}}

	ids := IdentifyFields(data)
	assert.Equal(t, " 12.345.678/0001-90 ", ids.Secondary)
}

func TestIdentifyFields_NoMatches(t *testing.T) {
	data := &model.ContractData{Primary: []model.Row{{
		"idade": 42,
		"sigla": "ab",
	}}}

	ids := IdentifyFields(data)
	assert.Empty(t, ids.Primary)
	assert.Empty(t, ids.Secondary)
}

func TestIdentifyFields_EmptyResultSet(t *testing.T) {
	assert.NotPanics(t, func() {
		ids := IdentifyFields(&model.ContractData{})
		assert.Empty(t, ids.Primary)
		assert.Empty(t, ids.Secondary)

		ids = IdentifyFields(nil)
		assert.Empty(t, ids.Primary)
		assert.Empty(t, ids.Secondary)
	})
}

func TestIdentifyFields_KeywordScoring(t *testing.T) {
	data := &model.ContractData{Primary: []model.Row{{
		"observacao":    "um texto longo qualquer sem relacao",
		"nome_fantasia": "Padaria Central Ltda",
	}}}

	ids := IdentifyFields(data)
	assert.Equal(t, "padaria central ltda", ids.Primary)
}
