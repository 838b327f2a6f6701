package contract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/contract-cli/internal/model"
)

func TestFingerprint_InvariantUnderNilAndEmptyEntries(t *testing.T) {
	base := Fingerprint("m1", model.Params{"cliente": "ACME", "uf": "SP"})
	padded := Fingerprint("m1", model.Params{"cliente": "ACME", "uf": "SP", "extra": nil, "outro": ""})

	assert.Equal(t, base, padded)
}

func TestFingerprint_InvariantUnderDateRepresentation(t *testing.T) {
	asTime := Fingerprint("m1", model.Params{"inicio": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)})
	asISO := Fingerprint("m1", model.Params{"inicio": "2024-05-01"})
	asLocale := Fingerprint("m1", model.Params{"inicio": "May 1, 2024"})

	assert.Equal(t, asTime, asISO)
	assert.Equal(t, asTime, asLocale)
}

func TestFingerprint_ChangesWithRetainedValues(t *testing.T) {
	a := Fingerprint("m1", model.Params{"cliente": "ACME"})
	b := Fingerprint("m1", model.Params{"cliente": "ACME Ltda"})
	c := Fingerprint("m2", model.Params{"cliente": "ACME"})

	assert.NotEqual(t, a, b, "changed value must change the fingerprint")
	assert.NotEqual(t, a, c, "model id is part of the fingerprint")
}

func TestFingerprint_Deterministic(t *testing.T) {
	params := model.Params{"cliente": "ACME", "uf": "SP", "inicio": "2024-05-01"}

	first := Fingerprint("m1", params)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Fingerprint("m1", params))
	}
	assert.Len(t, first, 64)
}
