package contract

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/sells-group/contract-cli/internal/model"
)

// Fingerprint derives the deterministic reuse/versioning key for a model and
// a parameter set. Parameter sets differing only in key order, nil/empty
// entries, or date representation yield identical fingerprints. Collision
// resistance is a convenience property, never a security boundary.
func Fingerprint(modelID string, params model.Params) string {
	canonical := struct {
		ModelID string         `json:"model_id"`
		Params  map[string]any `json:"params"`
	}{
		ModelID: modelID,
		Params:  NormalizeParams(params),
	}

	// encoding/json marshals map keys in sorted order, which gives the
	// canonical serialization; parameter scalars are always marshalable.
	data, _ := json.Marshal(canonical)

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
