package model

import "time"

// Row is one result row from the query executor.
type Row = map[string]any

// Params maps parameter names to scalar values (string, number, bool,
// time.Time, or nil). Supplied per generation request and persisted only as
// a snapshot inside an Artifact.
type Params map[string]any

// ContractData is the raw data fetched for one generation: the primary
// query's rows plus one entry per declared variable.
type ContractData struct {
	Primary   []Row            `json:"primary"`
	Variables map[string][]Row `json:"variables"`
}

// FieldIdentifiers holds the best-effort primary (legal/company name) and
// secondary (government ID) labels extracted from fetched data. Advisory
// metadata only; empty string means no field matched.
type FieldIdentifiers struct {
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
}

// Artifact is one generated document record. Immutable once written except
// for the Active flag, which the orchestrator flips exactly once (true ->
// false) when the artifact is superseded.
type Artifact struct {
	ID          string           `json:"id"`
	ModelID     string           `json:"model_id"`
	Fingerprint string           `json:"fingerprint"`
	Version     int              `json:"version"`
	Active      bool             `json:"active"`
	Params      Params           `json:"params"`
	Data        *ContractData    `json:"data,omitempty"`
	Fields      FieldIdentifiers `json:"field_identifiers"`
	FilePath    string           `json:"file_path"`
	GeneratedAt time.Time        `json:"generated_at"`
}
