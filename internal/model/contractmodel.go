package model

import "time"

// VariableKind classifies how a variable's query results are exposed to the
// template: a single value, a repeated list, or a table with sub-fields.
type VariableKind string

const (
	VariableSimple VariableKind = "simple"
	VariableList   VariableKind = "list"
	VariableTable  VariableKind = "table"
)

// Variable is a named sub-query whose results are exposed to the template
// under that name.
type Variable struct {
	Name      string       `json:"name" yaml:"name"`
	Kind      VariableKind `json:"kind" yaml:"kind"`
	SubFields []string     `json:"sub_fields,omitempty" yaml:"sub_fields,omitempty"`
	Query     string       `json:"query,omitempty" yaml:"query,omitempty"`
}

// Model is a registered document template plus its data-fetch queries and
// declared variables.
type Model struct {
	ID           string     `json:"id" yaml:"id,omitempty"`
	Title        string     `json:"title" yaml:"title"`
	Type         string     `json:"type" yaml:"type"`
	Description  string     `json:"description" yaml:"description"`
	TemplatePath string     `json:"template_path" yaml:"template_path"`
	PrimaryQuery string     `json:"primary_query" yaml:"primary_query"`
	Variables    []Variable `json:"variables" yaml:"variables"`
	CreatedAt    time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"-"`
}
