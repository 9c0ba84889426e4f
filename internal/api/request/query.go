package request

import "github.com/nimbusdb/controlplane/internal/querybuilder"

// Search holds the request body for a structured row search.
type Search struct {
	Table      string                   `json:"table" validate:"required"`
	Predicates []querybuilder.Predicate `json:"predicates" validate:"omitempty,dive"`
}

// BulkUpdate holds the request body for a bulk row update. Updates maps a
// primary-key value to the column/value pairs to set on that row.
type BulkUpdate struct {
	Table    string                       `json:"table" validate:"required"`
	PKColumn string                       `json:"pk_column" validate:"required"`
	Updates  map[string]map[string]string `json:"updates" validate:"required,min=1"`
}

// DeleteRows holds the request body for deleting rows by primary key.
type DeleteRows struct {
	Table    string   `json:"table" validate:"required"`
	PKColumn string   `json:"pk_column" validate:"required"`
	PKValues []string `json:"pk_values" validate:"required,min=1"`
}
