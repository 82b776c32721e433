package types

import "github.com/google/uuid"

// Resource is a generic stored entity guarded by the resources:* scopes.
type Resource struct {
	// ID is the unique identifier of the resource. A zero ID is
	// assigned on create.
	ID uuid.UUID `json:"id" db:"id"`

	// Name is the human-readable name of the resource.
	Name string `json:"name" db:"name"`

	// Data holds free-form application data attached to the resource.
	Data map[string]any `json:"data" db:"data"`
}
