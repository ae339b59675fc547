// Package models holds the saved-set entity and its request payloads.
package models

import (
	"encoding/json"
	"time"
)

// UserSet is a named collection a registrant saves for later reuse. Content
// is opaque JSON owned by the frontend; the backend only stores and scopes
// it. A set marked shared is readable by any authenticated caller.
type UserSet struct {
	ID             int64           `json:"id"`
	KeycloakID     string          `json:"keycloak_id"`
	Alias          string          `json:"alias"`
	Content        json.RawMessage `json:"content"`
	SharedPublicly bool            `json:"sharedpublicly"`
	CreationDate   time.Time       `json:"creation_date"`
	UpdatedDate    time.Time       `json:"updated_date"`
}

// SetPayload is the caller-supplied part of a set. Ownership and timestamps
// are always server-assigned.
type SetPayload struct {
	Alias          *string         `json:"alias"`
	Content        json.RawMessage `json:"content"`
	SharedPublicly *bool           `json:"sharedpublicly"`
}
