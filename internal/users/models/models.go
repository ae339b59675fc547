package models

import "time"

// UserProfile is the registrant profile record.
//
// Invariants:
//   - ID and CreationDate are write-once; caller-supplied values are ignored
//   - KeycloakID is unique among non-deleted records and immutable post-create
//   - CompletedRegistration transitions false→true exactly once, only through
//     the complete-registration operation
//   - Deleted transitions false→true exactly once; deleted records are
//     invisible to every read and search path
//   - Roles and PortalUsages hold canonical category codes after normalization
type UserProfile struct {
	ID         int64  `json:"id"`
	KeycloakID string `json:"keycloak_id"`

	FirstName                  string `json:"first_name"`
	LastName                   string `json:"last_name"`
	Email                      string `json:"email"`
	PublicEmail                string `json:"public_email"`
	Affiliation                string `json:"affiliation"`
	ERACommonsID               string `json:"era_commons_id"`
	NIHNedID                   string `json:"nih_ned_id"`
	CommercialUseReason        string `json:"commercial_use_reason"`
	LinkedIn                   string `json:"linkedin"`
	ExternalIndividualFullname string `json:"external_individual_fullname"`
	ExternalIndividualEmail    string `json:"external_individual_email"`
	ProfileImageKey            string `json:"profile_image_key"`

	Roles        []string `json:"roles"`
	PortalUsages []string `json:"portal_usages"`

	CompletedRegistration bool `json:"completed_registration"`
	Deleted               bool `json:"deleted"`

	CreationDate time.Time `json:"creation_date"`
	UpdatedDate  time.Time `json:"updated_date"`

	ConsentDate          *time.Time `json:"consent_date"`
	UnderstandDisclaimer bool       `json:"understand_disclaimer"`
	AcceptedTerms        bool       `json:"accepted_terms"`
}

// RegistrationPayload is the mutable subset of a profile a caller may submit
// on create, update or complete-registration. Every field is a pointer so the
// patch distinguishes "absent" (leave unchanged) from "present" (overwrite,
// including explicit clears). Immutable fields have no representation here at
// all; whatever the caller sends for them is discarded during decoding.
type RegistrationPayload struct {
	FirstName                  *string    `json:"first_name"`
	LastName                   *string    `json:"last_name"`
	Email                      *string    `json:"email"`
	PublicEmail                *string    `json:"public_email"`
	Affiliation                *string    `json:"affiliation"`
	ERACommonsID               *string    `json:"era_commons_id"`
	NIHNedID                   *string    `json:"nih_ned_id"`
	CommercialUseReason        *string    `json:"commercial_use_reason"`
	LinkedIn                   *string    `json:"linkedin"`
	ExternalIndividualFullname *string    `json:"external_individual_fullname"`
	ExternalIndividualEmail    *string    `json:"external_individual_email"`
	ProfileImageKey            *string    `json:"profile_image_key"`
	Roles                      *[]string  `json:"roles"`
	PortalUsages               *[]string  `json:"portal_usages"`
	ConsentDate                *time.Time `json:"consent_date"`
	UnderstandDisclaimer       *bool      `json:"understand_disclaimer"`
	AcceptedTerms              *bool      `json:"accepted_terms"`
}

// CanCompleteRegistration reports whether the payload carries every required
// consent field with a truthy value.
func (p *RegistrationPayload) CanCompleteRegistration() bool {
	return p.ConsentDate != nil && !p.ConsentDate.IsZero() &&
		p.UnderstandDisclaimer != nil && *p.UnderstandDisclaimer &&
		p.AcceptedTerms != nil && *p.AcceptedTerms
}

// Patch is the store-facing write set. Nil fields are left unchanged by the
// store; non-nil fields overwrite. UpdatedDate is always stamped.
type Patch struct {
	KeycloakID                 *string
	FirstName                  *string
	LastName                   *string
	Email                      *string
	PublicEmail                *string
	Affiliation                *string
	ERACommonsID               *string
	NIHNedID                   *string
	CommercialUseReason        *string
	LinkedIn                   *string
	ExternalIndividualFullname *string
	ExternalIndividualEmail    *string
	ProfileImageKey            *string
	Roles                      *[]string
	PortalUsages               *[]string
	ConsentDate                *time.Time
	UnderstandDisclaimer       *bool
	AcceptedTerms              *bool
	CompletedRegistration      *bool
	Deleted                    *bool
	UpdatedDate                time.Time
}

// Existence is the answer to the registration-gate existence check. It leaks
// no profile fields, only the two booleans the registration flow needs.
type Existence struct {
	Exists                bool `json:"exists"`
	CompletedRegistration bool `json:"completed_registration"`
}

// SearchResult is one page of restricted search rows plus the total match
// count for pagination UI.
type SearchResult struct {
	Users []*RestrictedProfile `json:"users"`
	Total int                  `json:"total"`
}

// PresignedUpload is the response for a profile-image upload request.
type PresignedUpload struct {
	S3Key      string `json:"s3Key"`
	PresignURL string `json:"presignUrl"`
}
