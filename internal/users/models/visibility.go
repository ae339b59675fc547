package models

import "time"

// RestrictedProfile is the attribute set visible to anyone who is not the
// record owner. Search rows always use this shape regardless of requester.
// Everything outside this whitelist (private email, registry identifiers,
// consent fields, external contact fields, status flags) stays server-side.
type RestrictedProfile struct {
	ID                  int64     `json:"id"`
	KeycloakID          string    `json:"keycloak_id"`
	FirstName           string    `json:"first_name"`
	LastName            string    `json:"last_name"`
	Roles               []string  `json:"roles"`
	PortalUsages        []string  `json:"portal_usages"`
	CreationDate        time.Time `json:"creation_date"`
	UpdatedDate         time.Time `json:"updated_date"`
	PublicEmail         string    `json:"public_email"`
	CommercialUseReason string    `json:"commercial_use_reason"`
	LinkedIn            string    `json:"linkedin"`
	Affiliation         string    `json:"affiliation"`
	ProfileImageKey     string    `json:"profile_image_key"`
}

// ProfileView is a profile already shaped for a specific caller: either the
// full record (own profile) or the restricted whitelist (anyone else).
type ProfileView interface {
	profileView()
}

func (*UserProfile) profileView()       {}
func (*RestrictedProfile) profileView() {}

// Restricted projects a profile onto the non-owner whitelist.
func (u *UserProfile) Restricted() *RestrictedProfile {
	return &RestrictedProfile{
		ID:                  u.ID,
		KeycloakID:          u.KeycloakID,
		FirstName:           u.FirstName,
		LastName:            u.LastName,
		Roles:               u.Roles,
		PortalUsages:        u.PortalUsages,
		CreationDate:        u.CreationDate,
		UpdatedDate:         u.UpdatedDate,
		PublicEmail:         u.PublicEmail,
		CommercialUseReason: u.CommercialUseReason,
		LinkedIn:            u.LinkedIn,
		Affiliation:         u.Affiliation,
		ProfileImageKey:     u.ProfileImageKey,
	}
}

// ViewFor applies the visibility policy: owners see everything, everyone
// else sees the restricted whitelist.
func (u *UserProfile) ViewFor(own bool) ProfileView {
	if own {
		return u
	}
	return u.Restricted()
}
