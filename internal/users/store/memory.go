package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"usersapi/internal/users/models"
	"usersapi/internal/users/search"
	"usersapi/pkg/platform/sentinel"
)

// InMemoryStore keeps user records in memory. It evaluates the same
// structured filters as the postgres store so service and search semantics
// can be unit tested without a database.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	users  []*models.UserProfile
}

// NewInMemory creates an empty in-memory user store.
func NewInMemory() *InMemoryStore {
	return &InMemoryStore{nextID: 1}
}

func (s *InMemoryStore) Insert(_ context.Context, user *models.UserProfile) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.KeycloakID == user.KeycloakID {
			return nil, fmt.Errorf("insert user: %w", sentinel.ErrConflict)
		}
	}

	stored := cloneUser(user)
	stored.ID = s.nextID
	s.nextID++
	s.users = append(s.users, stored)
	return cloneUser(stored), nil
}

func (s *InMemoryStore) FindBySubject(_ context.Context, subject string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.KeycloakID == subject && !user.Deleted {
			return cloneUser(user), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindAndCount(_ context.Context, filter *search.Filter) ([]*models.UserProfile, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*models.UserProfile
	for _, user := range s.users {
		if matchesFilter(user, filter) {
			matches = append(matches, user)
		}
	}
	sortUsers(matches, filter.Sort)

	total := len(matches)
	start := min(filter.Offset, total)
	end := min(start+filter.Limit, total)

	page := make([]*models.UserProfile, 0, end-start)
	for _, user := range matches[start:end] {
		page = append(page, cloneUser(user))
	}
	return page, total, nil
}

func (s *InMemoryStore) Update(_ context.Context, subject string, patch models.Patch) (*models.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.KeycloakID != subject || user.Deleted {
			continue
		}
		applyPatch(user, patch)
		return cloneUser(user), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Exists(_ context.Context, subject string) (models.Existence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.KeycloakID == subject {
			return models.Existence{Exists: true, CompletedRegistration: user.CompletedRegistration}, nil
		}
	}
	return models.Existence{}, nil
}

func (s *InMemoryStore) ListAll(_ context.Context) ([]*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*models.UserProfile, 0, len(s.users))
	for _, user := range s.users {
		all = append(all, cloneUser(user))
	}
	return all, nil
}

func (s *InMemoryStore) UpdateCategories(_ context.Context, id int64, roles, usages []string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, user := range s.users {
		if user.ID == id {
			user.Roles = slices.Clone(roles)
			user.PortalUsages = slices.Clone(usages)
			user.UpdatedDate = now
			return nil
		}
	}
	return fmt.Errorf("update categories for user %d: %w", id, sentinel.ErrNotFound)
}

func matchesFilter(user *models.UserProfile, filter *search.Filter) bool {
	if !user.CompletedRegistration || user.Deleted {
		return false
	}
	if filter.Match != "" {
		needle := strings.ToLower(filter.Match)
		if !strings.Contains(strings.ToLower(user.FirstName), needle) &&
			!strings.Contains(strings.ToLower(user.LastName), needle) &&
			!strings.Contains(strings.ToLower(user.Affiliation), needle) {
			return false
		}
	}
	if !containsAll(user.Roles, filter.Roles) {
		return false
	}
	if !containsAll(user.PortalUsages, filter.Usages) {
		return false
	}
	if filter.RolesOther && containedIn(user.Roles, filter.RoleUniverse) {
		return false
	}
	if filter.UsagesOther && containedIn(user.PortalUsages, filter.UsageUniverse) {
		return false
	}
	return true
}

// containsAll reports whether set holds every wanted element.
func containsAll(set, wanted []string) bool {
	for _, w := range wanted {
		if !slices.Contains(set, w) {
			return false
		}
	}
	return true
}

// containedIn reports whether every element of set is inside universe.
func containedIn(set, universe []string) bool {
	for _, elem := range set {
		if !slices.Contains(universe, elem) {
			return false
		}
	}
	return true
}

func sortUsers(users []*models.UserProfile, keys []search.SortKey) {
	sort.SliceStable(users, func(i, j int) bool {
		for _, key := range keys {
			a, b := sortValue(users[i], key.Field), sortValue(users[j], key.Field)
			if a == b {
				continue
			}
			if key.Direction == search.Descending {
				return a > b
			}
			return a < b
		}
		return users[i].ID < users[j].ID
	})
}

func sortValue(user *models.UserProfile, field string) string {
	switch field {
	case "first_name":
		return user.FirstName
	case "last_name":
		return user.LastName
	case "affiliation":
		return user.Affiliation
	case "creation_date":
		return user.CreationDate.Format(time.RFC3339Nano)
	case "updated_date":
		return user.UpdatedDate.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

func applyPatch(user *models.UserProfile, patch models.Patch) {
	setString := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	setString(&user.KeycloakID, patch.KeycloakID)
	setString(&user.FirstName, patch.FirstName)
	setString(&user.LastName, patch.LastName)
	setString(&user.Email, patch.Email)
	setString(&user.PublicEmail, patch.PublicEmail)
	setString(&user.Affiliation, patch.Affiliation)
	setString(&user.ERACommonsID, patch.ERACommonsID)
	setString(&user.NIHNedID, patch.NIHNedID)
	setString(&user.CommercialUseReason, patch.CommercialUseReason)
	setString(&user.LinkedIn, patch.LinkedIn)
	setString(&user.ExternalIndividualFullname, patch.ExternalIndividualFullname)
	setString(&user.ExternalIndividualEmail, patch.ExternalIndividualEmail)
	setString(&user.ProfileImageKey, patch.ProfileImageKey)
	if patch.Roles != nil {
		user.Roles = slices.Clone(*patch.Roles)
	}
	if patch.PortalUsages != nil {
		user.PortalUsages = slices.Clone(*patch.PortalUsages)
	}
	if patch.ConsentDate != nil {
		consent := *patch.ConsentDate
		user.ConsentDate = &consent
	}
	if patch.UnderstandDisclaimer != nil {
		user.UnderstandDisclaimer = *patch.UnderstandDisclaimer
	}
	if patch.AcceptedTerms != nil {
		user.AcceptedTerms = *patch.AcceptedTerms
	}
	if patch.CompletedRegistration != nil {
		user.CompletedRegistration = *patch.CompletedRegistration
	}
	if patch.Deleted != nil {
		user.Deleted = *patch.Deleted
	}
	user.UpdatedDate = patch.UpdatedDate
}

func cloneUser(user *models.UserProfile) *models.UserProfile {
	clone := *user
	clone.Roles = slices.Clone(user.Roles)
	clone.PortalUsages = slices.Clone(user.PortalUsages)
	if user.ConsentDate != nil {
		consent := *user.ConsentDate
		clone.ConsentDate = &consent
	}
	return &clone
}
