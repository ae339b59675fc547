// Package search assembles structured filters for the user directory. The
// filter is storage-agnostic: the postgres store renders it to SQL and the
// in-memory store evaluates it directly, so both agree on semantics.
package search

import (
	"strings"

	"usersapi/internal/users/categories"
	dErrors "usersapi/pkg/domain-errors"
)

// DefaultPageSize applies when the caller omits pageSize.
const DefaultPageSize = 15

// Direction is a normalized sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortKey is one component of a stable multi-key ordering.
type SortKey struct {
	Field     string
	Direction Direction
}

// sortable whitelists the fields a caller may order by. Anything else is a
// caller error rather than a pass-through into SQL.
var sortable = map[string]bool{
	"first_name":    true,
	"last_name":     true,
	"affiliation":   true,
	"creation_date": true,
	"updated_date":  true,
}

// Params are the raw caller-supplied search criteria.
type Params struct {
	PageSize  int
	PageIndex int
	Sort      []string // "field:direction" tokens, applied in order
	Match     string
	Roles     []string
	Usages    []string
	// Universes are the full known code sets for each dimension, required
	// whenever the "other" sentinel appears in the matching filter.
	RoleUniverse  []string
	UsageUniverse []string
}

// Filter is the structured predicate executed by a store. The base predicate
// completed_registration AND NOT deleted is implicit in every filter.
type Filter struct {
	Match string

	// Concrete codes: a record matches when its set contains all of them.
	Roles  []string
	Usages []string

	// Catch-all: a record matches when its set is not fully contained in
	// the corresponding universe. Combined with the concrete predicate of
	// the same dimension using AND when both are present.
	RolesOther    bool
	UsagesOther   bool
	RoleUniverse  []string
	UsageUniverse []string

	Limit  int
	Offset int
	Sort   []SortKey
}

// Build validates params and produces the structured filter.
func Build(p Params) (*Filter, error) {
	if p.PageSize < 0 || p.PageIndex < 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "pageSize and pageIndex must be non-negative")
	}
	pageSize := p.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	f := &Filter{
		Match:  p.Match,
		Limit:  pageSize,
		Offset: p.PageIndex * pageSize,
	}

	f.Roles, f.RolesOther = splitOther(p.Roles)
	f.Usages, f.UsagesOther = splitOther(p.Usages)

	if f.RolesOther {
		if len(p.RoleUniverse) == 0 {
			return nil, dErrors.New(dErrors.CodeBadRequest, "roleOptions must be provided when filtering on other roles")
		}
		f.RoleUniverse = p.RoleUniverse
	}
	if f.UsagesOther {
		if len(p.UsageUniverse) == 0 {
			return nil, dErrors.New(dErrors.CodeBadRequest, "usageOptions must be provided when filtering on other usages")
		}
		f.UsageUniverse = p.UsageUniverse
	}

	for _, token := range p.Sort {
		key, err := parseSortToken(token)
		if err != nil {
			return nil, err
		}
		f.Sort = append(f.Sort, key)
	}

	return f, nil
}

// splitOther lowercases concrete codes and pulls out the "other" sentinel.
func splitOther(filters []string) (concrete []string, other bool) {
	for _, raw := range filters {
		code := strings.ToLower(strings.TrimSpace(raw))
		if code == "" {
			continue
		}
		if code == categories.Other {
			other = true
			continue
		}
		concrete = append(concrete, code)
	}
	return concrete, other
}

func parseSortToken(token string) (SortKey, error) {
	field, dir, found := strings.Cut(token, ":")
	if !found || field == "" {
		return SortKey{}, dErrors.New(dErrors.CodeBadRequest, "sort must be field:direction")
	}
	if !sortable[field] {
		return SortKey{}, dErrors.New(dErrors.CodeBadRequest, "unsupported sort field "+field)
	}
	switch strings.ToLower(dir) {
	case "asc":
		return SortKey{Field: field, Direction: Ascending}, nil
	case "desc":
		return SortKey{Field: field, Direction: Descending}, nil
	default:
		return SortKey{}, dErrors.New(dErrors.CodeBadRequest, "sort direction must be asc or desc")
	}
}
