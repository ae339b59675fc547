package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "usersapi/pkg/domain-errors"
)

func TestBuildPagination(t *testing.T) {
	t.Run("defaults apply when unset", func(t *testing.T) {
		f, err := Build(Params{})
		require.NoError(t, err)
		assert.Equal(t, DefaultPageSize, f.Limit)
		assert.Equal(t, 0, f.Offset)
	})

	t.Run("offset is pageIndex times pageSize", func(t *testing.T) {
		f, err := Build(Params{PageSize: 10, PageIndex: 3})
		require.NoError(t, err)
		assert.Equal(t, 10, f.Limit)
		assert.Equal(t, 30, f.Offset)
	})

	t.Run("negative paging rejected", func(t *testing.T) {
		_, err := Build(Params{PageIndex: -1})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))

		_, err = Build(Params{PageSize: -5})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("explicit pageSize zero falls back to default", func(t *testing.T) {
		f, err := Build(Params{PageSize: 0, PageIndex: 2})
		require.NoError(t, err)
		assert.Equal(t, 2*DefaultPageSize, f.Offset)
	})
}

func TestBuildCategoryFilters(t *testing.T) {
	t.Run("concrete codes lowercased", func(t *testing.T) {
		f, err := Build(Params{Roles: []string{"Researcher", "DEVELOPER"}})
		require.NoError(t, err)
		assert.Equal(t, []string{"researcher", "developer"}, f.Roles)
		assert.False(t, f.RolesOther)
	})

	t.Run("other sentinel extracted from concrete codes", func(t *testing.T) {
		f, err := Build(Params{
			Roles:        []string{"researcher", "Other"},
			RoleUniverse: []string{"researcher", "developer"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"researcher"}, f.Roles)
		assert.True(t, f.RolesOther)
		assert.Equal(t, []string{"researcher", "developer"}, f.RoleUniverse)
	})

	t.Run("other without role universe rejected", func(t *testing.T) {
		_, err := Build(Params{Roles: []string{"other"}})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		assert.Contains(t, err.Error(), "roleOptions")
	})

	t.Run("other without usage universe rejected", func(t *testing.T) {
		_, err := Build(Params{Usages: []string{"other"}})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
		assert.Contains(t, err.Error(), "usageOptions")
	})

	t.Run("universe not required without other", func(t *testing.T) {
		f, err := Build(Params{Roles: []string{"researcher"}})
		require.NoError(t, err)
		assert.Empty(t, f.RoleUniverse)
	})

	t.Run("blank entries dropped", func(t *testing.T) {
		f, err := Build(Params{Roles: []string{" ", "", "researcher "}})
		require.NoError(t, err)
		assert.Equal(t, []string{"researcher"}, f.Roles)
	})
}

func TestBuildSort(t *testing.T) {
	t.Run("multi-key order preserved", func(t *testing.T) {
		f, err := Build(Params{Sort: []string{"last_name:asc", "creation_date:DESC"}})
		require.NoError(t, err)
		require.Len(t, f.Sort, 2)
		assert.Equal(t, SortKey{Field: "last_name", Direction: Ascending}, f.Sort[0])
		assert.Equal(t, SortKey{Field: "creation_date", Direction: Descending}, f.Sort[1])
	})

	t.Run("unknown field rejected", func(t *testing.T) {
		_, err := Build(Params{Sort: []string{"email:asc"}})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("malformed token rejected", func(t *testing.T) {
		for _, token := range []string{"last_name", ":asc", "last_name:sideways"} {
			_, err := Build(Params{Sort: []string{token}})
			assert.Error(t, err, "token %q", token)
		}
	})
}
