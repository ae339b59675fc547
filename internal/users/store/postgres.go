package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"usersapi/internal/users/models"
	"usersapi/internal/users/search"
	"usersapi/pkg/platform/sentinel"
)

// PostgresStore persists user profiles in PostgreSQL. Category sets are
// stored as text[] so containment filters run on the database's array
// operators with GIN index support.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed user store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, keycloak_id, first_name, last_name, email, public_email,
	affiliation, era_commons_id, nih_ned_id, commercial_use_reason, linkedin,
	external_individual_fullname, external_individual_email, profile_image_key,
	roles, portal_usages, completed_registration, deleted,
	creation_date, updated_date, consent_date, understand_disclaimer, accepted_terms`

func (s *PostgresStore) Insert(ctx context.Context, user *models.UserProfile) (*models.UserProfile, error) {
	query := `
		INSERT INTO users (
			keycloak_id, first_name, last_name, email, public_email,
			affiliation, era_commons_id, nih_ned_id, commercial_use_reason, linkedin,
			external_individual_fullname, external_individual_email, profile_image_key,
			roles, portal_usages, completed_registration, deleted,
			creation_date, updated_date, consent_date, understand_disclaimer, accepted_terms
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22
		)
		RETURNING ` + userColumns
	row := s.db.QueryRowContext(ctx, query,
		user.KeycloakID, user.FirstName, user.LastName, user.Email, user.PublicEmail,
		user.Affiliation, user.ERACommonsID, user.NIHNedID, user.CommercialUseReason, user.LinkedIn,
		user.ExternalIndividualFullname, user.ExternalIndividualEmail, user.ProfileImageKey,
		pq.Array(user.Roles), pq.Array(user.PortalUsages), user.CompletedRegistration, user.Deleted,
		user.CreationDate, user.UpdatedDate, user.ConsentDate, user.UnderstandDisclaimer, user.AcceptedTerms,
	)
	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) FindBySubject(ctx context.Context, subject string) (*models.UserProfile, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE keycloak_id = $1 AND NOT deleted`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, subject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) FindAndCount(ctx context.Context, filter *search.Filter) ([]*models.UserProfile, int, error) {
	where, args := renderFilter(filter)

	var total int
	countQuery := `SELECT count(*) FROM users WHERE ` + where
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		userColumns, where, renderOrder(filter.Sort), len(args)+1, len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search users: %w", err)
	}
	defer rows.Close()

	var page []*models.UserProfile
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		page = append(page, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate user rows: %w", err)
	}
	return page, total, nil
}

func (s *PostgresStore) Update(ctx context.Context, subject string, patch models.Patch) (*models.UserProfile, error) {
	set := []string{"updated_date = $1"}
	args := []any{patch.UpdatedDate}
	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	addString := func(column string, v *string) {
		if v != nil {
			add(column, *v)
		}
	}
	addString("keycloak_id", patch.KeycloakID)
	addString("first_name", patch.FirstName)
	addString("last_name", patch.LastName)
	addString("email", patch.Email)
	addString("public_email", patch.PublicEmail)
	addString("affiliation", patch.Affiliation)
	addString("era_commons_id", patch.ERACommonsID)
	addString("nih_ned_id", patch.NIHNedID)
	addString("commercial_use_reason", patch.CommercialUseReason)
	addString("linkedin", patch.LinkedIn)
	addString("external_individual_fullname", patch.ExternalIndividualFullname)
	addString("external_individual_email", patch.ExternalIndividualEmail)
	addString("profile_image_key", patch.ProfileImageKey)
	if patch.Roles != nil {
		add("roles", pq.Array(*patch.Roles))
	}
	if patch.PortalUsages != nil {
		add("portal_usages", pq.Array(*patch.PortalUsages))
	}
	if patch.ConsentDate != nil {
		add("consent_date", *patch.ConsentDate)
	}
	if patch.UnderstandDisclaimer != nil {
		add("understand_disclaimer", *patch.UnderstandDisclaimer)
	}
	if patch.AcceptedTerms != nil {
		add("accepted_terms", *patch.AcceptedTerms)
	}
	if patch.CompletedRegistration != nil {
		add("completed_registration", *patch.CompletedRegistration)
	}
	if patch.Deleted != nil {
		add("deleted", *patch.Deleted)
	}

	args = append(args, subject)
	query := fmt.Sprintf(`UPDATE users SET %s WHERE keycloak_id = $%d AND NOT deleted RETURNING %s`,
		strings.Join(set, ", "), len(args), userColumns)

	user, err := scanUser(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) Exists(ctx context.Context, subject string) (models.Existence, error) {
	var existence models.Existence
	err := s.db.QueryRowContext(ctx,
		`SELECT true, completed_registration FROM users WHERE keycloak_id = $1`, subject,
	).Scan(&existence.Exists, &existence.CompletedRegistration)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Existence{}, nil
		}
		return models.Existence{}, fmt.Errorf("check user existence: %w", err)
	}
	return existence, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.UserProfile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var all []*models.UserProfile
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user row: %w", err)
		}
		all = append(all, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user rows: %w", err)
	}
	return all, nil
}

func (s *PostgresStore) UpdateCategories(ctx context.Context, id int64, roles, usages []string, now time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE users SET roles = $1, portal_usages = $2, updated_date = $3 WHERE id = $4`,
		pq.Array(roles), pq.Array(usages), now, id,
	)
	if err != nil {
		return fmt.Errorf("update categories for user %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update categories for user %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("update categories for user %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

// renderFilter translates a structured filter into a WHERE clause. The base
// predicate restricts to completed, non-deleted records.
func renderFilter(filter *search.Filter) (string, []any) {
	where := []string{"completed_registration", "NOT deleted"}
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Match != "" {
		pattern := arg("%" + filter.Match + "%")
		where = append(where, fmt.Sprintf(
			"(first_name ILIKE %[1]s OR last_name ILIKE %[1]s OR affiliation ILIKE %[1]s)", pattern))
	}
	if len(filter.Roles) > 0 {
		where = append(where, fmt.Sprintf("roles @> %s", arg(pq.Array(filter.Roles))))
	}
	if len(filter.Usages) > 0 {
		where = append(where, fmt.Sprintf("portal_usages @> %s", arg(pq.Array(filter.Usages))))
	}
	if filter.RolesOther {
		where = append(where, fmt.Sprintf("NOT (roles <@ %s)", arg(pq.Array(filter.RoleUniverse))))
	}
	if filter.UsagesOther {
		where = append(where, fmt.Sprintf("NOT (portal_usages <@ %s)", arg(pq.Array(filter.UsageUniverse))))
	}
	return strings.Join(where, " AND "), args
}

// renderOrder builds the ORDER BY list. Sort fields were already validated
// against a whitelist by the filter builder; id breaks ties so pagination is
// deterministic.
func renderOrder(keys []search.SortKey) string {
	var parts []string
	for _, key := range keys {
		dir := "ASC"
		if key.Direction == search.Descending {
			dir = "DESC"
		}
		parts = append(parts, key.Field+" "+dir)
	}
	parts = append(parts, "id ASC")
	return strings.Join(parts, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.UserProfile, error) {
	var u models.UserProfile
	err := row.Scan(
		&u.ID, &u.KeycloakID, &u.FirstName, &u.LastName, &u.Email, &u.PublicEmail,
		&u.Affiliation, &u.ERACommonsID, &u.NIHNedID, &u.CommercialUseReason, &u.LinkedIn,
		&u.ExternalIndividualFullname, &u.ExternalIndividualEmail, &u.ProfileImageKey,
		pq.Array(&u.Roles), pq.Array(&u.PortalUsages), &u.CompletedRegistration, &u.Deleted,
		&u.CreationDate, &u.UpdatedDate, &u.ConsentDate, &u.UnderstandDisclaimer, &u.AcceptedTerms,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
