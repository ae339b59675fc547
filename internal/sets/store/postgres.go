package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"usersapi/internal/sets/models"
	"usersapi/pkg/platform/sentinel"
)

const setColumns = `id, keycloak_id, alias, content, sharedpublicly, creation_date, updated_date`

// PostgresStore persists saved sets in the user_sets table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed set store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, set *models.UserSet) (*models.UserSet, error) {
	query := `
		INSERT INTO user_sets (keycloak_id, alias, content, sharedpublicly, creation_date, updated_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + setColumns

	row := s.db.QueryRowContext(ctx, query,
		set.KeycloakID, set.Alias, []byte(set.Content), set.SharedPublicly,
		set.CreationDate, set.UpdatedDate)

	inserted, err := scanSet(row)
	if err != nil {
		return nil, fmt.Errorf("insert user set: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id int64, subject string) (*models.UserSet, error) {
	query := `SELECT ` + setColumns + ` FROM user_sets
		WHERE id = $1 AND (keycloak_id = $2 OR sharedpublicly)`

	set, err := scanSet(s.db.QueryRowContext(ctx, query, id, subject))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user set %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user set: %w", err)
	}
	return set, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, subject string) ([]*models.UserSet, error) {
	query := `SELECT ` + setColumns + ` FROM user_sets
		WHERE keycloak_id = $1 ORDER BY creation_date DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("list user sets: %w", err)
	}
	defer rows.Close()

	sets := make([]*models.UserSet, 0)
	for rows.Next() {
		set, err := scanSet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user set: %w", err)
		}
		sets = append(sets, set)
	}
	return sets, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, id int64, subject string, set *models.UserSet) (*models.UserSet, error) {
	query := `
		UPDATE user_sets
		SET alias = $1, content = $2, sharedpublicly = $3, updated_date = $4
		WHERE id = $5 AND keycloak_id = $6
		RETURNING ` + setColumns

	row := s.db.QueryRowContext(ctx, query,
		set.Alias, []byte(set.Content), set.SharedPublicly, set.UpdatedDate,
		id, subject)

	updated, err := scanSet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user set %d: %w", id, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("update user set: %w", err)
	}
	return updated, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64, subject string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM user_sets WHERE id = $1 AND keycloak_id = $2`, id, subject)
	if err != nil {
		return fmt.Errorf("delete user set: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user set: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("user set %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSet(row rowScanner) (*models.UserSet, error) {
	var set models.UserSet
	var content []byte
	err := row.Scan(
		&set.ID, &set.KeycloakID, &set.Alias, &content,
		&set.SharedPublicly, &set.CreationDate, &set.UpdatedDate,
	)
	if err != nil {
		return nil, err
	}
	set.Content = content
	return &set, nil
}
