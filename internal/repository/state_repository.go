package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Keys stored in app_state.
const (
	StateActiveScope = "active_scope"
	StateLastSync    = "last_sync_date"
)

// StateRepository is a small key-value store for instance-local state such as
// the active teacher scope. Clearing the scope on logout never touches the
// remote teacher record.
type StateRepository struct {
	db *sqlx.DB
}

// NewStateRepository constructs a StateRepository.
func NewStateRepository(db *sqlx.DB) *StateRepository {
	return &StateRepository{db: db}
}

// Get returns the stored value, or empty string when the key is unset.
func (r *StateRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.GetContext(ctx, &value, "SELECT value FROM app_state WHERE key = $1", key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return value, nil
}

// Set stores or replaces the value for a key.
func (r *StateRepository) Set(ctx context.Context, key, value string) error {
	const query = `INSERT INTO app_state (key, value) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// Clear removes a key.
func (r *StateRepository) Clear(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM app_state WHERE key = $1", key); err != nil {
		return fmt.Errorf("clear state %s: %w", key, err)
	}
	return nil
}
