package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerbridge/recvdash/internal/aging"
)

// PrefKeyHideZero is the durable preference name for the zero-visibility
// policy. Stored values are "hide" or "show".
const PrefKeyHideZero = "recv_hide_zero"

// PrefStore persists per-user view preferences. The zero-visibility policy is
// the only cross-session preference: read once at mount, written only on an
// explicit toggle.
type PrefStore interface {
	ZeroPolicy(ctx context.Context, userID string) (aging.ZeroPolicy, error)
	SetZeroPolicy(ctx context.Context, userID string, policy aging.ZeroPolicy) error
}

// PrefRepository is the PostgreSQL backed PrefStore.
type PrefRepository struct {
	pool *pgxpool.Pool
}

// NewPrefRepository constructs a repository.
func NewPrefRepository(pool *pgxpool.Pool) *PrefRepository {
	return &PrefRepository{pool: pool}
}

// ZeroPolicy reads the stored policy, defaulting to show when no prior
// preference exists.
func (r *PrefRepository) ZeroPolicy(ctx context.Context, userID string) (aging.ZeroPolicy, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT pref_value FROM dashboard_prefs WHERE user_id = $1 AND pref_key = $2`,
		userID, PrefKeyHideZero,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return aging.ShowZero, nil
	}
	if err != nil {
		return aging.ShowZero, fmt.Errorf("dashboard: read pref: %w", err)
	}
	if value == "hide" {
		return aging.HideZero, nil
	}
	return aging.ShowZero, nil
}

// SetZeroPolicy stores the policy. Insert first; an existing row trips the
// unique constraint and is updated instead.
func (r *PrefRepository) SetZeroPolicy(ctx context.Context, userID string, policy aging.ZeroPolicy) error {
	value := "show"
	if policy == aging.HideZero {
		value = "hide"
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO dashboard_prefs (user_id, pref_key, pref_value) VALUES ($1, $2, $3)`,
		userID, PrefKeyHideZero, value,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == "uq_dashboard_prefs" {
			_, err = r.pool.Exec(ctx,
				`UPDATE dashboard_prefs SET pref_value = $3 WHERE user_id = $1 AND pref_key = $2`,
				userID, PrefKeyHideZero, value,
			)
		}
	}
	if err != nil {
		return fmt.Errorf("dashboard: write pref: %w", err)
	}
	return nil
}

// MemoryPrefStore is an in-memory PrefStore for tests and ledger-only setups.
type MemoryPrefStore struct {
	mu     sync.Mutex
	values map[string]aging.ZeroPolicy
}

// NewMemoryPrefStore builds an empty store.
func NewMemoryPrefStore() *MemoryPrefStore {
	return &MemoryPrefStore{values: make(map[string]aging.ZeroPolicy)}
}

// ZeroPolicy implements PrefStore.
func (m *MemoryPrefStore) ZeroPolicy(_ context.Context, userID string) (aging.ZeroPolicy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if policy, ok := m.values[userID]; ok {
		return policy, nil
	}
	return aging.ShowZero, nil
}

// SetZeroPolicy implements PrefStore.
func (m *MemoryPrefStore) SetZeroPolicy(_ context.Context, userID string, policy aging.ZeroPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[userID] = policy
	return nil
}
