package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SettingsStore abstracts the DB query for testability.
type SettingsStore interface {
	LookupSettings(ctx context.Context) (string, error)
}

// sqlSettingsStore is the real implementation using *sql.DB.
type sqlSettingsStore struct {
	db *sql.DB
}

func (s *sqlSettingsStore) LookupSettings(ctx context.Context) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM toolhub_settings WHERE key = 'default'`,
	).Scan(&value)
	if err != nil {
		return "", err
	}
	return value, nil
}

type cacheEntry struct {
	settings   *Settings
	expiresAt  time.Time
	refreshing atomic.Bool
}

// PostgresStore loads settings from the toolhub_settings table with a
// TTL stale-while-revalidate cache: an expired entry is served
// immediately while one goroutine refreshes in the background, so tool
// executions never block on the DB after the first cold read.
type PostgresStore struct {
	store  SettingsStore
	ttl    time.Duration
	logger *zap.Logger

	mu    sync.Mutex // guards entry swap on cold load
	entry atomic.Pointer[cacheEntry]
}

// PostgresStoreConfig configures the PostgresStore.
type PostgresStoreConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration
	Logger   *zap.Logger
}

// NewPostgresStore creates a settings store backed by PostgreSQL.
func NewPostgresStore(cfg PostgresStoreConfig) *PostgresStore {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 15 * time.Second
	}
	return &PostgresStore{
		store:  &sqlSettingsStore{db: cfg.DB},
		ttl:    ttl,
		logger: cfg.Logger,
	}
}

// newPostgresStoreWithBackend creates a store with an injected backend (for testing).
func newPostgresStoreWithBackend(backend SettingsStore, ttl time.Duration, logger *zap.Logger) *PostgresStore {
	if ttl == 0 {
		ttl = 15 * time.Second
	}
	return &PostgresStore{store: backend, ttl: ttl, logger: logger}
}

func (p *PostgresStore) Load(ctx context.Context) (*Settings, error) {
	if entry := p.entry.Load(); entry != nil {
		if time.Now().Before(entry.expiresAt) {
			return entry.settings, nil
		}
		// Stale — serve it, refresh in background (one goroutine wins the CAS).
		if entry.refreshing.CompareAndSwap(false, true) {
			go p.refreshInBackground()
		}
		return entry.settings, nil
	}

	// Cold start — synchronous load.
	p.mu.Lock()
	defer p.mu.Unlock()
	if entry := p.entry.Load(); entry != nil {
		return entry.settings, nil
	}

	s, err := p.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("settings load: %w", err)
	}
	p.entry.Store(&cacheEntry{settings: s, expiresAt: time.Now().Add(p.ttl)})
	return s, nil
}

func (p *PostgresStore) fetch(ctx context.Context) (*Settings, error) {
	raw, err := p.store.LookupSettings(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			// No settings row yet — everything unconfigured.
			return &Settings{}, nil
		}
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("settings value: %w", err)
	}
	return &s, nil
}

func (p *PostgresStore) refreshInBackground() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("background settings refresh failed", zap.Error(err))
		// Leave the stale entry in place; clear the refreshing flag so
		// the next stale read retries.
		if entry := p.entry.Load(); entry != nil {
			entry.refreshing.Store(false)
		}
		return
	}
	p.entry.Store(&cacheEntry{settings: s, expiresAt: time.Now().Add(p.ttl)})
}
