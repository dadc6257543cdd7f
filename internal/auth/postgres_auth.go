package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// KeyStore abstracts DB queries for testability.
type KeyStore interface {
	LookupByPrefix(ctx context.Context, prefix string) (*keyRow, error)
}

type keyRow struct {
	UserID          string
	APIKeyHash      string
	MemoriesEnabled bool
}

// sqlKeyStore is the real implementation using *sql.DB.
type sqlKeyStore struct {
	db *sql.DB
}

func (s *sqlKeyStore) LookupByPrefix(ctx context.Context, prefix string) (*keyRow, error) {
	row := &keyRow{}
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, api_key_hash, memories_enabled
		 FROM api_keys
		 WHERE api_key_prefix = $1`,
		prefix,
	).Scan(&row.UserID, &row.APIKeyHash, &row.MemoriesEnabled)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrInvalidAPIKey // no key with this prefix — reject
		}
		return nil, fmt.Errorf("sqlKeyStore.LookupByPrefix: %w", err)
	}
	return row, nil
}

// PostgresAuthenticator validates API keys against the api_keys table.
// Uses AuthCache with stale-while-revalidate to avoid DB + bcrypt on
// the hot path.
type PostgresAuthenticator struct {
	store  KeyStore
	cache  *AuthCache
	logger *zap.Logger
}

// PostgresAuthConfig configures the PostgresAuthenticator.
type PostgresAuthConfig struct {
	DB       *sql.DB
	CacheTTL time.Duration // default 30s
	Logger   *zap.Logger
}

// NewPostgresAuthenticator creates a new authenticator backed by PostgreSQL.
func NewPostgresAuthenticator(cfg PostgresAuthConfig) *PostgresAuthenticator {
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = 30 * time.Second
	}
	return &PostgresAuthenticator{
		store:  &sqlKeyStore{db: cfg.DB},
		cache:  NewAuthCache(ttl),
		logger: cfg.Logger,
	}
}

// newPostgresAuthenticatorWithStore creates an authenticator with an injected store (for testing).
func newPostgresAuthenticatorWithStore(store KeyStore, cache *AuthCache, logger *zap.Logger) *PostgresAuthenticator {
	return &PostgresAuthenticator{store: store, cache: cache, logger: logger}
}

// Authenticate validates the API key in the request.
//
// Flow:
//  1. Extract Bearer isk_... from the Authorization header
//  2. Cache lookup (stale-while-revalidate):
//     - fresh hit: return immediately
//     - stale hit: return stale user, spawn background refresh
//     - miss: full DB + bcrypt lookup synchronously
func (a *PostgresAuthenticator) Authenticate(r *http.Request) (*UserContext, error) {
	apiKey, err := ExtractBearerToken(r)
	if err != nil {
		return nil, err
	}

	res := a.cache.Get(apiKey)
	if res.Hit && res.NeedsRefresh {
		go a.refreshInBackground(apiKey)
	}
	if res.Hit && res.User != nil {
		return res.User, nil
	}

	user, err := a.lookup(r.Context(), apiKey)
	if err != nil {
		return nil, err
	}
	a.cache.Set(apiKey, user)
	return user, nil
}

func (a *PostgresAuthenticator) lookup(ctx context.Context, apiKey string) (*UserContext, error) {
	row, err := a.store.LookupByPrefix(ctx, apiKey[:12])
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.APIKeyHash), []byte(apiKey)); err != nil {
		return nil, ErrInvalidAPIKey
	}
	return &UserContext{
		UserID:          row.UserID,
		MemoriesEnabled: row.MemoriesEnabled,
	}, nil
}

func (a *PostgresAuthenticator) refreshInBackground(apiKey string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	user, err := a.lookup(ctx, apiKey)
	if err != nil {
		a.logger.Warn("background auth refresh failed", zap.Error(err))
		a.cache.Delete(apiKey)
		return
	}
	a.cache.Set(apiKey, user)
}
