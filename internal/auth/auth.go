package auth

import (
	"errors"
	"net/http"
	"strings"
)

var (
	ErrMissingAPIKey = errors.New("missing authorization header")
	ErrInvalidAPIKey = errors.New("invalid API key")
)

// UserContext holds the authenticated caller's identity.
type UserContext struct {
	UserID string
	// MemoriesEnabled mirrors the account-level flag; a disabled
	// account still authenticates but gets an empty memory surface.
	MemoriesEnabled bool
}

// Authenticator validates incoming HTTP requests.
type Authenticator interface {
	Authenticate(r *http.Request) (*UserContext, error)
}

// ExtractBearerToken extracts an isk_ API key from the Authorization header.
func ExtractBearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingAPIKey
	}
	token := header
	// RFC 6750: the "Bearer" scheme is case-insensitive.
	if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
		token = token[7:]
	}
	token = strings.TrimSpace(token)
	if len(token) < 12 || !strings.HasPrefix(token, "isk_") {
		return "", ErrInvalidAPIKey
	}
	return token, nil
}

// StaticAuthenticator is a development-only authenticator that accepts
// any well-formed isk_ key.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(r *http.Request) (*UserContext, error) {
	token, err := ExtractBearerToken(r)
	if err != nil {
		return nil, err
	}
	return &UserContext{
		UserID:          "static-" + token[4:12],
		MemoriesEnabled: true,
	}, nil
}
