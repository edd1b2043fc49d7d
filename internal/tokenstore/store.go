// Package tokenstore persists a client's credentials and cached profile in a
// scoped key-value backend. It performs no validation of what it stores.
package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spec-kit/umkm-portal/internal/domain"
)

// Storage keys shared by every backend.
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUser         = "user"
)

// ErrKeyNotFound is returned by a KV when the key is absent.
var ErrKeyNotFound = errors.New("key not found")

// KV is the minimal storage a Store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Credentials are the tokens issued to the client.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether no access token is held.
func (c Credentials) Empty() bool {
	return c.AccessToken == ""
}

// Store reads and writes credentials and the cached profile.
type Store interface {
	Save(ctx context.Context, creds Credentials, user *domain.User) error
	Load(ctx context.Context) (Credentials, *domain.User, error)
	Clear(ctx context.Context) error
}

type kvStore struct {
	kv KV
}

// New returns a Store over kv.
func New(kv KV) Store {
	return &kvStore{kv: kv}
}

// Save writes the credentials and, when user is non-nil, the profile. A
// nil user or empty refresh token removes any previously stored value.
func (s *kvStore) Save(ctx context.Context, creds Credentials, user *domain.User) error {
	if err := s.kv.Set(ctx, KeyAccessToken, creds.AccessToken); err != nil {
		return fmt.Errorf("save %s: %w", KeyAccessToken, err)
	}

	if creds.RefreshToken != "" {
		if err := s.kv.Set(ctx, KeyRefreshToken, creds.RefreshToken); err != nil {
			return fmt.Errorf("save %s: %w", KeyRefreshToken, err)
		}
	} else if err := s.kv.Delete(ctx, KeyRefreshToken); err != nil {
		return fmt.Errorf("delete %s: %w", KeyRefreshToken, err)
	}

	if user == nil {
		if err := s.kv.Delete(ctx, KeyUser); err != nil {
			return fmt.Errorf("delete %s: %w", KeyUser, err)
		}
		return nil
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	if err := s.kv.Set(ctx, KeyUser, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", KeyUser, err)
	}
	return nil
}

// Load returns whatever is stored. Absent values come back as zero
// credentials and a nil user without error.
func (s *kvStore) Load(ctx context.Context) (Credentials, *domain.User, error) {
	var creds Credentials

	access, err := s.get(ctx, KeyAccessToken)
	if err != nil {
		return Credentials{}, nil, err
	}
	creds.AccessToken = access

	refresh, err := s.get(ctx, KeyRefreshToken)
	if err != nil {
		return Credentials{}, nil, err
	}
	creds.RefreshToken = refresh

	raw, err := s.get(ctx, KeyUser)
	if err != nil {
		return Credentials{}, nil, err
	}
	if raw == "" {
		return creds, nil, nil
	}

	var user domain.User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return creds, nil, fmt.Errorf("unmarshal %s: %w", KeyUser, err)
	}
	return creds, &user, nil
}

// Clear removes all keys.
func (s *kvStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

func (s *kvStore) get(ctx context.Context, key string) (string, error) {
	value, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return value, nil
}
