package persistence

import (
	"github.com/spec-kit/umkm-portal/internal/repository"
)

// UserStore picks the Postgres repository when a pool exists and the
// in-memory one otherwise.
func UserStore(pg *Postgres) repository.UserRepository {
	if pg.Configured() {
		return repository.NewUserRepository(pg.Pool)
	}
	return repository.NewMemoryUserRepository()
}

// RevocationStore picks the Redis repository when a client exists and the
// in-memory one otherwise.
func RevocationStore(r *Redis) repository.RevocationRepository {
	if r.Configured() {
		return repository.NewRedisRevocationRepository(r.Client)
	}
	return repository.NewMemoryRevocationRepository()
}
