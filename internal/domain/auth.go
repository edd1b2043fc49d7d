package domain

import "time"

// Token represents metadata of an issued access token.
type Token struct {
	ID        string
	SubjectID string
	Email     string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal is the verified identity attached to a request.
type Principal struct {
	SubjectID string
	Email     string
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}
