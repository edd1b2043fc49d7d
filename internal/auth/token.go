package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/umkm-portal/internal/domain"
)

// VerificationKind classifies why a token was rejected.
type VerificationKind string

const (
	KindMalformed    VerificationKind = "malformed_token"
	KindBadSignature VerificationKind = "bad_signature"
	KindExpired      VerificationKind = "expired"
)

var (
	ErrMalformedToken = errors.New("malformed token")
	ErrBadSignature   = errors.New("bad token signature")
	ErrExpired        = errors.New("token expired")
)

// VerificationError reports a rejected token. It matches the sentinel of
// its kind with errors.Is.
type VerificationError struct {
	Kind VerificationKind
	Err  error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

func (e *VerificationError) Is(target error) bool {
	switch target {
	case ErrMalformedToken:
		return e.Kind == KindMalformed
	case ErrBadSignature:
		return e.Kind == KindBadSignature
	case ErrExpired:
		return e.Kind == KindExpired
	}
	return false
}

// KindOf returns the verification kind carried by err, or "" if err is not
// a verification failure.
func KindOf(err error) VerificationKind {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr.Kind
	}
	return ""
}

func verificationError(kind VerificationKind, err error) error {
	return &VerificationError{Kind: kind, Err: err}
}

// Claims describes the JWT payload.
type Claims struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts verified claims into the request identity.
func (c *Claims) Principal() domain.Principal {
	p := domain.Principal{
		SubjectID: c.Subject,
		Email:     c.Email,
		Role:      c.Role,
		TokenID:   c.ID,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

// TokenManager handles issuing and validating JWT tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the manager using now as its time source.
func (tm *TokenManager) WithClock(now func() time.Time) *TokenManager {
	cp := *tm
	cp.now = now
	return &cp
}

// GenerateToken builds and signs a JWT for the user.
func (tm *TokenManager) GenerateToken(user *domain.User) (string, domain.Token, error) {
	issuedAt := tm.now()
	meta := domain.Token{
		ID:        uuid.NewString(),
		SubjectID: user.ID,
		Email:     user.Email,
		Role:      user.Role,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(tm.ttl),
	}
	tokenString, err := SignClaims(tm.secret, &Claims{
		Email: meta.Email,
		Role:  meta.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        meta.ID,
			Subject:   meta.SubjectID,
			IssuedAt:  jwt.NewNumericDate(meta.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(meta.ExpiresAt),
		},
	})
	if err != nil {
		return "", domain.Token{}, err
	}
	return tokenString, meta, nil
}

// ParseToken validates tokenStr against the manager's secret.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	return tm.Verifier().Verify(tokenStr)
}

// Verifier returns a verifier sharing the manager's secret and clock.
func (tm *TokenManager) Verifier() *Verifier {
	return &Verifier{secret: tm.secret, now: tm.now}
}

// SignClaims signs claims with HS256.
func SignClaims(secret []byte, claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verifier checks token integrity and expiry. It holds no mutable state
// and is safe for concurrent use.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier builds a verifier for secret. A nil now uses time.Now.
func NewVerifier(secret []byte, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{secret: secret, now: now}
}

// Verify returns the claims of a token whose signature is valid and whose
// expiry lies in the future. Expiry is judged before the signature, so an
// expired token always reports ErrExpired.
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	now := v.now()

	peeked, err := PeekClaims(tokenStr)
	if err != nil {
		return nil, err
	}
	if !now.Before(peeked.ExpiresAt.Time) {
		return nil, verificationError(KindExpired, nil)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !parsed.Valid {
		return nil, verificationError(KindBadSignature, nil)
	}
	return claims, nil
}

// PeekClaims decodes a token without checking its signature. The result
// is only fit for a holder's own bookkeeping, never for access decisions.
func PeekClaims(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, classify(err)
	}
	if claims.ExpiresAt == nil {
		return nil, verificationError(KindMalformed, errors.New("missing exp claim"))
	}
	if claims.Subject == "" {
		return nil, verificationError(KindMalformed, errors.New("missing sub claim"))
	}
	if !claims.Role.Valid() {
		return nil, verificationError(KindMalformed, fmt.Errorf("unknown role %q", claims.Role))
	}
	return claims, nil
}

// SelfReportedValid reports whether the token decodes and claims an expiry
// after now. The signature is not checked.
func SelfReportedValid(tokenStr string, now time.Time) (*Claims, bool) {
	claims, err := PeekClaims(tokenStr)
	if err != nil {
		return nil, false
	}
	return claims, now.Before(claims.ExpiresAt.Time)
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return verificationError(KindExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return verificationError(KindBadSignature, err)
	default:
		return verificationError(KindMalformed, err)
	}
}
