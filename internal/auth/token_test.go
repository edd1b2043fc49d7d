package auth

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/umkm-portal/internal/domain"
)

var testSecret = []byte("test-secret")

func signedToken(t *testing.T, secret []byte, role domain.Role, exp time.Time) string {
	t.Helper()
	token, err := SignClaims(secret, &Claims{
		Email: "owner@example.com",
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "jti-1",
			Subject:   "u1",
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	require.NoError(t, err)
	return token
}

func TestVerifier_Valid(t *testing.T) {
	v := NewVerifier(testSecret, nil)
	token := signedToken(t, testSecret, domain.RoleUMKMOwner, time.Now().Add(time.Hour))

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "owner@example.com", claims.Email)
	assert.Equal(t, domain.RoleUMKMOwner, claims.Role)

	p := claims.Principal()
	assert.Equal(t, "u1", p.SubjectID)
	assert.Equal(t, "jti-1", p.TokenID)
}

func TestVerifier_ExpiredRegardlessOfSignature(t *testing.T) {
	v := NewVerifier(testSecret, nil)
	past := time.Now().Add(-time.Second)

	for name, secret := range map[string][]byte{
		"valid signature": testSecret,
		"wrong secret":    []byte("another-secret"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(signedToken(t, secret, domain.RoleSuperAdmin, past))
			assert.ErrorIs(t, err, ErrExpired)
			assert.Equal(t, KindExpired, KindOf(err))
		})
	}

	t.Run("tampered signature", func(t *testing.T) {
		token := signedToken(t, testSecret, domain.RoleSuperAdmin, past)
		parts := strings.Split(token, ".")
		parts[2] = base64.RawURLEncoding.EncodeToString([]byte("garbage"))
		_, err := v.Verify(strings.Join(parts, "."))
		assert.ErrorIs(t, err, ErrExpired)
	})
}

func TestVerifier_ExpiryBoundary(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signedToken(t, testSecret, domain.RoleAdminStaff, exp)

	_, err := NewVerifier(testSecret, func() time.Time { return exp }).Verify(token)
	assert.ErrorIs(t, err, ErrExpired)

	_, err = NewVerifier(testSecret, func() time.Time { return exp.Add(-time.Millisecond) }).Verify(token)
	assert.NoError(t, err)
}

func TestVerifier_BadSignature(t *testing.T) {
	v := NewVerifier(testSecret, nil)
	token := signedToken(t, []byte("another-secret"), domain.RoleUMKMOwner, time.Now().Add(time.Hour))

	_, err := v.Verify(token)
	assert.ErrorIs(t, err, ErrBadSignature)
	assert.NotErrorIs(t, err, ErrExpired)
}

func TestVerifier_RejectsOtherAlgorithms(t *testing.T) {
	claims := &Claims{
		Role: domain.RoleSuperAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewVerifier(testSecret, nil).Verify(unsigned)
	assert.ErrorIs(t, err, ErrBadSignature)

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	require.NoError(t, err)
	_, err = NewVerifier(testSecret, nil).Verify(hs512)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestVerifier_Malformed(t *testing.T) {
	v := NewVerifier(testSecret, nil)

	tests := map[string]string{
		"empty":          "",
		"two segments":   "abc.def",
		"bad encoding":   "!!!.@@@.###",
		"not json":       base64.RawURLEncoding.EncodeToString([]byte("x")) + ".e30.sig",
		"placeholder":    "mock-token-umkm_owner",
		"missing expiry": mustSign(t, &Claims{Role: domain.RoleUMKMOwner, RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}),
		"unknown role":   mustSign(t, &Claims{Role: "owner", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}),
		"missing sub":    mustSign(t, &Claims{Role: domain.RoleUMKMOwner, RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}}),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, ErrMalformedToken)
		})
	}
}

func mustSign(t *testing.T, claims *Claims) string {
	t.Helper()
	token, err := SignClaims(testSecret, claims)
	require.NoError(t, err)
	return token
}

func TestTokenManager_GenerateAndParse(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tm := NewTokenManager("secret", 30*time.Minute).WithClock(func() time.Time { return now })

	user := &domain.User{ID: "u42", Email: "staff@example.com", Role: domain.RoleAdminStaff}
	token, meta, err := tm.GenerateToken(user)
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, now.Add(30*time.Minute), meta.ExpiresAt)

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u42", claims.Subject)
	assert.Equal(t, domain.RoleAdminStaff, claims.Role)
	assert.Equal(t, meta.ID, claims.ID)

	later := tm.WithClock(func() time.Time { return now.Add(31 * time.Minute) })
	_, err = later.ParseToken(token)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestSelfReportedValid(t *testing.T) {
	token := signedToken(t, []byte("unknown-to-client"), domain.RoleUMKMOwner, time.Now().Add(time.Hour))

	claims, ok := SelfReportedValid(token, time.Now())
	require.True(t, ok)
	assert.Equal(t, domain.RoleUMKMOwner, claims.Role)

	_, ok = SelfReportedValid(token, time.Now().Add(2*time.Hour))
	assert.False(t, ok)

	_, ok = SelfReportedValid("garbage", time.Now())
	assert.False(t, ok)
}
