package authapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/umkm-portal/internal/domain"
)

func TestLogin_Envelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.com", body["email"])
		assert.Equal(t, "Secret1!", body["password"])

		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"data": map[string]any{
				"user":  map[string]string{"id": "u1", "email": "a@b.com", "role": "umkm_owner"},
				"token": "T",
			},
		})
	}))
	defer srv.Close()

	resp, err := New(srv.URL+"/api/", time.Second).Login(context.Background(), "a@b.com", "Secret1!")
	require.NoError(t, err)
	assert.Equal(t, "T", resp.Token)
	assert.Equal(t, "u1", resp.User.ID)
	assert.Equal(t, domain.RoleUMKMOwner, resp.User.Role)
}

func TestLogin_BareBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"user":{"id":"u2","role":"super_admin"},"token":"T2","refresh_token":"R2"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	resp, err := New(srv.URL, time.Second).Login(context.Background(), "x@y.z", "pw")
	require.NoError(t, err)
	assert.Equal(t, "T2", resp.Token)
	assert.Equal(t, "R2", resp.RefreshToken)
	assert.Equal(t, domain.RoleSuperAdmin, resp.User.Role)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":"INVALID_CREDENTIALS","message":"invalid credentials"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Login(context.Background(), "a@b.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.True(t, IsStatus(err, http.StatusUnauthorized))

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_CREDENTIALS", apiErr.Code)
	assert.Equal(t, "invalid credentials", apiErr.Message)
}

func TestLogin_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"data":{"user":{"id":"u1"}}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Login(context.Background(), "a@b.com", "pw")
	assert.ErrorIs(t, err, ErrServerError)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
		msg    string
	}{
		{http.StatusInternalServerError, `{"error":"database down"}`, ErrServerError, "database down"},
		{http.StatusBadGateway, `upstream failed`, ErrServerError, "upstream failed"},
		{http.StatusConflict, `{"message":"email already registered"}`, ErrRejected, "email already registered"},
		{http.StatusBadRequest, ``, ErrRejected, "Bad Request"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body)) //nolint:errcheck
			}))
			defer srv.Close()

			_, err := New(srv.URL, time.Second).Register(context.Background(), RegisterRequest{Email: "a@b.com"})
			assert.ErrorIs(t, err, tt.want)
			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.msg, apiErr.Message)
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := New(url, time.Second).Me(context.Background(), "T")
	assert.ErrorIs(t, err, ErrNetworkFailure)
}

func TestMe_SendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer T" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"data":{"id":"u1","email":"a@b.com","full_name":"A","role":"admin_staff"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	user, err := c.Me(context.Background(), "T")
	require.NoError(t, err)
	assert.Equal(t, "A", user.FullName)
	assert.Equal(t, domain.RoleAdminStaff, user.Role)

	_, err = c.Me(context.Background(), "other")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterAndLogout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/register":
			var req RegisterRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "Budi", req.FullName)
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":{"message":"registered","user_id":"u9"}}`)) //nolint:errcheck
		case "/auth/logout":
			assert.Equal(t, "Bearer T", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	resp, err := c.Register(context.Background(), RegisterRequest{Email: "b@c.com", Password: "Secret1!", FullName: "Budi"})
	require.NoError(t, err)
	assert.Equal(t, "u9", resp.UserID)
	assert.Equal(t, "registered", resp.Message)

	assert.NoError(t, c.Logout(context.Background(), "T"))
}
