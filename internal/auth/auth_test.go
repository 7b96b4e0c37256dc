package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticator_IssueParse(t *testing.T) {
	a := New("secret", time.Hour)
	token, err := a.Issue("cust-1", RoleCustomer)
	require.NoError(t, err)

	p, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Principal{Subject: "cust-1", Role: RoleCustomer}, p)

	_, err = New("other", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Issue("x", Role("admin"))
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestAuthenticator_Expired(t *testing.T) {
	a := New("secret", time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a.now = func() time.Time { return now }
	token, err := a.Issue("owner", RoleOwner)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = a.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticator_Require(t *testing.T) {
	a := New("secret", time.Hour)
	e := echo.New()
	e.GET("/owner", func(c echo.Context) error {
		p, ok := FromContext(c)
		require.True(t, ok)
		return c.String(http.StatusOK, p.Subject)
	}, a.Require(RoleOwner))

	ownerToken, err := a.Issue("owner-1", RoleOwner)
	require.NoError(t, err)
	customerToken, err := a.Issue("cust-1", RoleCustomer)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "Bearer nope", http.StatusUnauthorized},
		{"wrong_role", "Bearer " + customerToken, http.StatusForbidden},
		{"owner", "Bearer " + ownerToken, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/owner", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
