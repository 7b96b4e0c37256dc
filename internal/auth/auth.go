// Package auth issues and validates bearer tokens carrying a caller role.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/solveprint/printshop/internal/config"
	"github.com/solveprint/printshop/internal/presentation/http/response"
	"github.com/solveprint/printshop/pkg/errorbank"
)

// Role is the kind of caller.
type Role string

const (
	RoleCustomer  Role = "customer"
	RoleOwner     Role = "owner"
	RoleDeveloper Role = "developer"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrInvalidRole  = errors.New("invalid role")
)

const principalKey = "printshop.principal"

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleCustomer, RoleOwner, RoleDeveloper:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Principal is the authenticated caller.
type Principal struct {
	Subject string
	Role    Role
}

// Is reports whether the principal holds one of roles.
func (p Principal) Is(roles ...Role) bool {
	return slices.Contains(roles, p.Role)
}

type claims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator signs and parses HS256 tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Module provides the Authenticator to Fx.
var Module = fx.Provide(NewFromConfig)

// NewFromConfig builds an Authenticator from the auth section.
func NewFromConfig(cfg config.Config) *Authenticator {
	return New(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
}

// New creates an Authenticator. A zero ttl defaults to one day.
func New(secret string, ttl time.Duration) *Authenticator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Authenticator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for subject with role.
func (a *Authenticator) Issue(subject string, role Role) (string, error) {
	if subject == "" {
		return "", errors.New("subject is required")
	}
	if _, err := ParseRole(string(role)); err != nil {
		return "", err
	}
	now := a.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
	return token.SignedString(a.secret)
}

// Parse validates a token and returns its principal.
func (a *Authenticator) Parse(token string) (Principal, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	role, err := ParseRole(string(c.Role))
	if err != nil || c.Subject == "" {
		return Principal{}, ErrInvalidToken
	}
	return Principal{Subject: c.Subject, Role: role}, nil
}

// Require rejects requests without a valid bearer token for one of roles.
func (a *Authenticator) Require(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return renderError(c, errorbank.Unauthorized("missing bearer token"))
			}
			p, err := a.Parse(strings.TrimSpace(raw))
			if err != nil {
				return renderError(c, errorbank.Unauthorized("invalid or expired token", errorbank.WithCause(err)))
			}
			if len(roles) > 0 && !p.Is(roles...) {
				return renderError(c, errorbank.Forbidden("role not permitted for this action"))
			}
			c.Set(principalKey, p)
			return next(c)
		}
	}
}

// FromContext returns the principal stored by Require.
func FromContext(c echo.Context) (Principal, bool) {
	p, ok := c.Get(principalKey).(Principal)
	return p, ok
}

// WithPrincipal stores p on the echo context.
func WithPrincipal(c echo.Context, p Principal) {
	c.Set(principalKey, p)
}

func renderError(c echo.Context, appErr *errorbank.AppError) error {
	return response.New(c).WithError(appErr).Build()
}
