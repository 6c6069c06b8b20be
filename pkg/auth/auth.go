// Package auth verifies bearer tokens issued by the account service.
package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"

	identityKey = "identity"
)

var (
	ErrNoToken     = errors.New("no bearer token")
	ErrNoSubject   = errors.New("token has no user id")
	ErrEmptySecret = errors.New("jwt secret is empty")
)

// UserID accepts both string and numeric user_id claims and always holds the decimal string form.
type UserID string

func (u *UserID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*u = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*u = UserID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user_id must be a string or a number: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*u = UserID(strconv.FormatInt(i, 10))
		return nil
	}
	*u = UserID(n.String())
	return nil
}

// Claims are the fields the account service puts in a session token.
type Claims struct {
	UserID UserID `json:"user_id,omitzero"`
	Role   string `json:"role,omitzero"`
	jwt.RegisteredClaims
}

// Identity is the verified caller of a request.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

type Verifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Verifier{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})),
	}, nil
}

// Verify checks the signature and expiry of token and returns its identity.
// A token without user_id falls back to the sub claim.
func (v *Verifier) Verify(token string) (Identity, error) {
	var claims Claims
	_, err := v.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, err
	}

	id := string(claims.UserID)
	if id == "" {
		id = claims.Subject
	}
	if id == "" {
		return Identity{}, ErrNoSubject
	}
	return Identity{UserID: id, Role: claims.Role}, nil
}

// Sign issues an HS256 token. Only tooling and tests mint tokens here.
func (v *Verifier) Sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func bearer(header string) (string, error) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrNoToken
	}
	return strings.TrimSpace(token), nil
}

// Middleware rejects requests without a valid bearer token with 401.
func (v *Verifier) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := bearer(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Access denied. No token provided.")
			}

			id, err := v.Verify(token)
			if err != nil {
				log.Debug("token verification failed", "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(identityKey, id)
			return next(c)
		}
	}
}

// RequireRole must run after Middleware. Callers without role get 403.
func RequireRole(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := FromContext(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
			}
			if id.Role != role {
				return echo.NewHTTPError(http.StatusForbidden, fmt.Sprintf("Forbidden: Requires %s role", role))
			}
			return next(c)
		}
	}
}

func FromContext(c echo.Context) (Identity, bool) {
	id, ok := c.Get(identityKey).(Identity)
	return id, ok
}
