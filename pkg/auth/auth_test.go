package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newVerifier(t *testing.T) *Verifier {
	t.Helper()
	v, err := NewVerifier(secret)
	require.NoError(t, err)
	return v
}

func TestNewVerifier_EmptySecret(t *testing.T) {
	_, err := NewVerifier("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestVerify(t *testing.T) {
	v := newVerifier(t)

	token, err := v.Sign(Claims{UserID: "42", Role: RoleAdmin})
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "42", Role: RoleAdmin}, id)
	assert.True(t, id.IsAdmin())
}

func TestVerify_NumericUserID(t *testing.T) {
	v := newVerifier(t)
	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 17, "role": "user"})
	token, err := raw.SignedString([]byte(secret))
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "17", id.UserID)
	assert.Equal(t, RoleUser, id.Role)
}

func TestVerify_SubjectFallback(t *testing.T) {
	v := newVerifier(t)
	token, err := v.Sign(Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "abc"}})
	require.NoError(t, err)

	id, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "abc", id.UserID)
}

func TestVerify_Rejects(t *testing.T) {
	v := newVerifier(t)

	other, err := NewVerifier("another-secret")
	require.NoError(t, err)
	foreign, err := other.Sign(Claims{UserID: "1"})
	require.NoError(t, err)

	expired, err := v.Sign(Claims{UserID: "1", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}})
	require.NoError(t, err)

	anonymous, err := v.Sign(Claims{Role: RoleUser})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := map[string]string{
		"wrong secret": foreign,
		"expired":      expired,
		"no user":      anonymous,
		"alg none":     none,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.Error(t, err)
		})
	}
}

func TestUserID_UnmarshalJSON(t *testing.T) {
	tests := map[string]string{
		`"u-1"`: "u-1",
		`12`:    "12",
		`1.5`:   "1.5",
		`null`:  "",
	}
	for in, want := range tests {
		var u UserID
		require.NoError(t, u.UnmarshalJSON([]byte(in)), in)
		assert.Equal(t, UserID(want), u, in)
	}

	var u UserID
	assert.Error(t, u.UnmarshalJSON([]byte(`{}`)))
}

func serve(t *testing.T, v *Verifier, header string, mw ...echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	handler := func(c echo.Context) error {
		id, ok := FromContext(c)
		if !ok {
			return c.NoContent(http.StatusTeapot)
		}
		return c.JSON(http.StatusOK, id)
	}
	e.GET("/", handler, append([]echo.MiddlewareFunc{v.Middleware()}, mw...)...)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware(t *testing.T) {
	v := newVerifier(t)
	user, err := v.Sign(Claims{UserID: "5", Role: RoleUser})
	require.NoError(t, err)
	admin, err := v.Sign(Claims{UserID: "6", Role: RoleAdmin})
	require.NoError(t, err)

	rec := serve(t, v, "Bearer "+user)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"5","role":"user"}`, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(t, v, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, v, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, v, "Bearer ").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(t, v, "Bearer nope").Code)

	assert.Equal(t, http.StatusForbidden, serve(t, v, "Bearer "+user, RequireRole(RoleAdmin)).Code)
	assert.Equal(t, http.StatusOK, serve(t, v, "Bearer "+admin, RequireRole(RoleAdmin)).Code)
}
