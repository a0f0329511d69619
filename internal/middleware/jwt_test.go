package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withSettings(t *testing.T, jwtSecret string, ttl time.Duration) {
	t.Helper()
	prevSecret, prevTTL := secret, tokenTTL
	Configure(jwtSecret, ttl)
	t.Cleanup(func() { secret, tokenTTL = prevSecret, prevTTL })
}

func TestGenerateAndValidateToken(t *testing.T) {
	withSettings(t, "0123456789abcdef0123456789abcdef", time.Hour)

	token, err := GenerateToken(3, "EDITOR", "editor")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.EqualValues(t, 3, claims.AdminID)
	assert.Equal(t, "EDITOR", claims.Role)
	assert.Equal(t, "editor", claims.Username)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidateToken_Rejects(t *testing.T) {
	withSettings(t, "first-secret-first-secret-first!!", time.Hour)
	signedElsewhere, err := GenerateToken(1, "EDITOR", "editor")
	require.NoError(t, err)

	withSettings(t, "second-secret-second-secret-second", time.Hour)
	_, err = ValidateToken(signedElsewhere)
	assert.Error(t, err)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		AdminID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	})
	raw, err := expired.SignedString(secret)
	require.NoError(t, err)
	_, err = ValidateToken(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{AdminID: 1})
	raw, err = none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = ValidateToken(raw)
	assert.Error(t, err)
}

func TestRequireRole(t *testing.T) {
	withSettings(t, "0123456789abcdef0123456789abcdef", time.Hour)
	gin.SetMode(gin.TestMode)

	ran := 0
	r := gin.New()
	r.GET("/admin", RequireRole("SUPERADMIN", "EDITOR"), func(c *gin.Context) {
		ran++
		c.JSON(http.StatusOK, gin.H{"admin_id": c.MustGet("admin_id").(uint)})
	})

	call := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, call("").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Token abc").Code)
	assert.Equal(t, http.StatusUnauthorized, call("Bearer not-a-jwt").Code)

	visitor, err := GenerateToken(2, "VISITOR", "guest")
	require.NoError(t, err)
	w := call("Bearer " + visitor)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Insufficient permissions"}`, w.Body.String())
	assert.Zero(t, ran, "handler must not run before the role check")

	editor, err := GenerateToken(5, "EDITOR", "editor")
	require.NoError(t, err)
	w = call("Bearer " + editor)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ran)
	assert.JSONEq(t, `{"admin_id":5}`, w.Body.String())
}
