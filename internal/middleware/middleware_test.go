package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carrental/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.TestMode)
}

func signToken(t *testing.T, secret, subject string, role models.Role, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedRouter(roles ...models.Role) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{Auth(testSecret)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		p, _ := PrincipalFrom(c)
		c.String(http.StatusOK, p.UserID+":"+string(p.Role))
	})
	r.GET("/private", handlers...)
	return r
}

func get(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := protectedRouter()
	hour := time.Now().Add(time.Hour)

	tests := []struct {
		name   string
		token  string
		status int
		body   string
	}{
		{"missing token", "", http.StatusUnauthorized, ""},
		{"wrong secret", signToken(t, "other", "u-1", models.RoleUser, hour), http.StatusUnauthorized, ""},
		{"expired", signToken(t, testSecret, "u-1", models.RoleUser, time.Now().Add(-time.Minute)), http.StatusUnauthorized, ""},
		{"no subject", signToken(t, testSecret, "", models.RoleUser, hour), http.StatusUnauthorized, ""},
		{"unknown role", signToken(t, testSecret, "u-1", "root", hour), http.StatusUnauthorized, ""},
		{"default role", signToken(t, testSecret, "u-1", "", hour), http.StatusOK, "u-1:user"},
		{"admin", signToken(t, testSecret, "a-1", models.RoleAdmin, hour), http.StatusOK, "a-1:admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(r, tt.token)
			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := protectedRouter(models.RoleAdmin)
	hour := time.Now().Add(time.Hour)

	w := get(r, signToken(t, testSecret, "u-1", models.RoleUser, hour))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	w = get(r, signToken(t, testSecret, "a-1", models.RoleAdmin, hour))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(1, 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, codes)
}

func TestRateLimitPerIP(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.2"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Second))

	var deadline bool
	r.GET("/", func(c *gin.Context) {
		_, deadline = c.Request.Context().Deadline()
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil).WithContext(context.Background()))
	assert.True(t, deadline)
}

func TestRecoveryAnswersEnvelope(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Internal server error","data":null}`, w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
