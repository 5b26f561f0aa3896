package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"challenge-scoring-api/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubUsers map[int]models.User

func (s stubUsers) GetUser(_ context.Context, userID int) (*models.User, error) {
	u, ok := s[userID]
	if !ok {
		return nil, errors.New("not found")
	}
	return &u, nil
}

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func validClaims(userID, roleID int) Claims {
	return Claims{
		UserID: userID,
		RoleID: roleID,
		Email:  "user@example.org",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func newAuthRouter(opts AuthOptions, roles ...int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers := []gin.HandlerFunc{AuthMiddleware(opts)}
	if len(roles) > 0 {
		handlers = append(handlers, RequireRole(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		actor, ok := CurrentActor(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": actor.UserID, "role_id": actor.RoleID})
	})
	r.GET("/secure", handlers...)
	return r
}

func doRequest(r http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/secure", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddlewareRejectsBadCredentials(t *testing.T) {
	r := newAuthRouter(AuthOptions{Secret: testSecret})

	expired := validClaims(5, models.RoleAdmin)
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"no bearer prefix", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(5, models.RoleAdmin))},
		{"wrong secret", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims(5, models.RoleAdmin))},
		{"wrong algorithm", "Bearer " + signToken(t, jwt.SigningMethodHS512, []byte(testSecret), validClaims(5, models.RoleAdmin))},
		{"expired", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired)},
		{"no user id", "Bearer " + signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(0, models.RoleAdmin))},
		{"garbage", "Bearer not-a-token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(r, tt.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), `"success":false`)
		})
	}
}

func TestAuthMiddlewareSetsActor(t *testing.T) {
	r := newAuthRouter(AuthOptions{Secret: testSecret})
	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(5, models.RoleEvaluator))

	w := doRequest(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":5,"role_id":2}`, w.Body.String())
}

func TestAuthMiddlewareUsesStoredRole(t *testing.T) {
	users := stubUsers{5: {UserID: 5, RoleID: models.RoleAdmin}}
	r := newAuthRouter(AuthOptions{Secret: testSecret, Users: users}, models.RoleAdmin)

	promoted := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(5, models.RoleApplicant))
	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer "+promoted).Code)

	removed := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(6, models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, doRequest(r, "Bearer "+removed).Code)
}

func TestRequireRole(t *testing.T) {
	r := newAuthRouter(AuthOptions{Secret: testSecret}, models.RoleAdmin, models.RoleEvaluator)

	evaluator := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(5, models.RoleEvaluator))
	assert.Equal(t, http.StatusOK, doRequest(r, "Bearer "+evaluator).Code)

	applicant := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims(6, models.RoleApplicant))
	w := doRequest(r, "Bearer "+applicant)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Insufficient permissions")
}
