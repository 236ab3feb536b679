package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicreport-be/middlewares"
	"civicreport-be/models"
	authUtils "civicreport-be/utils"
)

func newAuthRouter(t *testing.T, roles ...models.Role) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	handlers := []gin.HandlerFunc{middlewares.AuthMiddleware()}
	if len(roles) > 0 {
		handlers = append(handlers, middlewares.RequireRoles(roles...))
	}
	handlers = append(handlers, func(c *gin.Context) {
		identity, ok := middlewares.CurrentIdentity(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": identity.ID.Hex(), "role": identity.Role})
	})
	r.GET("/probe", handlers...)
	return r
}

func issueToken(t *testing.T, role models.Role) (string, primitive.ObjectID) {
	t.Helper()
	userID := primitive.NewObjectID()
	token, err := authUtils.GenerateAndSetToken(userID.Hex(), role)
	require.NoError(t, err)
	return token, userID
}

func TestAuthMiddlewareMissingToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareMalformedToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	r := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareWrongSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	token, _ := issueToken(t, models.RoleWorker)

	t.Setenv("JWT_SECRET", "a-different-secret")
	r := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareAttachesIdentity(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	token, userID := issueToken(t, models.RoleWorker)
	r := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.Hex())
	assert.Contains(t, w.Body.String(), string(models.RoleWorker))
}

func TestAuthMiddlewareReadsCookie(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	token, _ := issueToken(t, models.RoleReporter)
	r := newAuthRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: "auth_token", Value: token})
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoles(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cases := []struct {
		name    string
		allowed []models.Role
		caller  models.Role
		status  int
	}{
		{"worker allowed", []models.Role{models.RoleWorker, models.RoleAdmin}, models.RoleWorker, http.StatusOK},
		{"admin allowed", []models.Role{models.RoleWorker, models.RoleAdmin}, models.RoleAdmin, http.StatusOK},
		{"reporter rejected", []models.Role{models.RoleWorker, models.RoleAdmin}, models.RoleReporter, http.StatusForbidden},
		{"admin-only gate", []models.Role{models.RoleAdmin}, models.RoleWorker, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, _ := issueToken(t, tc.caller)
			r := newAuthRouter(t, tc.allowed...)

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/probe", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			r.ServeHTTP(w, req)

			assert.Equal(t, tc.status, w.Code)
		})
	}
}
