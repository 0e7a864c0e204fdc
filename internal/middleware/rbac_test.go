package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campuskit/school-api/internal/models"
)

func performRBAC(claims *models.JWTClaims, path string, mw gin.HandlerFunc) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	r := gin.New()
	r.GET("/users/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, mw, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRBACAllowsListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleAdmin}
	w := performRBAC(claims, "/users/user-2", RBAC(string(models.RoleAdmin)))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACRejectsUnlistedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	w := performRBAC(claims, "/users/user-2", RBAC(string(models.RoleAdmin)))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACSelfMatchesOwnID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	w := performRBAC(claims, "/users/user-1", RBAC(string(models.RoleAdmin), "SELF"))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRBACSelfRejectsForeignID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleStudent}
	w := performRBAC(claims, "/users/user-2", RBAC(string(models.RoleAdmin), "SELF"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRBACRequiresAuthentication(t *testing.T) {
	w := performRBAC(nil, "/users/user-1", RBAC(string(models.RoleAdmin)))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRolesAcceptsAnyListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Role: models.RoleTeacher}
	w := performRBAC(claims, "/users/user-2", RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleTeacher))
	assert.Equal(t, http.StatusOK, w.Code)
}
