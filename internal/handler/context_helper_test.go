package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campuskit/school-api/internal/middleware"
	"github.com/campuskit/school-api/internal/models"
)

func testContext(t *testing.T, target string) *gin.Context {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	return c
}

func TestPageParamsDefaults(t *testing.T) {
	c := testContext(t, "/students")
	page, size := pageParams(c)
	assert.Equal(t, 1, page)
	assert.Equal(t, 10, size)
}

func TestPageParamsFromQuery(t *testing.T) {
	c := testContext(t, "/students?page=3&limit=25")
	page, size := pageParams(c)
	assert.Equal(t, 3, page)
	assert.Equal(t, 25, size)
}

func TestQueryBool(t *testing.T) {
	c := testContext(t, "/courses?required=true&junk=banana")

	required := queryBool(c, "required")
	if assert.NotNil(t, required) {
		assert.True(t, *required)
	}
	assert.Nil(t, queryBool(c, "missing"))
	assert.Nil(t, queryBool(c, "junk"))
}

func TestClaimsFromContext(t *testing.T) {
	c := testContext(t, "/me")
	assert.Nil(t, claimsFromContext(c))

	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1"})
	claims := claimsFromContext(c)
	if assert.NotNil(t, claims) {
		assert.Equal(t, "user-1", claims.UserID)
	}
}
