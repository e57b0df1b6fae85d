package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/carebridge/carebridge-api/internal/models"
)

func rbacRouter(claims *models.JWTClaims, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/staff/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func getStaff(t *testing.T, r *gin.Engine, id string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/staff/"+id, nil))
	return rec
}

func TestRBACAllowsListedRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	r := rbacRouter(claims, string(models.RoleAdmin), SelfSubject)

	rec := getStaff(t, r, "staff-9")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRBACAllowsSelfTarget(t *testing.T) {
	claims := &models.JWTClaims{UserID: "staff-7", Role: models.RoleCaregiver}
	r := rbacRouter(claims, string(models.RoleAdmin), SelfSubject)

	rec := getStaff(t, r, "staff-7")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRBACRejectsOtherSubject(t *testing.T) {
	claims := &models.JWTClaims{UserID: "staff-7", Role: models.RoleCaregiver}
	r := rbacRouter(claims, string(models.RoleAdmin), SelfSubject)

	rec := getStaff(t, r, "staff-8")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACRejectsSelfWhenNotListed(t *testing.T) {
	claims := &models.JWTClaims{UserID: "staff-7", Role: models.RoleCaregiver}
	r := rbacRouter(claims, string(models.RoleAdmin))

	rec := getStaff(t, r, "staff-7")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRBACRejectsMissingClaims(t *testing.T) {
	r := rbacRouter(nil, string(models.RoleAdmin), SelfSubject)

	rec := getStaff(t, r, "staff-7")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
