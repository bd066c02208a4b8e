package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/entrelaunch/platform/internal/database/testutil"
	"github.com/entrelaunch/platform/internal/models"
)

type recordingInvalidator struct {
	invalidated []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, userIDs ...string) error {
	r.invalidated = append(r.invalidated, userIDs...)
	return nil
}

func newRoleTestRouter(t *testing.T) (*gin.Engine, *gorm.DB, *recordingInvalidator) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithSeedData())
	inv := &recordingInvalidator{}

	passthrough := func(permission string) gin.HandlerFunc {
		return func(c *gin.Context) { c.Next() }
	}

	router := gin.New()
	NewRoleHandler(db, inv).Register(router.Group("/api/roles"), passthrough)
	return router, db, inv
}

func seedRoleUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	var role models.Role
	require.NoError(t, db.First(&role, "id = ?", "user").Error)

	user := models.User{
		Username: "casey", Email: "casey@example.com", Password: "x",
		Roles: []models.Role{role},
	}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func TestRoleListReturnsSeededRoles(t *testing.T) {
	router, _, _ := newRoleTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/roles/all", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"admin"`)
	require.Contains(t, rec.Body.String(), `"user"`)
}

func putRoles(router *gin.Engine, userID string, payload any) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPut, "/api/roles/assign/"+userID, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRoleAssignReplacesRoleSet(t *testing.T) {
	router, db, inv := newRoleTestRouter(t)
	user := seedRoleUser(t, db)

	rec := putRoles(router, user.ID, gin.H{"roles": []string{"admin"}})
	require.Equal(t, http.StatusOK, rec.Code)

	var reloaded models.User
	require.NoError(t, db.Preload("Roles").First(&reloaded, "id = ?", user.ID).Error)
	require.Len(t, reloaded.Roles, 1)
	require.Equal(t, "admin", reloaded.Roles[0].ID)

	require.Equal(t, []string{user.ID}, inv.invalidated)
}

func TestRoleAssignRejectsUnknownRole(t *testing.T) {
	router, db, inv := newRoleTestRouter(t)
	user := seedRoleUser(t, db)

	rec := putRoles(router, user.ID, gin.H{"roles": []string{"superuser"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, inv.invalidated)

	var reloaded models.User
	require.NoError(t, db.Preload("Roles").First(&reloaded, "id = ?", user.ID).Error)
	require.Len(t, reloaded.Roles, 1)
	require.Equal(t, "user", reloaded.Roles[0].ID)
}

func TestRoleAssignUnknownUser(t *testing.T) {
	router, _, _ := newRoleTestRouter(t)

	rec := putRoles(router, "missing", gin.H{"roles": []string{"user"}})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleAssignRequiresRoles(t *testing.T) {
	router, db, _ := newRoleTestRouter(t)
	user := seedRoleUser(t, db)

	rec := putRoles(router, user.ID, gin.H{"roles": []string{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
