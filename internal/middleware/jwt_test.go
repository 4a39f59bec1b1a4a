package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhub/backend/internal/auth"
	"github.com/eventhub/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUserLookup struct {
	users map[int64]*models.User
}

func (f *fakeUserLookup) GetActiveByID(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok || !u.IsActive {
		return nil, auth.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newProtectedRouter(jwtSvc *auth.JWTService, lookup UserLookup, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{JWT(jwtSvc, lookup)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"id":       c.MustGet(ContextUserID),
			"username": c.GetString(ContextUsername),
			"role":     c.GetString(ContextUserRole),
		})
	})
	r.GET("/probe", handlers...)
	return r
}

func get(r *gin.Engine, authz string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestJWTMiddleware(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-secret", 1)
	lookup := &fakeUserLookup{users: map[int64]*models.User{
		1: {ID: 1, Username: "alice", Role: models.RoleUser, IsActive: true},
		2: {ID: 2, Username: "gone", Role: models.RoleUser, IsActive: false},
	}}
	r := newProtectedRouter(jwtSvc, lookup)

	t.Run("missing token", func(t *testing.T) {
		w, env := get(r, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "No token provided", env.Error)
	})

	t.Run("malformed header", func(t *testing.T) {
		w, env := get(r, "Bearer")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "No token provided", env.Error)
	})

	t.Run("invalid token", func(t *testing.T) {
		w, env := get(r, "Bearer garbage")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "Invalid Token", env.Error)
	})

	t.Run("unknown user", func(t *testing.T) {
		token, err := jwtSvc.Generate(99, "user")
		require.NoError(t, err)
		w, env := get(r, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "User not found", env.Error)
	})

	t.Run("inactive user", func(t *testing.T) {
		token, err := jwtSvc.Generate(2, "user")
		require.NoError(t, err)
		w, env := get(r, "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, "User not found", env.Error)
	})

	t.Run("valid token sets identity", func(t *testing.T) {
		token, err := jwtSvc.Generate(1, "user")
		require.NoError(t, err)
		w, _ := get(r, "Bearer "+token)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"username":"alice"`)
		assert.Contains(t, w.Body.String(), `"role":"user"`)
	})
}

func TestRequireRole(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-secret", 1)
	lookup := &fakeUserLookup{users: map[int64]*models.User{
		1: {ID: 1, Username: "alice", Role: models.RoleUser, IsActive: true},
		2: {ID: 2, Username: "root", Role: models.RoleAdmin, IsActive: true},
	}}
	r := newProtectedRouter(jwtSvc, lookup, RequireRole(string(models.RoleAdmin)))

	userToken, err := jwtSvc.Generate(1, "user")
	require.NoError(t, err)
	adminToken, err := jwtSvc.Generate(2, "admin")
	require.NoError(t, err)

	w, env := get(r, "Bearer "+userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "insufficient permissions", env.Error)

	// The allow branch must explicitly continue to the handler.
	w, _ = get(r, "Bearer "+adminToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"root"`)
}
