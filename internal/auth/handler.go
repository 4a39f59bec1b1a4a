package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventhub/backend/internal/models"
	"github.com/eventhub/backend/pkg/response"
	"github.com/eventhub/backend/pkg/utils"
)

// UserStore is the persistence surface the auth handlers need.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string, role models.Role) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
}

// RegisterRequest is the body for POST /api/auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"` // optional; only "user" is accepted
}

// LoginRequest is the body for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Message string            `json:"message"`
	User    models.UserPublic `json:"user"`
	Token   string            `json:"token"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	store  UserStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(store UserStore, jwt *JWTService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, jwt: jwt, logger: logger}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" || req.Email == "" {
		response.BadRequest(c, "Username, password, and email required")
		return
	}
	// Accounts created through the public endpoint are always plain users;
	// admin accounts are promoted directly in the database.
	if req.Role != "" && req.Role != string(models.RoleUser) {
		response.BadRequest(c, "invalid role")
		return
	}

	exists, err := h.store.ExistsByUsernameOrEmail(c.Request.Context(), req.Username, req.Email)
	if err != nil {
		h.logger.Error("check existing user failed", zap.Error(err))
		response.Internal(c, "failed to register user")
		return
	}
	if exists {
		response.BadRequest(c, "User already exists")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.store.Create(c.Request.Context(), req.Username, req.Email, hash, models.RoleUser)
	if err != nil {
		// The unique constraint still backs the pre-check.
		if errors.Is(err, ErrUserExists) {
			response.BadRequest(c, "User already exists")
			return
		}
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{
		Message: "User registered successfully",
		User:    user.ToPublic(),
		Token:   token,
	})
}

// Login handles POST /api/auth/login. Unknown username and wrong password
// report the identical message so neither case is distinguishable.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Username == "" || req.Password == "" {
		response.BadRequest(c, "Username and password required")
		return
	}

	user, err := h.store.GetByUsername(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.BadRequest(c, "Invalid credentials")
			return
		}
		h.logger.Error("lookup user failed", zap.Error(err))
		response.Internal(c, "failed to log in")
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.BadRequest(c, "Invalid credentials")
		return
	}

	token, err := h.jwt.Generate(user.ID, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{
		Message: "Login successful",
		User:    user.ToPublic(),
		Token:   token,
	})
}
