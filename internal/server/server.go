// Package server assembles the route table and middleware chain.
package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventhub/backend/internal/auth"
	"github.com/eventhub/backend/internal/events"
	"github.com/eventhub/backend/internal/middleware"
	"github.com/eventhub/backend/internal/models"
	"github.com/eventhub/backend/internal/registrations"
	"github.com/eventhub/backend/pkg/response"
)

// Deps holds everything the router needs. Stores are interfaces so the whole
// route table can be exercised against in-memory fakes.
type Deps struct {
	Users         auth.UserStore
	UserLookup    middleware.UserLookup
	Events        events.EventStore
	Registrations registrations.RegistrationStore
	JWT           *auth.JWTService
	Logger        *zap.Logger
	CORSOrigins   string
}

// New builds the gin engine with all routes and middleware attached.
func New(d Deps) *gin.Engine {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	authHandler := auth.NewHandler(d.Users, d.JWT, d.Logger)
	eventHandler := events.NewHandler(d.Events, d.Logger)
	registrationHandler := registrations.NewHandler(d.Registrations, d.Events, d.Logger)
	authRequired := middleware.JWT(d.JWT, d.UserLookup)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(d.Logger))

	router.GET("/health", func(c *gin.Context) {
		response.OK(c, gin.H{"status": "ok", "date": time.Now().UTC()})
	})

	authGroup := router.Group("/api/auth")
	{
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
	}

	eventGroup := router.Group("/api/event")
	{
		eventGroup.GET("", eventHandler.List)
		eventGroup.POST("", authRequired, eventHandler.Create)
		eventGroup.PUT("/:id", authRequired, eventHandler.Update)
		eventGroup.DELETE("/:id", authRequired, eventHandler.Delete)
		eventGroup.PUT("/:id/approve", authRequired, middleware.RequireRole(string(models.RoleAdmin)), eventHandler.Approve)
	}

	registerGroup := router.Group("/api/register")
	registerGroup.Use(authRequired)
	{
		registerGroup.POST("/events/:id/register", registrationHandler.Register)
		registerGroup.DELETE("/events/:id/register", registrationHandler.Unregister)
	}

	return router
}
