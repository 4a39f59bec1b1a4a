package registrations

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventhub/backend/internal/events"
	"github.com/eventhub/backend/internal/middleware"
	"github.com/eventhub/backend/internal/models"
	"github.com/eventhub/backend/pkg/response"
)

// RegistrationStore is the persistence surface the registration handlers need.
type RegistrationStore interface {
	Register(ctx context.Context, eventID, userID int64) (*models.Registration, error)
	Unregister(ctx context.Context, eventID, userID int64) error
}

// EventGetter loads events for the pre-registration checks. Satisfied by
// *events.Repository.
type EventGetter interface {
	GetByID(ctx context.Context, id int64) (*models.Event, error)
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	store    RegistrationStore
	eventSrc EventGetter
	logger   *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(store RegistrationStore, eventSrc EventGetter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, eventSrc: eventSrc, logger: logger}
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return 0, false
	}
	return id, true
}

// Register handles POST /api/register/events/:id/register. The capacity and
// approval checks here give friendly errors; the store's transactional guard
// is what actually holds the capacity bound under concurrency.
func (h *Handler) Register(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)

	e, err := h.eventSrc.GetByID(c.Request.Context(), id)
	if err != nil && !errors.Is(err, events.ErrNotFound) {
		h.logger.Error("load event failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to register")
		return
	}
	if e == nil || e.Status != models.EventApproved {
		response.NotFound(c, "Event not found or not approved")
		return
	}
	if e.CurrentRegistrations >= e.Capacity {
		response.BadRequest(c, "Event capacity reached")
		return
	}

	reg, err := h.store.Register(c.Request.Context(), id, userID)
	if err != nil {
		switch {
		case errors.Is(err, ErrAlreadyRegistered):
			response.BadRequest(c, "Already registered for this event")
		case errors.Is(err, ErrCapacityReached):
			response.BadRequest(c, "Event capacity reached")
		default:
			h.logger.Error("register failed", zap.Error(err), zap.Int64("event_id", id), zap.Int64("user_id", userID))
			response.Internal(c, "failed to register")
		}
		return
	}

	response.Created(c, gin.H{"message": "Successfully registered", "registration": reg})
}

// Unregister handles DELETE /api/register/events/:id/register.
func (h *Handler) Unregister(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	userID := c.MustGet(middleware.ContextUserID).(int64)

	if err := h.store.Unregister(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotRegistered) {
			response.BadRequest(c, "Not registered for this event")
			return
		}
		h.logger.Error("unregister failed", zap.Error(err), zap.Int64("event_id", id), zap.Int64("user_id", userID))
		response.Internal(c, "failed to unregister")
		return
	}

	response.OK(c, gin.H{"message": "Registration deleted"})
}
