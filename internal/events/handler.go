package events

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eventhub/backend/internal/middleware"
	"github.com/eventhub/backend/internal/models"
	"github.com/eventhub/backend/pkg/response"
)

var (
	errInvalidData = errors.New("Invalid Event Data")
	errPastDate    = errors.New("Event date must be in the future")
)

// EventStore is the persistence surface the event handlers need.
type EventStore interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id int64) (*models.Event, error)
	Update(ctx context.Context, id int64, p UpdateParams) (*models.Event, error)
	UpdateStatus(ctx context.Context, id int64, status models.EventStatus) (*models.Event, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f ListFilter) ([]models.EventWithCount, error)
}

// EventRequest is the body for POST /api/event and PUT /api/event/:id.
// Date ("2006-01-02") and Time ("15:04" or "15:04:05") combine into one UTC
// instant.
type EventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Location    string `json:"location"`
	Capacity    int    `json:"capacity"`
}

// ApproveRequest is the body for PUT /api/event/:id/approve.
type ApproveRequest struct {
	Status string `json:"status"`
}

// validate checks the shared create/update preconditions and returns the
// combined event instant.
func (r *EventRequest) validate(now time.Time) (time.Time, error) {
	if r.Title == "" || r.Date == "" || r.Time == "" || r.Location == "" || r.Capacity <= 0 {
		return time.Time{}, errInvalidData
	}
	at, err := parseInstant(r.Date, r.Time)
	if err != nil {
		return time.Time{}, errInvalidData
	}
	if !at.After(now) {
		return time.Time{}, errPastDate
	}
	return at, nil
}

func parseInstant(date, clock string) (time.Time, error) {
	combined := date + "T" + clock + "Z"
	at, err := time.Parse("2006-01-02T15:04:05Z07:00", combined)
	if err != nil {
		at, err = time.Parse("2006-01-02T15:04Z07:00", combined)
	}
	return at, err
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store  EventStore
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(store EventStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

func eventID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return 0, false
	}
	return id, true
}

func callerMayMutate(c *gin.Context, e *models.Event) bool {
	userID := c.MustGet(middleware.ContextUserID).(int64)
	role := c.GetString(middleware.ContextUserRole)
	return e.CreatorID == userID || role == string(models.RoleAdmin)
}

// Create handles POST /api/event. The new event starts out pending.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, errInvalidData.Error())
		return
	}
	at, err := req.validate(time.Now())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	e := &models.Event{
		Title:       req.Title,
		Description: req.Description,
		Date:        at,
		Location:    req.Location,
		Capacity:    req.Capacity,
		CreatorID:   c.MustGet(middleware.ContextUserID).(int64),
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event failed", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, e)
}

// Update handles PUT /api/event/:id (creator or admin). Validation runs
// against the proposed values; status is left untouched.
func (h *Handler) Update(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, errInvalidData.Error())
		return
	}
	at, err := req.validate(time.Now())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	e, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}
	if req.Capacity < e.CurrentRegistrations {
		response.BadRequest(c, "Capacity cannot be less than current registrations")
		return
	}
	if !callerMayMutate(c, e) {
		response.Forbidden(c, "Not authorized")
		return
	}

	updated, err := h.store.Update(c.Request.Context(), id, UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		Date:        at,
		Location:    req.Location,
		Capacity:    req.Capacity,
	})
	if err != nil {
		h.logger.Error("update event failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /api/event/:id (creator or admin).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	e, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}
	if !callerMayMutate(c, e) {
		response.Forbidden(c, "Not authorized")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete event failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to delete event")
		return
	}
	response.OK(c, gin.H{"message": "Event deleted successfully"})
}

// Approve handles PUT /api/event/:id/approve (admin only). Only the status
// field changes.
func (h *Handler) Approve(c *gin.Context) {
	id, ok := eventID(c)
	if !ok {
		return
	}
	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid Status")
		return
	}
	status := models.EventStatus(req.Status)
	if status != models.EventApproved && status != models.EventRejected {
		response.BadRequest(c, "Invalid Status")
		return
	}

	e, err := h.store.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "Event not found")
			return
		}
		h.logger.Error("approve event failed", zap.Error(err), zap.Int64("event_id", id))
		response.Internal(c, "failed to update event status")
		return
	}
	response.OK(c, e)
}

// List handles GET /api/event (public). Only approved events are visible.
func (h *Handler) List(c *gin.Context) {
	var filter ListFilter
	if d := c.Query("date"); d != "" {
		day, err := time.Parse("2006-01-02", d)
		if err != nil {
			response.BadRequest(c, "invalid date filter")
			return
		}
		filter.Day = &day
	}
	filter.Location = c.Query("location")

	list, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("list events failed", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	if list == nil {
		list = []models.EventWithCount{}
	}
	response.OK(c, list)
}
