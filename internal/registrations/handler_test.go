package registrations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhub/backend/internal/events"
	"github.com/eventhub/backend/internal/middleware"
	"github.com/eventhub/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore backs both the registration store and the event lookup, applying
// the same all-or-nothing counter rules as the SQL transaction.
type fakeStore struct {
	mu     sync.Mutex
	nextID int64
	events map[int64]*models.Event
	regs   map[[2]int64]*models.Registration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		events: make(map[int64]*models.Event),
		regs:   make(map[[2]int64]*models.Registration),
	}
}

func (f *fakeStore) addEvent(e models.Event) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	e.ID = f.nextID
	f.events[e.ID] = &e
	return e.ID
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (f *fakeStore) Register(_ context.Context, eventID, userID int64) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{eventID, userID}
	if _, ok := f.regs[key]; ok {
		return nil, ErrAlreadyRegistered
	}
	e, ok := f.events[eventID]
	if !ok || e.CurrentRegistrations >= e.Capacity {
		return nil, ErrCapacityReached
	}
	f.nextID++
	reg := &models.Registration{ID: f.nextID, EventID: eventID, UserID: userID, CreatedAt: time.Now()}
	f.regs[key] = reg
	e.CurrentRegistrations++
	copied := *reg
	return &copied, nil
}

func (f *fakeStore) Unregister(_ context.Context, eventID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := [2]int64{eventID, userID}
	if _, ok := f.regs[key]; !ok {
		return ErrNotRegistered
	}
	delete(f.regs, key)
	if e, ok := f.events[eventID]; ok && e.CurrentRegistrations > 0 {
		e.CurrentRegistrations--
	}
	return nil
}

func (f *fakeStore) current(eventID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[eventID].CurrentRegistrations
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newRegRouter(store *fakeStore) *gin.Engine {
	h := NewHandler(store, store, nil)
	r := gin.New()
	identify := func(c *gin.Context) {
		id := int64(1)
		if v := c.GetHeader("X-As-User"); v != "" {
			if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
				id = parsed
			}
		}
		c.Set(middleware.ContextUserID, id)
		c.Set(middleware.ContextUsername, "tester")
		c.Set(middleware.ContextUserRole, string(models.RoleUser))
		c.Next()
	}
	r.POST("/api/register/events/:id/register", identify, h.Register)
	r.DELETE("/api/register/events/:id/register", identify, h.Unregister)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path string, userID int64) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-As-User", strconv.FormatInt(userID, 10))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func approvedEvent(capacity int) models.Event {
	return models.Event{
		Title:    "Go Meetup",
		Date:     time.Now().UTC().Add(48 * time.Hour),
		Location: "Berlin",
		Capacity: capacity,
		Status:   models.EventApproved,
	}
}

func TestRegisterForEvent(t *testing.T) {
	store := newFakeStore()
	id := store.addEvent(approvedEvent(2))
	r := newRegRouter(store)
	path := fmt.Sprintf("/api/register/events/%d/register", id)

	w, env := do(t, r, http.MethodPost, path, 10)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, 1, store.current(id))

	var data struct {
		Message      string              `json:"message"`
		Registration models.Registration `json:"registration"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "Successfully registered", data.Message)
	assert.Equal(t, id, data.Registration.EventID)
	assert.Equal(t, int64(10), data.Registration.UserID)
}

func TestRegisterEventMissingOrNotApproved(t *testing.T) {
	store := newFakeStore()
	pending := approvedEvent(5)
	pending.Status = models.EventPending
	pendingID := store.addEvent(pending)
	r := newRegRouter(store)

	w, env := do(t, r, http.MethodPost, "/api/register/events/999/register", 10)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event not found or not approved", env.Error)

	w, env = do(t, r, http.MethodPost, fmt.Sprintf("/api/register/events/%d/register", pendingID), 10)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Event not found or not approved", env.Error)
}

func TestRegisterDuplicate(t *testing.T) {
	store := newFakeStore()
	id := store.addEvent(approvedEvent(5))
	r := newRegRouter(store)
	path := fmt.Sprintf("/api/register/events/%d/register", id)

	w, _ := do(t, r, http.MethodPost, path, 10)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(t, r, http.MethodPost, path, 10)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Already registered for this event", env.Error)
	assert.Equal(t, 1, store.current(id))
}

func TestRegisterCapacityReached(t *testing.T) {
	store := newFakeStore()
	id := store.addEvent(approvedEvent(1))
	r := newRegRouter(store)
	path := fmt.Sprintf("/api/register/events/%d/register", id)

	w, _ := do(t, r, http.MethodPost, path, 10)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(t, r, http.MethodPost, path, 11)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Event capacity reached", env.Error)
	assert.Equal(t, 1, store.current(id))
}

func TestUnregister(t *testing.T) {
	store := newFakeStore()
	id := store.addEvent(approvedEvent(5))
	r := newRegRouter(store)
	path := fmt.Sprintf("/api/register/events/%d/register", id)

	w, env := do(t, r, http.MethodDelete, path, 10)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Not registered for this event", env.Error)

	w, _ = do(t, r, http.MethodPost, path, 10)
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = do(t, r, http.MethodDelete, path, 10)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, store.current(id))

	// The counter never goes below zero.
	w, _ = do(t, r, http.MethodDelete, path, 10)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, store.current(id))
}

// TestConcurrentRegistrationRespectsCapacity drives many simultaneous
// registrations at an almost-full event. The store-level guard must admit
// exactly as many as there are free spots.
func TestConcurrentRegistrationRespectsCapacity(t *testing.T) {
	store := newFakeStore()
	id := store.addEvent(approvedEvent(5))
	r := newRegRouter(store)
	path := fmt.Sprintf("/api/register/events/%d/register", id)

	const workers = 100
	var wg sync.WaitGroup
	codes := make([]int, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, path, nil)
			req.Header.Set("X-As-User", strconv.Itoa(userID+100))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			codes[userID] = w.Code
		}(i)
	}
	wg.Wait()

	success, failure := 0, 0
	for _, code := range codes {
		switch code {
		case http.StatusCreated:
			success++
		case http.StatusBadRequest:
			failure++
		default:
			t.Fatalf("unexpected status %d", code)
		}
	}
	assert.Equal(t, 5, success)
	assert.Equal(t, workers-5, failure)
	assert.Equal(t, 5, store.current(id))
}
