package models

import "time"

// EventStatus represents the moderation state of an event.
type EventStatus string

const (
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventRejected EventStatus = "rejected"
)

// Event represents a scheduled event. Date holds the combined date+time
// instant in UTC. CurrentRegistrations is maintained by the registrations
// repository and never exceeds Capacity.
type Event struct {
	ID                   int64       `json:"id"`
	Title                string      `json:"title"`
	Description          string      `json:"description"`
	Date                 time.Time   `json:"date"`
	Location             string      `json:"location"`
	Capacity             int         `json:"capacity"`
	CurrentRegistrations int         `json:"current_registrations"`
	Status               EventStatus `json:"status"`
	CreatorID            int64       `json:"creator_id"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// EventWithCount is an Event annotated with its registration count for the
// public listing.
type EventWithCount struct {
	Event
	RegistrationCount int64 `json:"registration_count"`
}
