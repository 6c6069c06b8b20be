package schema

import (
	"time"
)

// DateLayout is the calendar-date format of LifeEvent.OccurredOn.
const DateLayout = "2006-01-02"

type LifeEvent struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"event_type"`
	OccurredOn  string    `json:"event_date"`
	CreatedAt   time.Time `json:"created_at"`
}

// Text is what the oracle is asked to retell when a myth is forged from a stored event.
func (e LifeEvent) Text() string {
	if e.Description == "" {
		return e.Title
	}
	return e.Title + ": " + e.Description
}

type Myth struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"user_id"`
	Title         string    `json:"title"`
	Label         string    `json:"label"`
	Narrative     string    `json:"narrative"`
	SourceEventID string    `json:"source_event_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// MythDraft is a finalized (label, narrative) pair waiting to be persisted.
type MythDraft struct {
	OwnerID       string
	Title         string
	Label         string
	Narrative     string
	SourceEventID string
}

// CreateMythRequest is the body of POST /api/myths. Either Event or EventID is required.
type CreateMythRequest struct {
	Event   string `json:"event"`
	Title   string `json:"title,omitempty"`
	EventID string `json:"event_id,omitempty"`
}

// CreateLifeEventRequest is the body of POST /api/life-events. Nil fields take their defaults.
type CreateLifeEventRequest struct {
	Title       *string `json:"title,omitempty"`
	Description string  `json:"description,omitempty"`
	Category    string  `json:"event_type,omitempty"`
	OccurredOn  string  `json:"event_date,omitempty"`
}

type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Stats struct {
	Myths      int          `json:"myths"`
	LifeEvents int          `json:"life_events"`
	Owners     int          `json:"owners"`
	ByLabel    []LabelCount `json:"by_label"`
}
