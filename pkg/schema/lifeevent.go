package schema

import (
	"errors"
	"strings"
	"time"
)

const (
	DefaultEventTitle    = "Untitled Event"
	DefaultEventCategory = "general"
)

var (
	ErrBlankTitle  = errors.New("title is required")
	ErrInvalidDate = errors.New("invalid event_date format")
)

// Normalize applies intake defaults and validation, returning the event to store minus its
// server-assigned fields. now supplies the default date.
func (r CreateLifeEventRequest) Normalize(ownerID string, now time.Time) (LifeEvent, error) {
	title := DefaultEventTitle
	if r.Title != nil {
		title = strings.TrimSpace(*r.Title)
		if title == "" {
			return LifeEvent{}, ErrBlankTitle
		}
	}

	category := strings.TrimSpace(r.Category)
	if category == "" {
		category = DefaultEventCategory
	}

	date, err := ParseEventDate(r.OccurredOn, now)
	if err != nil {
		return LifeEvent{}, err
	}

	return LifeEvent{
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(r.Description),
		Category:    category,
		OccurredOn:  date,
	}, nil
}

// ParseEventDate accepts YYYY-MM-DD or RFC 3339 and returns YYYY-MM-DD. Blank input yields now's date.
func ParseEventDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return now.Format(DateLayout), nil
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.Format(DateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(DateLayout), nil
	}
	return "", ErrInvalidDate
}
