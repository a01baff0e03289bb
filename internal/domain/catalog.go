package domain

import (
	"strings"
	"time"
)

// ServiceDefinition is a catalog entry fetched from the panel. Immutable
// for the duration of a session.
type ServiceDefinition struct {
	Title           string  `json:"title"`
	DurationMinutes int     `json:"durationMinutes"`
	Price           float64 `json:"price"`
}

// Barber is identified by name within this system; the panel may also
// know a numeric id, which we never need.
type Barber struct {
	Name     string `json:"name"`
	PhotoRef string `json:"photoRef,omitempty"`
}

const DefaultServiceDurationMinutes = 40

// ServiceDuration resolves a service title to its duration in minutes.
// Matching is on normalized substrings; combination services take
// precedence over the single-service rules.
func ServiceDuration(title string) int {
	normalized := strings.ToLower(strings.TrimSpace(title))
	switch {
	case strings.Contains(normalized, "pezinho perfil acabamento"):
		return 5
	case strings.Contains(normalized, "barba") && strings.Contains(normalized, "cabelo"):
		return 60
	case strings.Contains(normalized, "barba"):
		return 30
	case strings.Contains(normalized, "cabelo"):
		return 40
	default:
		return DefaultServiceDurationMinutes
	}
}

// SlotQuery identifies one availability lookup. It is both the request
// payload sent to the panel and the key under which responses are
// matched back to the latest query.
type SlotQuery struct {
	Date            time.Time
	BarberName      string
	DurationMinutes int
}

// Complete reports whether the query has enough data to be sent at all.
func (q SlotQuery) Complete() bool {
	return strings.TrimSpace(q.BarberName) != "" && !q.Date.IsZero()
}
