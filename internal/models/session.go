package models

import "time"

// SessionKind classifies a class session occurrence.
type SessionKind string

const (
	SessionKindRegular   SessionKind = "REGULAR"
	SessionKindMakeup    SessionKind = "MAKEUP"
	SessionKindTrial     SessionKind = "TRIAL"
	SessionKindCancelled SessionKind = "CANCELLED"
)

// Valid returns true when the kind is a supported value.
func (k SessionKind) Valid() bool {
	switch k {
	case SessionKindRegular, SessionKindMakeup, SessionKindTrial, SessionKindCancelled:
		return true
	default:
		return false
	}
}

// ClassSession is a single scheduled occurrence of a class at a location.
type ClassSession struct {
	ID             string      `db:"id" json:"id"`
	StartsAt       time.Time   `db:"starts_at" json:"starts_at"`
	DurationMin    int         `db:"duration_min" json:"duration_min"`
	LocationID     string      `db:"location_id" json:"location_id"`
	ModalityID     string      `db:"modality_id" json:"modality_id"`
	InstructorID   string      `db:"instructor_id" json:"instructor_id"`
	SubstituteID   *string     `db:"substitute_id" json:"substitute_id,omitempty"`
	Capacity       int         `db:"capacity" json:"capacity"`
	Kind           SessionKind `db:"kind" json:"kind"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// EndsAt computes the session end from start plus duration.
func (s *ClassSession) EndsAt() time.Time {
	return s.StartsAt.Add(time.Duration(s.DurationMin) * time.Minute)
}

// Cancelled reports whether the session refuses new bookings.
func (s *ClassSession) Cancelled() bool {
	return s.Kind == SessionKindCancelled
}

// SessionFilter bounds session listing queries to a date window.
type SessionFilter struct {
	From       time.Time
	To         time.Time
	LocationID string
	ModalityID string
	Page       int
	PageSize   int
}

// AvailableSession projects a session together with its seat accounting.
type AvailableSession struct {
	ClassSession
	ActiveCount    int `db:"active_count" json:"active_count"`
	SeatsRemaining int `db:"seats_remaining" json:"seats_remaining"`
}
