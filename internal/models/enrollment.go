package models

import "time"

// EnrollmentStatus represents the lifecycle of a booked seat.
type EnrollmentStatus string

// Possible enrollment statuses. Cancelled is the only status that frees a seat.
const (
	EnrollmentStatusScheduled           EnrollmentStatus = "SCHEDULED"
	EnrollmentStatusPresent             EnrollmentStatus = "PRESENT"
	EnrollmentStatusAbsentWithMakeup    EnrollmentStatus = "ABSENT_WITH_MAKEUP"
	EnrollmentStatusAbsentWithoutMakeup EnrollmentStatus = "ABSENT_WITHOUT_MAKEUP"
	EnrollmentStatusCancelled           EnrollmentStatus = "CANCELLED"
)

// Valid returns true when the status is a supported value.
func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentStatusScheduled, EnrollmentStatusPresent, EnrollmentStatusAbsentWithMakeup, EnrollmentStatusAbsentWithoutMakeup, EnrollmentStatusCancelled:
		return true
	default:
		return false
	}
}

// Active reports whether the status still occupies a seat.
func (s EnrollmentStatus) Active() bool {
	switch s {
	case EnrollmentStatusScheduled, EnrollmentStatusPresent, EnrollmentStatusAbsentWithMakeup:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status is an attendance outcome.
func (s EnrollmentStatus) Terminal() bool {
	switch s {
	case EnrollmentStatusPresent, EnrollmentStatusAbsentWithMakeup, EnrollmentStatusAbsentWithoutMakeup:
		return true
	default:
		return false
	}
}

// ActiveEnrollmentStatuses lists the statuses counted against capacity.
func ActiveEnrollmentStatuses() []EnrollmentStatus {
	return []EnrollmentStatus{EnrollmentStatusScheduled, EnrollmentStatusPresent, EnrollmentStatusAbsentWithMakeup}
}

// Enrollment is a confirmed seat held by a member in a session.
type Enrollment struct {
	ID          string           `db:"id" json:"id"`
	SessionID   string           `db:"session_id" json:"session_id"`
	MemberID    string           `db:"member_id" json:"member_id"`
	Status      EnrollmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
	CancelledAt *time.Time       `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// RosterRow is an enrollment joined with member identity for staff sheets.
type RosterRow struct {
	EnrollmentID string           `db:"enrollment_id" json:"enrollment_id"`
	MemberID     string           `db:"member_id" json:"member_id"`
	MemberName   string           `db:"member_name" json:"member_name"`
	Status       EnrollmentStatus `db:"status" json:"status"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
}
