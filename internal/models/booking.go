package models

// BookingOutcome distinguishes a confirmed seat from a queued request.
type BookingOutcome string

const (
	BookingOutcomeEnrolled   BookingOutcome = "enrolled"
	BookingOutcomeWaitlisted BookingOutcome = "waitlisted"
)

// BookingResult is the answer to a book request. Exactly one of the two
// documented outcomes is returned; a failed booking never silently
// degrades into a waitlist entry.
type BookingResult struct {
	Type       BookingOutcome `json:"type"`
	ID         string         `json:"id"`
	Enrollment *Enrollment    `json:"enrollment,omitempty"`
	Waitlist   *WaitlistEntry `json:"waitlist,omitempty"`
}

// CancelResult reports whether a seat was freed and who was promoted into it.
type CancelResult struct {
	Freed            bool    `json:"freed"`
	PromotedMemberID *string `json:"promoted"`
}

// AttendanceResult is the updated enrollment plus make-up eligibility,
// surfaced to (but not enforced for) the billing collaborator.
type AttendanceResult struct {
	Enrollment     Enrollment `json:"enrollment"`
	MakeupEligible bool       `json:"makeup_eligible"`
	HasMakeupCredit bool      `json:"has_makeup_credit"`
}
