package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
)

func newSchedulingFixture(t *testing.T, members ...string) (*ledgerFixture, *SchedulingService) {
	t.Helper()
	f := newLedgerFixture(t, members...)
	attendance := NewAttendanceService(f.enrollments, f.sessions, NewGrantAllBilling(), nil, zap.NewNop())
	svc := NewSchedulingService(f.ledger, f.sessions, f.queue, attendance, zap.NewNop())
	return f, svc
}

// Walks the booking lifecycle end to end: fill the session, queue a third
// member, free a seat and watch the queue head take it, then queue a fourth.
func TestBookingLifecycle(t *testing.T) {
	f, svc := newSchedulingFixture(t, "m1", "m2", "m3", "m4")
	f.sessions.add(futureSession("ses-1", 2))
	ctx := context.Background()

	first, err := svc.Book(ctx, BookRequest{SessionID: "ses-1"}, memberClaims("m1"))
	require.NoError(t, err)
	require.Equal(t, models.BookingOutcomeEnrolled, first.Type)

	second, err := svc.Book(ctx, BookRequest{SessionID: "ses-1"}, memberClaims("m2"))
	require.NoError(t, err)
	require.Equal(t, models.BookingOutcomeEnrolled, second.Type)

	third, err := svc.Book(ctx, BookRequest{SessionID: "ses-1"}, memberClaims("m3"))
	require.NoError(t, err)
	require.Equal(t, models.BookingOutcomeWaitlisted, third.Type)

	pos, err := svc.WaitlistPosition(ctx, third.ID, memberClaims("m3"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Position)

	cancelled, err := svc.Cancel(ctx, first.ID, memberClaims("m1"))
	require.NoError(t, err)
	assert.True(t, cancelled.Freed)
	require.NotNil(t, cancelled.PromotedMemberID)
	assert.Equal(t, "m3", *cancelled.PromotedMemberID)

	// the promoted member now holds a seat, so the session is full again
	assert.Equal(t, 2, f.enrollments.activeCount("ses-1"))

	fourth, err := svc.Book(ctx, BookRequest{SessionID: "ses-1"}, memberClaims("m4"))
	require.NoError(t, err)
	require.Equal(t, models.BookingOutcomeWaitlisted, fourth.Type)

	pos, err = svc.WaitlistPosition(ctx, fourth.ID, memberClaims("m4"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Position)
}

func TestBookResolvesMember(t *testing.T) {
	f, svc := newSchedulingFixture(t, "m1", "m2")
	f.sessions.add(futureSession("ses-1", 5))
	ctx := context.Background()

	t.Run("requires a caller", func(t *testing.T) {
		_, err := svc.Book(ctx, BookRequest{SessionID: "ses-1"}, nil)
		assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
	})

	t.Run("members cannot book for others", func(t *testing.T) {
		_, err := svc.Book(ctx, BookRequest{SessionID: "ses-1", MemberID: "m2"}, memberClaims("m1"))
		assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	})

	t.Run("staff book on behalf of a member", func(t *testing.T) {
		result, err := svc.Book(ctx, BookRequest{SessionID: "ses-1", MemberID: "m2"}, staffClaims("staff-1"))
		require.NoError(t, err)
		assert.Equal(t, models.BookingOutcomeEnrolled, result.Type)
		assert.Equal(t, "m2", result.Enrollment.MemberID)
	})
}

func TestListWaitlistedIsStaffOnly(t *testing.T) {
	f, svc := newSchedulingFixture(t, "m1", "m2")
	f.sessions.add(futureSession("ses-1", 1))
	ctx := context.Background()

	_, err := svc.Book(ctx, BookRequest{SessionID: "ses-1"}, memberClaims("m1"))
	require.NoError(t, err)
	_, err = svc.Book(ctx, BookRequest{SessionID: "ses-1"}, memberClaims("m2"))
	require.NoError(t, err)

	_, err = svc.ListWaitlisted(ctx, "ses-1", memberClaims("m1"))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	entries, err := svc.ListWaitlisted(ctx, "ses-1", staffClaims("staff-1"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "m2", entries[0].MemberID)
}

func TestMyWaitlistListsOwnEntries(t *testing.T) {
	f, svc := newSchedulingFixture(t, "m1", "m2")
	f.sessions.add(futureSession("ses-1", 1))
	f.sessions.add(futureSession("ses-2", 1))
	ctx := context.Background()

	for _, sessionID := range []string{"ses-1", "ses-2"} {
		_, err := svc.Book(ctx, BookRequest{SessionID: sessionID}, memberClaims("m1"))
		require.NoError(t, err)
		_, err = svc.Book(ctx, BookRequest{SessionID: sessionID}, memberClaims("m2"))
		require.NoError(t, err)
	}

	entries, err := svc.MyWaitlist(ctx, memberClaims("m2"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	entries, err = svc.MyWaitlist(ctx, memberClaims("m1"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFacadeAvailability(t *testing.T) {
	f, svc := newSchedulingFixture(t, "m1")
	f.sessions.add(futureSession("ses-1", 1))
	ctx := context.Background()

	filter := models.SessionFilter{From: time.Now().UTC(), To: time.Now().UTC().Add(72 * time.Hour)}

	available, err := svc.ListAvailable(ctx, filter)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, 1, available[0].SeatsRemaining)

	_, err = svc.Book(ctx, BookRequest{SessionID: "ses-1"}, memberClaims("m1"))
	require.NoError(t, err)

	available, err = svc.ListAvailable(ctx, filter)
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestFacadeMarkAttendance(t *testing.T) {
	f, svc := newSchedulingFixture(t, "m1")
	session := futureSession("ses-1", 1)
	session.StartsAt = time.Now().UTC().Add(-time.Hour)
	f.sessions.add(session)
	ctx := context.Background()

	enrollment := &models.Enrollment{SessionID: "ses-1", MemberID: "m1"}
	require.NoError(t, f.enrollments.Create(ctx, enrollment))

	result, err := svc.MarkAttendance(ctx, enrollment.ID, models.EnrollmentStatusPresent, staffClaims("staff-1"))
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusPresent, result.Enrollment.Status)
}
