package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/internal/models"
	"github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/config"
	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
)

func newWaitlistFixture(t *testing.T) (*WaitlistService, *memWaitlist) {
	t.Helper()
	repo := newMemWaitlist()
	cfg := config.BookingConfig{LockRetries: 3, LockRetryWait: 10 * time.Millisecond}
	return NewWaitlistService(repo, NewSessionLocks(), nil, cfg, zap.NewNop()), repo
}

func TestEnqueueRejectsDuplicates(t *testing.T) {
	svc, _ := newWaitlistFixture(t)
	ctx := context.Background()

	entry, err := svc.Enqueue(ctx, "ses-1", "m1")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.EnqueuedAt.IsZero())

	_, err = svc.Enqueue(ctx, "ses-1", "m1")
	assert.True(t, appErrors.Is(err, appErrors.ErrAlreadyQueued))

	// a different session is a different queue
	_, err = svc.Enqueue(ctx, "ses-2", "m1")
	assert.NoError(t, err)
}

func TestPromoteNextFollowsEnqueueOrder(t *testing.T) {
	svc, repo := newWaitlistFixture(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, member := range []string{"a", "b", "c"} {
		entry := &models.WaitlistEntry{SessionID: "ses-1", MemberID: member, EnqueuedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, repo.Create(ctx, entry))
	}

	for _, want := range []string{"a", "b", "c"} {
		head, err := svc.PromoteNext(ctx, "ses-1")
		require.NoError(t, err)
		require.NotNil(t, head)
		assert.Equal(t, want, head.MemberID)
	}

	head, err := svc.PromoteNext(ctx, "ses-1")
	require.NoError(t, err)
	assert.Nil(t, head)
}

func TestPromoteNextBreaksTimestampTiesByID(t *testing.T) {
	svc, repo := newWaitlistFixture(t)
	ctx := context.Background()

	at := time.Now().UTC()
	first := &models.WaitlistEntry{SessionID: "ses-1", MemberID: "m1", EnqueuedAt: at}
	second := &models.WaitlistEntry{SessionID: "ses-1", MemberID: "m2", EnqueuedAt: at}
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	head, err := svc.PromoteNext(ctx, "ses-1")
	require.NoError(t, err)
	require.NotNil(t, head)
	assert.Equal(t, first.ID, head.ID)
}

func TestPositionOfIsRecomputed(t *testing.T) {
	svc, repo := newWaitlistFixture(t)
	ctx := context.Background()

	base := time.Now().UTC()
	var entries []*models.WaitlistEntry
	for i, member := range []string{"a", "b", "c"} {
		entry := &models.WaitlistEntry{SessionID: "ses-1", MemberID: member, EnqueuedAt: base.Add(time.Duration(i) * time.Second)}
		require.NoError(t, repo.Create(ctx, entry))
		entries = append(entries, entry)
	}

	pos, err := svc.PositionOf(ctx, entries[2].ID, memberClaims("c"))
	require.NoError(t, err)
	assert.Equal(t, 3, pos.Position)

	// the head leaving shifts everyone up on the next read
	require.NoError(t, svc.Withdraw(ctx, entries[0].ID, memberClaims("a")))
	pos, err = svc.PositionOf(ctx, entries[2].ID, memberClaims("c"))
	require.NoError(t, err)
	assert.Equal(t, 2, pos.Position)
}

func TestPositionOfAuthorization(t *testing.T) {
	svc, repo := newWaitlistFixture(t)
	ctx := context.Background()

	entry := &models.WaitlistEntry{SessionID: "ses-1", MemberID: "m1"}
	require.NoError(t, repo.Create(ctx, entry))

	_, err := svc.PositionOf(ctx, entry.ID, memberClaims("m2"))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	pos, err := svc.PositionOf(ctx, entry.ID, staffClaims("staff-1"))
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Position)

	_, err = svc.PositionOf(ctx, "missing", staffClaims("staff-1"))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestWithdraw(t *testing.T) {
	svc, repo := newWaitlistFixture(t)
	ctx := context.Background()

	entry := &models.WaitlistEntry{SessionID: "ses-1", MemberID: "m1"}
	require.NoError(t, repo.Create(ctx, entry))

	t.Run("another member is rejected", func(t *testing.T) {
		err := svc.Withdraw(ctx, entry.ID, memberClaims("m2"))
		assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	})

	t.Run("the owner may leave", func(t *testing.T) {
		require.NoError(t, svc.Withdraw(ctx, entry.ID, memberClaims("m1")))
		err := svc.Withdraw(ctx, entry.ID, memberClaims("m1"))
		assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
	})
}
