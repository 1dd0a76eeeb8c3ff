package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/PI-3-Semestre/projeto-estudio-pilates-sub000/pkg/errors"
)

func TestSessionLocksMutualExclusion(t *testing.T) {
	locks := NewSessionLocks()
	ctx := context.Background()

	var wg sync.WaitGroup
	var holders, maxHolders int
	var mu sync.Mutex

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(ctx, "ses-1", 100, 2*time.Millisecond)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			holders++
			if holders > maxHolders {
				maxHolders = holders
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			holders--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxHolders)
}

func TestSessionLocksIndependentSessions(t *testing.T) {
	locks := NewSessionLocks()
	ctx := context.Background()

	releaseA, err := locks.Acquire(ctx, "ses-a", 0, time.Millisecond)
	require.NoError(t, err)
	defer releaseA()

	// a held lock on one session does not block another
	releaseB, err := locks.Acquire(ctx, "ses-b", 0, time.Millisecond)
	require.NoError(t, err)
	releaseB()
}

func TestSessionLocksBusyAfterRetries(t *testing.T) {
	locks := NewSessionLocks()
	ctx := context.Background()

	release, err := locks.Acquire(ctx, "ses-1", 0, time.Millisecond)
	require.NoError(t, err)

	_, err = locks.Acquire(ctx, "ses-1", 2, time.Millisecond)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusy))

	release()

	release, err = locks.Acquire(ctx, "ses-1", 0, time.Millisecond)
	require.NoError(t, err)
	release()
}

func TestSessionLocksContextCancelled(t *testing.T) {
	locks := NewSessionLocks()

	release, err := locks.Acquire(context.Background(), "ses-1", 0, time.Millisecond)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = locks.Acquire(ctx, "ses-1", 1000, 10*time.Millisecond)
	assert.True(t, appErrors.Is(err, appErrors.ErrBusy))
}
