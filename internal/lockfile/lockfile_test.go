package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// deadPID is above the Linux pid_max ceiling, so no process can own it.
const deadPID = 99999999

func writeLock(t *testing.T, dir string, pid int, ts time.Time) {
	t.Helper()

	content := fmt.Sprintf("pid=%d\ntimestamp=%d\n", pid, ts.Unix())
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultName), []byte(content), filePermissions))
}

// TestAcquireRelease creates and removes the lock file.
func TestAcquireRelease(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	lock, err := Acquire(dir, "")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, DefaultName))

	content, err := os.ReadFile(lock.Path())
	require.NoError(t, err)
	require.Contains(t, string(content), fmt.Sprintf("pid=%d", os.Getpid()))

	require.NoError(t, lock.Release())
	require.NoFileExists(t, lock.Path())
	require.NoError(t, lock.Release())
}

// TestAcquire_HeldByLiveProcess refuses a lock owned by a running process.
func TestAcquire_HeldByLiveProcess(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	lock, err := Acquire(dir, "")
	require.NoError(t, err)

	defer func() {
		_ = lock.Release()
	}()

	_, err = Acquire(dir, "")
	require.ErrorIs(t, err, ErrLocked)
}

// TestAcquire_DeadOwner takes over a lock whose pid no longer exists.
func TestAcquire_DeadOwner(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLock(t, dir, deadPID, time.Now())

	lock, err := Acquire(dir, "")
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestAcquire_ExpiredLock takes over a lock older than StaleAfter.
func TestAcquire_ExpiredLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeLock(t, dir, os.Getpid(), time.Now().Add(-2*StaleAfter))

	lock, err := Acquire(dir, "")
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestAcquire_GarbageLock treats an unparsable lock as abandoned.
func TestAcquire_GarbageLock(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultName), []byte("pid=abc\n"), filePermissions))

	lock, err := Acquire(dir, "")
	require.NoError(t, err)
	require.NoError(t, lock.Release())
}

// TestAcquire_MissingDirectory reports a plain error, not ErrLocked.
func TestAcquire_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := Acquire(filepath.Join(t.TempDir(), "absent"), "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrLocked)
}

// TestAcquire_ConcurrentCallers lets exactly one of many simultaneous callers win.
// A lock file is never visible before its owner is written, so no caller can
// mistake a fresh lock for an abandoned one.
func TestAcquire_ConcurrentCallers(t *testing.T) {
	t.Parallel()

	const callers = 32

	for round := range 20 {
		dir := t.TempDir()

		var (
			wg     sync.WaitGroup
			wins   atomic.Int32
			locked atomic.Int32
		)

		start := make(chan struct{})

		for range callers {
			wg.Add(1)

			go func() {
				defer wg.Done()

				<-start

				if _, err := Acquire(dir, ""); err == nil {
					wins.Add(1)
				} else if errors.Is(err, ErrLocked) {
					locked.Add(1)
				}
			}()
		}

		close(start)
		wg.Wait()

		require.Equal(t, int32(1), wins.Load(), "round %d", round)
		require.Equal(t, int32(callers-1), locked.Load(), "round %d", round)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1, "round %d: only the lock file remains", round)
	}
}
