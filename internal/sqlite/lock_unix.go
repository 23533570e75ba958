//go:build unix

package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// lockFile is the advisory lock every process takes on the data directory:
// shared while loading a generation, exclusive while saving one.
const lockFile = "cofund.lock"

// lockTimeout bounds how long a save or load waits for another process.
const lockTimeout = 10 * time.Second

type dirLock struct {
	f *os.File
}

// lockDir takes the data directory lock, polling with backoff while another
// process holds it.
func lockDir(ctx context.Context, dataDir string, exclusive bool) (*dirLock, error) {
	f, err := os.OpenFile(filepath.Join(dataDir, lockFile), os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	how := syscall.LOCK_SH
	if exclusive {
		how = syscall.LOCK_EX
	}

	err = syscall.Flock(int(f.Fd()), how|syscall.LOCK_NB)
	if err == nil {
		return &dirLock{f: f}, nil
	}
	if !errors.Is(err, syscall.EWOULDBLOCK) {
		f.Close()
		return nil, fmt.Errorf("flock: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	const (
		minBackoff = 10 * time.Millisecond
		maxBackoff = 250 * time.Millisecond
	)
	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("data directory is locked by another process: %w", ctx.Err())
		case <-time.After(backoff):
			err = syscall.Flock(int(f.Fd()), how|syscall.LOCK_NB)
			if err == nil {
				return &dirLock{f: f}, nil
			}
			if !errors.Is(err, syscall.EWOULDBLOCK) {
				f.Close()
				return nil, fmt.Errorf("flock: %w", err)
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}
	}
}

func (l *dirLock) unlock() {
	if l == nil || l.f == nil {
		return
	}
	syscall.Flock(int(l.f.Fd()), syscall.LOCK_UN)
	l.f.Close()
}
