//go:build !unix

package sqlite

import "context"

// dirLock is a no-op where flock is unavailable. Saves still detect other
// writers through the generation check, but two saves may race.
type dirLock struct{}

func lockDir(ctx context.Context, dataDir string, exclusive bool) (*dirLock, error) {
	return &dirLock{}, ctx.Err()
}

func (l *dirLock) unlock() {}
