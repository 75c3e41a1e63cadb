// SPDX-License-Identifier: MPL-2.0

//go:build linux

package unpack

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// lockFileName is the well-known lock file under the data root that
// serializes provisioning across concurrent invocations of the same
// artifact. The zero-byte file is harmless if orphaned: the kernel releases
// the flock when the fd is closed, including on process crash.
const lockFileName = "provision.lock"

// provisionLock holds a blocking exclusive flock for the duration of a
// provisioning run, so two simultaneous first runs of a never-before-seen
// artifact build one environment instead of trampling each other.
type provisionLock struct {
	file *os.File
}

// acquireProvisionLock opens (or creates) the lock file under dataRoot and
// acquires a blocking exclusive flock.
func acquireProvisionLock(dataRoot string) (*provisionLock, error) {
	lockPath := filepath.Join(dataRoot, lockFileName)

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", lockPath, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", lockPath, err)
	}
	return &provisionLock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. It is safe to
// call multiple times and on a nil lock.
func (l *provisionLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
