// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package unpack

// provisionLock is a no-op on platforms without flock. Concurrent first
// runs race last-writer-wins there; both racers produce an equivalent
// environment, so the outcome is correct either way.
type provisionLock struct{}

func acquireProvisionLock(string) (*provisionLock, error) {
	return nil, nil
}

// Release is a no-op; it is safe on a nil lock.
func (l *provisionLock) Release() {}
