// SPDX-License-Identifier: MPL-2.0

package unpack

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// markerFileName is the per-environment marker recording which artifact
// release the environment was provisioned for. Its absence marks an
// interrupted or failed provisioning, which the next run redoes from
// scratch.
const markerFileName = "paqlet.marker"

type (
	// SetupCache decides whether a previously provisioned environment may
	// be reused. The engine derives the environment directory from the
	// (name, timestamp) identity; the cache only owns the marker inside it.
	// Comparison is exact stamp equality, never "newer than".
	SetupCache interface {
		// RecordedStamp returns the stamp the environment was provisioned
		// for, or ok=false when no valid marker exists.
		RecordedStamp(envDir string) (stamp string, ok bool)
		// Write records a completed provisioning for the given stamp.
		Write(envDir, stamp string) error
		// Remove deletes the marker. Removing an absent marker is success.
		Remove(envDir string) error
	}

	// marker is the TOML document stored in the marker file.
	marker struct {
		ProvisionedFor string    `toml:"provisioned_for"`
		CreatedAt      time.Time `toml:"created_at"`
	}

	// DiskCache is the production SetupCache, backed by a marker file in
	// each environment directory.
	DiskCache struct{}
)

// NewDiskCache returns the filesystem-backed SetupCache.
func NewDiskCache() *DiskCache { return &DiskCache{} }

// RecordedStamp implements SetupCache.
func (c *DiskCache) RecordedStamp(envDir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(envDir, markerFileName))
	if err != nil {
		return "", false
	}
	var m marker
	if err := toml.Unmarshal(data, &m); err != nil || m.ProvisionedFor == "" {
		// A corrupt marker is treated as absent: re-provisioning is always
		// safe, reusing a broken environment is not.
		return "", false
	}
	return m.ProvisionedFor, true
}

// Write implements SetupCache.
func (c *DiskCache) Write(envDir, stamp string) error {
	data, err := toml.Marshal(marker{
		ProvisionedFor: stamp,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(envDir, markerFileName), data, 0o644)
}

// Remove implements SetupCache.
func (c *DiskCache) Remove(envDir string) error {
	err := os.Remove(filepath.Join(envDir, markerFileName))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
