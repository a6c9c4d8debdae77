// Package cache resolves stable, content-identity-keyed directories for build
// artifacts and maintains a SQLite index of prepared wheels.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

// ArtifactCache maps a source identity (a canonical URL) to a deterministic
// directory under the cache base. Resolution is pure and idempotent: the same
// link always yields the same directory, and distinct keys never collide
// thanks to the segmented sha256 layout.
type ArtifactCache struct {
	base string
}

// New creates an artifact cache rooted at base.
func New(base string) *ArtifactCache {
	return &ArtifactCache{base: base}
}

// Base returns the cache root directory.
func (c *ArtifactCache) Base() string {
	return c.base
}

// KeyForLink returns the hex sha256 of the link, used as the cache identity.
func KeyForLink(link string) string {
	sum := sha256.Sum256([]byte(link))
	return hex.EncodeToString(sum[:])
}

// DirectoryForLink resolves the destination directory for a source link.
// The directory is not created; callers create it when they first build
// into it.
func (c *ArtifactCache) DirectoryForLink(link string) string {
	key := KeyForLink(link)
	return c.DirectoryForKey(key)
}

// DirectoryForKey resolves the directory for an already-computed cache key.
func (c *ArtifactCache) DirectoryForKey(key string) string {
	return filepath.Join(c.base, key[:2], key[2:4], key[4:6], key[6:])
}
