package cache

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDirectoryForLink_Deterministic(t *testing.T) {
	c := New("/var/cache/wheelhouse")

	first := c.DirectoryForLink("file:///srv/sdists/mypkg-1.0.tar.gz")
	second := c.DirectoryForLink("file:///srv/sdists/mypkg-1.0.tar.gz")
	assert.Equal(t, first, second)

	other := c.DirectoryForLink("file:///srv/sdists/mypkg-1.1.tar.gz")
	assert.NotEqual(t, first, other)
}

func TestDirectoryForLink_Layout(t *testing.T) {
	c := New("/base")
	key := KeyForLink("file:///srv/sdists/mypkg-1.0.tar.gz")
	dir := c.DirectoryForLink("file:///srv/sdists/mypkg-1.0.tar.gz")

	rel, err := filepath.Rel("/base", dir)
	assert.NoError(t, err)

	parts := strings.Split(rel, string(filepath.Separator))
	assert.Len(t, parts, 4)
	assert.Equal(t, key[:2], parts[0])
	assert.Equal(t, key[2:4], parts[1])
	assert.Equal(t, key[4:6], parts[2])
	assert.Equal(t, key[6:], parts[3])
}

func TestKeyForLink_Stable(t *testing.T) {
	// sha256 of the empty string; a fixed vector guards against accidental
	// key-scheme changes, which would orphan existing caches.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		KeyForLink(""))

	assert.Equal(t, KeyForLink("a"), KeyForLink("a"))
	assert.NotEqual(t, KeyForLink("a"), KeyForLink("b"))
}
