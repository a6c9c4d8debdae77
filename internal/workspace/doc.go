// Package workspace manages ephemeral scratch directories for builds.
//
// Each workspace is a unique timestamped directory (e.g.,
// wheelhouse-20260827-122336-1234) used for archive unpacking, git checkouts,
// and isolated build environments, removed completely after use.
package workspace
