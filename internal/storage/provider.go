// Package storage exposes a git working copy as a read-only file tree.
package storage

import "github.com/starford/blogit/internal/models"

// Provider is the interface for reading a checkout.
type Provider interface {
	// List returns the direct children of dir (relative to the root), sorted by name.
	List(dir string) ([]models.Entry, error)
	// Read returns the raw bytes of the file at path (relative to the root).
	Read(path string) ([]byte, error)
	// Root returns the absolute root directory.
	Root() string
}
