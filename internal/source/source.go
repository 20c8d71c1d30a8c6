// Package source fetches directory listings, file contents and commit
// history from the repository hosting the articles.
package source

import (
	"context"

	"github.com/starford/blogit/internal/models"
)

// Source is the remote document source consumed by the builder. Failures are
// reported as *apperr.RemoteSourceError.
type Source interface {
	// ListDirectory returns the entries directly under path, in listing order.
	ListDirectory(ctx context.Context, path string) ([]models.Entry, error)
	// GetFile returns the metadata and base64 content of the file at path.
	GetFile(ctx context.Context, path string) (*models.RemoteFile, error)
	// GetCommits returns the commits that touched path.
	GetCommits(ctx context.Context, path string) ([]models.Commit, error)
}

// Operation names used in errors and logs.
const (
	OpList    = "list directory"
	OpGetFile = "get file"
	OpCommits = "get commits"
)
