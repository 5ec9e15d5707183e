// Package storage persists the revision catalog and reports disk usage of stored artifacts.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/redline/internal/models"
)

// ErrNotFound is returned when no revision matches a lookup.
var ErrNotFound = errors.New("revision not found")

// Store defines revision catalog operations. The catalog is append-only.
type Store interface {
	CreateRevision(ctx context.Context, rev *models.Revision) error
	GetRevisionByArtifact(ctx context.Context, artifact string) (*models.Revision, error)
	ListRevisions(ctx context.Context, offset, limit int) ([]*models.Revision, error)
	CountRevisions(ctx context.Context) (int64, error)

	Close() error
}
