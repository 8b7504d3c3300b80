// Package storage defines the persistence interface for trained model bundles.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/osusume/internal/feature"
	"github.com/hyperjump/osusume/internal/models"
)

// SchemaVersion identifies the on-disk bundle layout. Bundles written with a
// different version are rejected on load and the caller retrains instead.
const SchemaVersion = 1

var (
	// ErrNoBundle is returned when the store holds no bundle.
	ErrNoBundle = errors.New("no bundle in store")
	// ErrSchemaMismatch is returned when a stored bundle has an incompatible
	// schema version or inconsistent dimensions.
	ErrSchemaMismatch = errors.New("bundle schema mismatch")
)

// Bundle is everything needed to restore a trained snapshot without
// re-running feature extraction: the catalog rows, the scaled feature
// matrix, and the scaler parameters that produced it. Derived statistics
// are recomputed from the catalog on load.
type Bundle struct {
	ID            string
	SchemaVersion int
	Mode          feature.Mode
	CreatedAt     time.Time
	Dimensions    []string
	Mins          []float64
	Maxs          []float64
	Matrix        [][]float64
	Books         []*models.Book
}

// Store defines bundle persistence operations. At most one bundle is kept;
// saving replaces any previous one atomically.
type Store interface {
	SaveBundle(ctx context.Context, b *Bundle) error
	LoadBundle(ctx context.Context) (*Bundle, error)
	Close() error
}
