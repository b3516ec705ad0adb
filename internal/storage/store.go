package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Supported persistence backends
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var (
	// ErrNotFound is returned by Load when no artifacts have been persisted
	ErrNotFound = errors.New("not found")
	// ErrCorruptIndex is returned when persisted artifacts cannot be decoded or are misaligned
	ErrCorruptIndex = errors.New("corrupt index")
)

// Artifacts is the persisted form of a built corpus: the index, its row-aligned
// metadata, and the fingerprint of the catalog it was built from
type Artifacts struct {
	Index       *Index
	Records     []Record
	Fingerprint [32]byte // Zero when unknown
	BuiltAt     time.Time
}

// Validate checks that index rows and metadata are aligned
func (a *Artifacts) Validate() error {
	if a.Index == nil {
		return fmt.Errorf("%w: missing index", ErrCorruptIndex)
	}
	if a.Index.Len() != len(a.Records) {
		return fmt.Errorf("%w: index has %d rows, metadata has %d", ErrCorruptIndex, a.Index.Len(), len(a.Records))
	}
	return nil
}

// Store persists and restores index artifacts
type Store interface {
	// Exists reports whether a complete set of artifacts is present
	Exists(ctx context.Context) (bool, error)

	// Load restores persisted artifacts, or returns ErrNotFound
	Load(ctx context.Context) (*Artifacts, error)

	// Save replaces any persisted artifacts
	Save(ctx context.Context, artifacts *Artifacts) error

	// Location describes where artifacts live, for logs and status output
	Location() string

	Close() error
}
