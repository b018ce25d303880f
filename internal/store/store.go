// Package store persists the working fleet document.
//
// A DocumentStore pairs an immutable seed with a mutable working copy held by
// a Medium (local file, sqlite row or memory). A missing, empty or unparsable
// working copy is replaced by a byte-identical copy of the seed, and every
// write replaces the whole document atomically.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/vesaa/fleetsim/internal/metrics"
	"github.com/vesaa/fleetsim/internal/models"
)

var (
	// ErrSeedInvalid means the seed document cannot be used. There is no recovery.
	ErrSeedInvalid = errors.New("seed document invalid")
	// ErrWorkingCorrupt means the working document exists but does not parse.
	ErrWorkingCorrupt = errors.New("working document corrupt")
	// ErrReadUnavailable is returned by Read when no usable document is present.
	ErrReadUnavailable = errors.New("working document unavailable")
	// ErrNotFound is returned by a Medium when no working document exists yet.
	ErrNotFound = errors.New("working document not found")
)

// Store is the persistence contract used by the simulator and the HTTP layer.
type Store interface {
	// EnsureHealthy repairs the working document from the seed if needed.
	// It reports whether a repair was written.
	EnsureHealthy(ctx context.Context) (bool, error)
	// Read returns the current fleet regardless of the on-disk shape.
	Read(ctx context.Context) (models.ServiceCollection, error)
	// WriteAtomic replaces the working document with services.
	WriteAtomic(ctx context.Context, services models.ServiceCollection) error
}

// Medium holds the raw working document bytes.
// Replace must be all-or-nothing from the point of view of Load.
type Medium interface {
	Load(ctx context.Context) ([]byte, error)
	Replace(ctx context.Context, raw []byte) error
	Driver() string
	Close() error
}

// Seed is the read-only fixture used to (re)initialize the working document.
type Seed struct {
	raw []byte
}

// NewSeed validates raw and keeps a private copy of it.
func NewSeed(raw []byte, acceptBareArray bool) (Seed, error) {
	if _, err := models.DecodeDocument(raw, acceptBareArray); err != nil {
		return Seed{}, fmt.Errorf("%w: %w", ErrSeedInvalid, err)
	}
	return Seed{raw: append([]byte(nil), raw...)}, nil
}

// LoadSeed reads and validates the seed file at path.
func LoadSeed(path string, acceptBareArray bool) (Seed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("%w: reading %s: %w", ErrSeedInvalid, path, err)
	}
	return NewSeed(raw, acceptBareArray)
}

// Bytes returns a copy of the seed document.
func (s Seed) Bytes() []byte { return append([]byte(nil), s.raw...) }

// DocumentStore implements Store on top of a Medium.
// All operations are serialized, so the tick and request paths never
// interleave on the medium.
type DocumentStore struct {
	mu              sync.Mutex
	medium          Medium
	seed            Seed
	acceptBareArray bool
	log             *slog.Logger
}

var _ Store = (*DocumentStore)(nil)

// NewDocumentStore wires a medium and a seed together.
func NewDocumentStore(m Medium, seed Seed, acceptBareArray bool, log *slog.Logger) *DocumentStore {
	if log == nil {
		log = slog.Default()
	}
	return &DocumentStore{
		medium:          m,
		seed:            seed,
		acceptBareArray: acceptBareArray,
		log:             log.With("component", "store", "driver", m.Driver()),
	}
}

// Driver names the backing medium.
func (s *DocumentStore) Driver() string { return s.medium.Driver() }

// Close releases the medium.
func (s *DocumentStore) Close() error { return s.medium.Close() }

// EnsureHealthy implements Store.
func (s *DocumentStore) EnsureHealthy(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.medium.Load(ctx)
	switch {
	case err == nil:
		_, derr := models.DecodeDocument(raw, s.acceptBareArray)
		if derr == nil {
			return false, nil
		}
		s.log.Warn("working document corrupt", "error", derr)
	case errors.Is(err, ErrNotFound):
		s.log.Info("working document missing")
	default:
		s.log.Warn("working document unreadable", "error", err)
	}

	if err := s.medium.Replace(ctx, s.seed.Bytes()); err != nil {
		return false, fmt.Errorf("reinitializing from seed: %w", err)
	}
	metrics.IncRepair(s.medium.Driver())
	s.log.Info("working document reinitialized from seed")
	return true, nil
}

// Read implements Store.
func (s *DocumentStore) Read(ctx context.Context) (models.ServiceCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.medium.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadUnavailable, err)
	}
	list, err := models.DecodeDocument(raw, s.acceptBareArray)
	if err != nil {
		return nil, fmt.Errorf("%w: %w: %w", ErrReadUnavailable, ErrWorkingCorrupt, err)
	}
	return list, nil
}

// WriteAtomic implements Store. The document is always written in the wrapped shape.
func (s *DocumentStore) WriteAtomic(ctx context.Context, services models.ServiceCollection) error {
	raw, err := models.EncodeDocument(services)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.medium.Replace(ctx, raw); err != nil {
		return fmt.Errorf("writing document: %w", err)
	}
	metrics.IncWrite(s.medium.Driver())
	return nil
}
