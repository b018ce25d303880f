package store

import (
	"fmt"
	"log/slog"
)

// Options selects and configures a store backend.
type Options struct {
	Driver          string // file | sqlite | memory
	WorkingPath     string // file driver
	SQLitePath      string // sqlite driver
	SeedPath        string
	AcceptBareArray bool
}

// Open loads the seed and builds a DocumentStore for opts.Driver.
// An invalid seed is reported as ErrSeedInvalid.
func Open(opts Options, log *slog.Logger) (*DocumentStore, error) {
	seed, err := LoadSeed(opts.SeedPath, opts.AcceptBareArray)
	if err != nil {
		return nil, err
	}

	var m Medium
	switch opts.Driver {
	case "file", "":
		m = NewFileMedium(opts.WorkingPath)
	case "sqlite":
		sm, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		m = sm
	case "memory":
		m = NewMemoryMedium()
	default:
		return nil, fmt.Errorf("unsupported store driver %q (use 'file', 'sqlite' or 'memory')", opts.Driver)
	}
	return NewDocumentStore(m, seed, opts.AcceptBareArray, log), nil
}
