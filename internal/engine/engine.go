// Package engine orchestrates a workbook evaluation: the scalar graph runs
// first, then the tabular steps run in order, each step reading a workbook
// dataset or the output of an earlier step. Every run is recorded in the
// state store.
package engine

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/calcflow-labs/calcflow/internal/state"
	"github.com/calcflow-labs/calcflow/internal/workbook"
)

// Engine evaluates workbooks against a run store.
type Engine struct {
	logger   *slog.Logger
	store    state.Store
	ownStore bool
	wb       *workbook.Workbook
}

// Config holds engine configuration.
type Config struct {
	// Workbook is the loaded and validated workbook to evaluate.
	Workbook *workbook.Workbook
	// StatePath is the path to the SQLite run database. Empty means
	// in-memory, so nothing survives the process.
	StatePath string
	// Store overrides StatePath with an already-open store. The engine
	// does not close a store it did not open.
	Store state.Store
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates a new engine, opening the run store when none is supplied.
func New(cfg Config) (*Engine, error) {
	if cfg.Workbook == nil {
		return nil, fmt.Errorf("engine needs a workbook")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store := cfg.Store
	ownStore := false
	if store == nil {
		path := cfg.StatePath
		if path == "" {
			path = ":memory:"
		}
		s := state.NewSQLiteStore()
		if err := s.Open(path); err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		if err := s.InitSchema(); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to initialize run store schema: %w", err)
		}
		store = s
		ownStore = true
	}

	logger.Debug("initializing engine", "workbook", cfg.Workbook.Name,
		"nodes", len(cfg.Workbook.Nodes), "steps", len(cfg.Workbook.Steps))

	return &Engine{
		logger:   logger,
		store:    store,
		ownStore: ownStore,
		wb:       cfg.Workbook,
	}, nil
}

// Store exposes the run store for history queries.
func (e *Engine) Store() state.Store { return e.store }

// Close releases the run store when the engine owns it.
func (e *Engine) Close() error {
	if e.ownStore {
		return e.store.Close()
	}
	return nil
}
