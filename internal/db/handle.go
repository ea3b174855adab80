package db

import (
	"context"
	"database/sql"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/config"
)

// Handle owns the process-wide store instance. The store is opened lazily on
// first use and reused afterwards; a failed open is retried on the next call
// only, never in the background.
type Handle struct {
	baseDir string
	cfg     *config.Config
	logger  *zap.Logger

	mu sync.Mutex
	db *sql.DB
}

// NewHandle creates a Handle for the store under baseDir. Nothing is opened yet.
func NewHandle(baseDir string, cfg *config.Config, logger *zap.Logger) *Handle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handle{baseDir: baseDir, cfg: cfg, logger: logger}
}

// DB returns the open store, opening and migrating it if needed.
// Returns STORAGE_UNAVAILABLE if the engine cannot be opened.
func (h *Handle) DB(ctx context.Context) (*sql.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db != nil {
		return h.db, nil
	}

	db, err := Init(ctx, h.baseDir, h.logger)
	if err != nil {
		h.logger.Error("store unavailable", zap.String("base_dir", h.baseDir), zap.Error(err))
		return nil, err
	}
	ConfigurePool(db, h.cfg)

	h.db = db
	h.logger.Debug("store opened", zap.String("base_dir", h.baseDir))
	return db, nil
}

// Close releases the store. A later DB call reopens it.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.db == nil {
		return nil
	}
	err := h.db.Close()
	h.db = nil
	return err
}
