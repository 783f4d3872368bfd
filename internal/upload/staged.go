// Package upload implements two-phase manual ingestion. A processed manual
// is staged as a pending upload that must be explicitly committed before it
// reaches the vector store, or cancelled to discard it.
package upload

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bull/gearbook/internal/capability"
	"github.com/bull/gearbook/internal/pdf"
)

// ErrPendingNotFound is returned when a handle does not reference a live
// pending upload. Cancelled and committed handles become invalid immediately.
var ErrPendingNotFound = errors.New("pending upload not found")

// PendingUpload holds everything needed to commit a processed manual. The
// original PDF bytes are parked on disk at TempPath until commit or cancel.
type PendingUpload struct {
	Handle           string
	OriginalFilename string
	TempPath         string
	Metadata         pdf.ManualMetadata
	Chunks           []pdf.Chunk
	Inventory        capability.ModuleInventoryItem
	EmbeddingText    string
	CreatedAt        time.Time
}

// Manager tracks pending uploads in memory. All transitions are atomic: a
// handle observed by one operation is either fully pending or fully gone.
type Manager struct {
	mu      sync.Mutex
	pending map[string]*PendingUpload
	dir     string
	logger  *slog.Logger
}

// NewManager stages temp artifacts under dir, creating it if needed.
func NewManager(dir string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	return &Manager{
		pending: make(map[string]*PendingUpload),
		dir:     dir,
		logger:  logger,
	}, nil
}

// Create stages a processed manual and returns its pending record. A second
// upload with the same original filename replaces the first: the old entry
// is dropped and its temp artifact released, so stale handles fail with
// ErrPendingNotFound.
func (m *Manager) Create(data []byte, meta pdf.ManualMetadata, chunks []pdf.Chunk,
	inventory capability.ModuleInventoryItem, embeddingText string) (*PendingUpload, error) {

	handle := uuid.New().String()
	tempPath := filepath.Join(m.dir, handle+".pdf")

	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("write staged pdf: %w", err)
	}

	p := &PendingUpload{
		Handle:           handle,
		OriginalFilename: meta.Filename,
		TempPath:         tempPath,
		Metadata:         meta,
		Chunks:           chunks,
		Inventory:        inventory,
		EmbeddingText:    embeddingText,
		CreatedAt:        time.Now().UTC(),
	}

	m.mu.Lock()
	for oldHandle, old := range m.pending {
		if old.OriginalFilename == meta.Filename {
			delete(m.pending, oldHandle)
			m.removeArtifact(old)
			m.logger.Info("replaced pending upload",
				"filename", meta.Filename,
				"old_handle", oldHandle,
				"new_handle", handle)
		}
	}
	m.pending[handle] = p
	m.mu.Unlock()

	m.logger.Info("staged upload",
		"handle", handle,
		"filename", meta.Filename,
		"chunks", len(chunks))
	return p, nil
}

// Finalize commits the pending upload identified by handle via commit. The
// entry is removed only after commit succeeds; on failure it stays pending
// so the caller can retry. Finalize operations are serialized.
func (m *Manager) Finalize(handle string, commit func(PendingUpload) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[handle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPendingNotFound, handle)
	}

	if err := commit(*p); err != nil {
		return fmt.Errorf("commit %s: %w", p.OriginalFilename, err)
	}

	delete(m.pending, handle)
	m.removeArtifact(p)
	m.logger.Info("finalized upload", "handle", handle, "filename", p.OriginalFilename)
	return nil
}

// Cancel discards a pending upload and its staged artifact.
func (m *Manager) Cancel(handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[handle]
	if !ok {
		return fmt.Errorf("%w: %s", ErrPendingNotFound, handle)
	}

	delete(m.pending, handle)
	m.removeArtifact(p)
	m.logger.Info("cancelled upload", "handle", handle, "filename", p.OriginalFilename)
	return nil
}

// Get returns a snapshot of a pending upload.
func (m *Manager) Get(handle string) (PendingUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.pending[handle]
	if !ok {
		return PendingUpload{}, fmt.Errorf("%w: %s", ErrPendingNotFound, handle)
	}
	return *p, nil
}

// List returns snapshots of all pending uploads, newest first.
func (m *Manager) List() []PendingUpload {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PendingUpload, 0, len(m.pending))
	for _, p := range m.pending {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// removeArtifact deletes a staged temp file. Cleanup failures are logged,
// never surfaced; the entry transition has already happened.
func (m *Manager) removeArtifact(p *PendingUpload) {
	if err := os.Remove(p.TempPath); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("failed to remove staged artifact",
			"path", p.TempPath, "error", err)
	}
}
