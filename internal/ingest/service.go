// Package ingest orchestrates the manual pipeline: extraction, metadata
// inference, chunking, capability detection, staged upload and retrieval.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bull/gearbook/internal/capability"
	"github.com/bull/gearbook/internal/pdf"
	"github.com/bull/gearbook/internal/storage"
	"github.com/bull/gearbook/internal/upload"
)

// Store is the persistence surface the service needs. *storage.Store
// satisfies it; unit tests substitute a fake.
type Store interface {
	AddChunks(ctx context.Context, chunks []pdf.Chunk) error
	UpsertInventory(ctx context.Context, item capability.ModuleInventoryItem, embeddingText string) error
	HybridSearch(ctx context.Context, query string, keywords []string, n int, filters storage.Filters) ([]storage.RetrievalRecord, error)
	SearchCapabilities(ctx context.Context, query string, n int) ([]storage.CapabilityHit, error)
	DeleteManual(ctx context.Context, filename string) (bool, error)
	DeleteInventory(ctx context.Context, filename string) error
	ListManuals(ctx context.Context) ([]storage.ManualSummary, error)
	Stats(ctx context.Context) (*storage.Stats, error)
}

// Config carries the tunable chunking parameters.
type Config struct {
	ChunkSize int
	Overlap   int
}

// Service ties the pipeline stages together behind the operations the MCP
// tools and the CLI expose.
type Service struct {
	store    Store
	staged   *upload.Manager
	detector *capability.Detector
	cfg      Config
	logger   *slog.Logger
}

// NewService builds the pipeline with the default capability taxonomy.
// Zero-valued Config fields fall back to the chunker defaults.
func NewService(store Store, staged *upload.Manager, cfg Config, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = pdf.DefaultMaxChunkSize
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = pdf.DefaultOverlap
	}

	taxonomy, err := capability.DefaultTaxonomy()
	if err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}
	detector, err := capability.NewDetector(taxonomy)
	if err != nil {
		return nil, fmt.Errorf("build detector: %w", err)
	}

	return &Service{
		store:    store,
		staged:   staged,
		detector: detector,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// ProcessResult reports what was staged for a manual awaiting commit.
type ProcessResult struct {
	Handle       string
	Metadata     pdf.ManualMetadata
	PageCount    int
	ChunkCount   int
	Capabilities []capability.ModuleCapability
	Summary      string
}

// Process runs the full read-side pipeline on a PDF and stages the outcome
// as a pending upload. Nothing reaches the vector store until Commit.
func (s *Service) Process(ctx context.Context, filename string, data []byte) (*ProcessResult, error) {
	pages, err := pdf.ExtractPages(data)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}

	meta := pdf.InferMetadata(filename, pdf.FullText(pages))
	meta.TotalPages = len(pages)

	chunks := pdf.ChunkPages(pages, meta, s.cfg.ChunkSize, s.cfg.Overlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", filename)
	}

	inventory := s.detector.Detect(chunks, meta)
	embeddingText := s.detector.EmbeddingText(inventory)

	staged, err := s.staged.Create(data, meta, chunks, inventory, embeddingText)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", filename, err)
	}

	s.logger.Info("processed manual",
		"filename", filename,
		"pages", len(pages),
		"chunks", len(chunks),
		"capabilities", len(inventory.Capabilities),
		"handle", staged.Handle)

	return &ProcessResult{
		Handle:       staged.Handle,
		Metadata:     meta,
		PageCount:    len(pages),
		ChunkCount:   len(chunks),
		Capabilities: inventory.Capabilities,
		Summary:      s.detector.Summary(inventory),
	}, nil
}

// Commit finalizes a pending upload into the vector store. A non-nil
// override replaces the inferred display name, manufacturer, model and
// instrument type on every chunk and on the capability record before
// anything is written. On store failure the upload stays pending.
func (s *Service) Commit(ctx context.Context, handle string, override *pdf.ManualMetadata) error {
	return s.staged.Finalize(handle, func(p upload.PendingUpload) error {
		meta := p.Metadata
		if override != nil {
			meta = mergeOverride(meta, *override)
		}

		chunks := p.Chunks
		if override != nil {
			chunks = make([]pdf.Chunk, len(p.Chunks))
			copy(chunks, p.Chunks)
			for i := range chunks {
				chunks[i].Metadata = meta
			}
		}

		if err := s.store.AddChunks(ctx, chunks); err != nil {
			return err
		}

		inventory := p.Inventory
		inventory.DisplayName = meta.DisplayName
		inventory.Manufacturer = orUnknown(meta.Manufacturer, "Unknown")
		inventory.Model = orUnknown(meta.Model, "Unknown")
		inventory.InstrumentType = orUnknown(meta.InstrumentType, "unknown")

		if err := s.store.UpsertInventory(ctx, inventory, p.EmbeddingText); err != nil {
			return fmt.Errorf("upsert inventory: %w", err)
		}
		return nil
	})
}

// mergeOverride applies the caller's corrections while preserving identity
// fields derived from the file itself.
func mergeOverride(meta, override pdf.ManualMetadata) pdf.ManualMetadata {
	if override.DisplayName != "" {
		meta.DisplayName = override.DisplayName
	}
	if override.Manufacturer != "" {
		meta.Manufacturer = override.Manufacturer
	}
	if override.Model != "" {
		meta.Model = override.Model
	}
	if override.InstrumentType != "" {
		meta.InstrumentType = override.InstrumentType
	}
	return meta
}

func orUnknown(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// Cancel discards a pending upload.
func (s *Service) Cancel(handle string) error {
	return s.staged.Cancel(handle)
}

// PendingUploads lists manuals staged but not yet committed.
func (s *Service) PendingUploads() []upload.PendingUpload {
	return s.staged.List()
}

// Query runs hybrid retrieval over the chunk collection.
func (s *Service) Query(ctx context.Context, query string, keywords []string, n int, filters storage.Filters) ([]storage.RetrievalRecord, error) {
	if n <= 0 {
		n = 5
	}
	return s.store.HybridSearch(ctx, query, keywords, n, filters)
}

// FindModules searches the capability inventory for manuals matching a
// module description.
func (s *Service) FindModules(ctx context.Context, query string, n int) ([]storage.CapabilityHit, error) {
	if n <= 0 {
		n = 5
	}
	return s.store.SearchCapabilities(ctx, query, n)
}

// ListManuals returns the stored catalog.
func (s *Service) ListManuals(ctx context.Context) ([]storage.ManualSummary, error) {
	return s.store.ListManuals(ctx)
}

// DeleteManual removes a manual's chunks and its capability record. Returns
// storage.ErrManualNotFound if no chunks existed.
func (s *Service) DeleteManual(ctx context.Context, filename string) error {
	deleted, err := s.store.DeleteManual(ctx, filename)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", storage.ErrManualNotFound, filename)
	}

	// The capability record may legitimately be absent.
	if err := s.store.DeleteInventory(ctx, filename); err != nil {
		s.logger.Warn("failed to delete capability record", "filename", filename, "error", err)
	}

	s.logger.Info("deleted manual", "filename", filename)
	return nil
}

// Stats reports catalog totals and distinct metadata values.
func (s *Service) Stats(ctx context.Context) (*storage.Stats, error) {
	return s.store.Stats(ctx)
}
