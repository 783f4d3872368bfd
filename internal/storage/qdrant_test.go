//go:build integration
// +build integration

package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/gearbook/internal/capability"
	"github.com/bull/gearbook/internal/pdf"
)

// stubEmbedder produces deterministic vectors without calling OpenAI. Texts
// sharing a prefix get nearby vectors so ranking is predictable.
type stubEmbedder struct{}

func (stubEmbedder) GenerateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = stubVector(text)
	}
	return vectors, nil
}

func (stubEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	return stubVector(query), nil
}

func stubVector(text string) []float32 {
	v := make([]float32, VectorDimension)
	for i, r := range text {
		v[(i*31+int(r))%VectorDimension] += 1
	}
	return v
}

// setupTestStore connects to a local Qdrant and ensures collections exist.
// Skips the test if Qdrant is not running.
func setupTestStore(t *testing.T) *Store {
	store, err := NewStore("localhost", 6334, stubEmbedder{})
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = store.EnsureCollections(context.Background())
	require.NoError(t, err, "Failed to ensure collections")

	return store
}

func testChunks(filename string, count int) []pdf.Chunk {
	meta := pdf.ManualMetadata{
		Filename:       filename,
		DisplayName:    "Test Manual",
		Manufacturer:   "Moog",
		Model:          "SUB-37",
		InstrumentType: "synthesizer",
		TotalPages:     10,
	}
	chunks := make([]pdf.Chunk, count)
	for i := range chunks {
		chunks[i] = pdf.Chunk{
			Content:     fmt.Sprintf("oscillator section content %d for %s", i, filename),
			PageNumber:  i/2 + 1,
			ChunkIndex:  i,
			SectionType: "operation",
			Metadata:    meta,
		}
	}
	return chunks
}

func TestAddAndSearchChunks(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	const filename = "it_roundtrip.pdf"
	defer store.DeleteManual(ctx, filename)

	err := store.AddChunks(ctx, testChunks(filename, 5))
	require.NoError(t, err)

	results, err := store.Search(ctx, "oscillator section content 0 for "+filename, 3, Filters{})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	top := results[0]
	assert.Equal(t, filename, top.Metadata.Filename)
	assert.Equal(t, "Moog", top.Metadata.Manufacturer)
	assert.Equal(t, "operation", top.Metadata.SectionType)
	assert.NotEmpty(t, top.Content)
}

func TestSearchFilters(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	const filename = "it_filters.pdf"
	defer store.DeleteManual(ctx, filename)

	require.NoError(t, store.AddChunks(ctx, testChunks(filename, 4)))

	// Matching filter set returns results.
	results, err := store.Search(ctx, "oscillator", 10, Filters{
		Manufacturer:   "Moog",
		InstrumentType: "synthesizer",
		SectionType:    "operation",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	// Any non-matching field excludes everything.
	results, err = store.Search(ctx, "oscillator", 10, Filters{
		Manufacturer: "Roland",
		SectionType:  "operation",
	})
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, filename, r.Metadata.Filename)
	}
}

func TestReingestReplacesPoints(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	const filename = "it_reingest.pdf"
	defer store.DeleteManual(ctx, filename)

	require.NoError(t, store.AddChunks(ctx, testChunks(filename, 4)))
	require.NoError(t, store.AddChunks(ctx, testChunks(filename, 4)))

	manuals, err := store.ListManuals(ctx)
	require.NoError(t, err)

	for _, m := range manuals {
		if m.Filename == filename {
			assert.Equal(t, 4, m.ChunkCount, "re-ingest must not duplicate points")
			return
		}
	}
	t.Fatalf("manual %s not listed", filename)
}

func TestDeleteManual(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	const filename = "it_delete.pdf"
	require.NoError(t, store.AddChunks(ctx, testChunks(filename, 3)))

	deleted, err := store.DeleteManual(ctx, filename)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteManual(ctx, filename)
	require.NoError(t, err)
	assert.False(t, deleted, "second delete must report nothing removed")
}

func TestHybridSearch(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	const filename = "it_hybrid.pdf"
	defer store.DeleteManual(ctx, filename)

	require.NoError(t, store.AddChunks(ctx, testChunks(filename, 6)))

	results, err := store.HybridSearch(ctx, "how does the oscillator work", []string{"oscillator"}, 4, Filters{})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 4)

	seen := make(map[string]bool)
	for _, r := range results {
		assert.False(t, seen[r.ID], "hybrid results must be deduplicated")
		seen[r.ID] = true
	}
}

func TestCapabilityInventoryRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	const filename = "it_inventory.pdf"
	defer store.DeleteInventory(ctx, filename)

	item := capability.ModuleInventoryItem{
		Filename:       filename,
		DisplayName:    "Test Modular",
		Manufacturer:   "Make Noise",
		Model:          "0-COAST",
		InstrumentType: "synthesizer",
		TotalPages:     40,
		Capabilities: []capability.ModuleCapability{
			{ModuleType: "oscillator", Confidence: 0.8},
			{ModuleType: "filter", Confidence: 0.5},
		},
	}

	err := store.UpsertInventory(ctx, item, "oscillator voltage controlled oscillator filter low pass")
	require.NoError(t, err)

	hits, err := store.SearchCapabilities(ctx, "voltage controlled oscillator", 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	var found *CapabilityHit
	for i := range hits {
		if hits[i].Filename == filename {
			found = &hits[i]
			break
		}
	}
	require.NotNil(t, found, "inventory record not returned")
	assert.Equal(t, "Make Noise", found.Manufacturer)
	assert.Contains(t, found.Capabilities, "oscillator")
}

func TestStats(t *testing.T) {
	store := setupTestStore(t)
	defer store.Close()
	ctx := context.Background()

	const filename = "it_stats.pdf"
	defer store.DeleteManual(ctx, filename)

	require.NoError(t, store.AddChunks(ctx, testChunks(filename, 2)))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalChunks, 2)
	assert.GreaterOrEqual(t, stats.TotalManuals, 1)
	assert.Contains(t, stats.Manufacturers, "Moog")
	assert.Contains(t, stats.SectionTypes, "operation")
}
