// Package storage persists manual chunks and capability records in Qdrant
// and serves semantic, filtered and hybrid retrieval over them.
package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"

	"github.com/bull/gearbook/internal/capability"
	"github.com/bull/gearbook/internal/pdf"
)

// Embedder turns text into vectors. Implemented by embedding.Client; tests
// substitute a stub.
type Embedder interface {
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// Store wraps the Qdrant client with the two gearbook collections and the
// embedding capability needed at query time.
type Store struct {
	client   *qdrant.Client
	embedder Embedder
}

// NewStore connects to Qdrant and validates the connection with a retried
// health check, failing fast if the server stays unreachable.
func NewStore(host string, port int, embedder Embedder) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &Store{client: client, embedder: embedder}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}

	return store, nil
}

func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		return s.Health(ctx)
	}, backoff.WithContext(b, ctx))
}

// Health performs a single health check against Qdrant.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollections creates both collections and their payload indexes if
// absent. Idempotent.
func (s *Store) EnsureCollections(ctx context.Context) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}

	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, name := range []string{ChunkCollection, CapabilityCollection} {
		if have[name] {
			continue
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     VectorDimension,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("create collection %s: %w", name, err)
		}
	}

	return s.createPayloadIndexes(ctx)
}

// createPayloadIndexes indexes every filterable field. Filtering without
// these indexes degrades badly as the catalog grows.
func (s *Store) createPayloadIndexes(ctx context.Context) error {
	chunkFields := []string{"filename", "manufacturer", "instrument_type", "section_type"}
	for _, field := range chunkFields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: ChunkCollection,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create index for %s.%s: %w", ChunkCollection, field, err)
		}
	}

	_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: CapabilityCollection,
		FieldName:      "filename",
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("create index for %s.filename: %w", CapabilityCollection, err)
	}
	return nil
}

// Close closes the Qdrant client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func (s *Store) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		return err
	}, backoff.WithContext(b, ctx))
}

// AddChunks embeds chunk content and upserts one point per chunk. Point IDs
// are deterministic, so re-adding a manual replaces its old points. Batched
// in groups of 100.
func (s *Store) AddChunks(ctx context.Context, chunks []pdf.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	for i, vec := range vectors {
		if len(vec) != VectorDimension {
			return fmt.Errorf("%w: chunk %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), VectorDimension)
		}
	}

	const batchSize = 100
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			chunk := chunks[i]
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(ChunkPointID(chunk.Metadata.Filename, chunk.PageNumber, chunk.ChunkIndex)),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: qdrant.NewValueMap(map[string]any{
					"content":         chunk.Content,
					"filename":        chunk.Metadata.Filename,
					"display_name":    orDefault(chunk.Metadata.DisplayName, chunk.Metadata.Filename),
					"manufacturer":    orDefault(chunk.Metadata.Manufacturer, "unknown"),
					"model":           orDefault(chunk.Metadata.Model, "unknown"),
					"instrument_type": orDefault(chunk.Metadata.InstrumentType, "unknown"),
					"page_number":     chunk.PageNumber,
					"chunk_index":     chunk.ChunkIndex,
					"section_type":    orDefault(chunk.SectionType, "general"),
					"total_pages":     chunk.Metadata.TotalPages,
				}),
			})
		}

		if err := s.upsertWithRetry(ctx, ChunkCollection, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}

	return nil
}

// Search embeds the query and returns the n nearest chunks, restricted by
// any non-empty filter fields.
func (s *Store) Search(ctx context.Context, query string, n int, filters Filters) ([]RetrievalRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vector) != VectorDimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), VectorDimension)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ChunkCollection,
		Query:          qdrant.NewQuery(vector...),
		Filter:         filters.toQdrant(),
		Limit:          qdrant.PtrOf(uint64(n)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	records := make([]RetrievalRecord, 0, len(results))
	for _, point := range results {
		records = append(records, recordFromPayload(point.Id.GetUuid(), float64(point.Score), point.Payload))
	}
	return records, nil
}

// HybridSearch fuses a keyword-biased candidate set with a semantic candidate
// set. Semantic search runs with 2n candidates; when keywords are supplied a
// second search over the joined keywords contributes up to n higher-priority
// candidates. Without keywords this degrades to plain semantic search
// truncated to n.
func (s *Store) HybridSearch(ctx context.Context, query string, keywords []string, n int, filters Filters) ([]RetrievalRecord, error) {
	if n <= 0 {
		return nil, nil
	}

	semantic, err := s.Search(ctx, query, n*2, filters)
	if err != nil {
		return nil, err
	}

	if len(keywords) == 0 {
		if len(semantic) > n {
			semantic = semantic[:n]
		}
		return semantic, nil
	}

	keyword, err := s.Search(ctx, strings.Join(keywords, " "), n, filters)
	if err != nil {
		return nil, err
	}

	return fuseResults(keyword, semantic, n), nil
}

// DeleteManual removes every chunk whose filename matches. Returns whether
// any chunk existed; deleting an unknown manual is not an error.
func (s *Store) DeleteManual(ctx context.Context, filename string) (bool, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("filename", filename)},
	}

	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: ChunkCollection,
		Filter:         filter,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return false, fmt.Errorf("count chunks for %s: %w", filename, err)
	}
	if count == 0 {
		return false, nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ChunkCollection,
		Points:         qdrant.NewPointsSelectorFilter(filter),
	})
	if err != nil {
		return false, fmt.Errorf("delete chunks for %s: %w", filename, err)
	}
	return true, nil
}

// ListManuals scrolls all chunk metadata and groups it into one summary per
// manual, sorted by display name.
func (s *Store) ListManuals(ctx context.Context) ([]ManualSummary, error) {
	byFilename := make(map[string]*ManualSummary)

	err := s.scrollChunks(ctx, func(payload map[string]*qdrant.Value) {
		filename := payload["filename"].GetStringValue()
		summary, ok := byFilename[filename]
		if !ok {
			summary = &ManualSummary{
				Filename:       filename,
				DisplayName:    payload["display_name"].GetStringValue(),
				Manufacturer:   payload["manufacturer"].GetStringValue(),
				Model:          payload["model"].GetStringValue(),
				InstrumentType: payload["instrument_type"].GetStringValue(),
				TotalPages:     int(payload["total_pages"].GetIntegerValue()),
			}
			byFilename[filename] = summary
		}
		summary.ChunkCount++
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]ManualSummary, 0, len(byFilename))
	for _, summary := range byFilename {
		summaries = append(summaries, *summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].DisplayName < summaries[j].DisplayName
	})
	return summaries, nil
}

// Stats scans all stored chunk metadata and reports totals plus distinct
// values per filterable field.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	filenames := make(map[string]struct{})
	manufacturers := make(map[string]struct{})
	instrumentTypes := make(map[string]struct{})
	sectionTypes := make(map[string]struct{})

	err := s.scrollChunks(ctx, func(payload map[string]*qdrant.Value) {
		stats.TotalChunks++
		filenames[payload["filename"].GetStringValue()] = struct{}{}
		if v := payload["manufacturer"].GetStringValue(); v != "" {
			manufacturers[v] = struct{}{}
		}
		if v := payload["instrument_type"].GetStringValue(); v != "" {
			instrumentTypes[v] = struct{}{}
		}
		if v := payload["section_type"].GetStringValue(); v != "" {
			sectionTypes[v] = struct{}{}
		}
	})
	if err != nil {
		return nil, err
	}

	stats.TotalManuals = len(filenames)
	stats.Manufacturers = sortedSet(manufacturers)
	stats.InstrumentTypes = sortedSet(instrumentTypes)
	stats.SectionTypes = sortedSet(sectionTypes)
	return stats, nil
}

// scrollChunks pages through every chunk point, invoking visit with each
// payload.
func (s *Store) scrollChunks(ctx context.Context, visit func(map[string]*qdrant.Value)) error {
	var offset *qdrant.PointId
	const batchSize = uint32(256)

	for {
		results, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: ChunkCollection,
			Limit:          qdrant.PtrOf(batchSize),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return fmt.Errorf("scroll chunks: %w", err)
		}

		for _, point := range results {
			visit(point.Payload)
		}

		if uint32(len(results)) < batchSize {
			return nil
		}
		offset = results[len(results)-1].Id
	}
}

// UpsertInventory stores one capability record per manual, embedding the
// detector's search-optimized text. Manuals with no detected capabilities
// get no record.
func (s *Store) UpsertInventory(ctx context.Context, item capability.ModuleInventoryItem, embeddingText string) error {
	if len(item.Capabilities) == 0 {
		return nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, embeddingText)
	if err != nil {
		return fmt.Errorf("embed inventory for %s: %w", item.Filename, err)
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDUUID(InventoryPointID(item.Filename)),
		Vectors: qdrant.NewVectors(vector...),
		Payload: inventoryPayload(item, embeddingText),
	}

	return s.upsertWithRetry(ctx, CapabilityCollection, []*qdrant.PointStruct{point})
}

// inventoryPayload builds the capability record payload. Module types go in
// as an interface slice; NewValueMap accepts only scalars, maps and
// []interface{} for list values.
func inventoryPayload(item capability.ModuleInventoryItem, embeddingText string) map[string]*qdrant.Value {
	topTypes := make([]interface{}, 0, len(item.Capabilities))
	for i, cap := range item.Capabilities {
		if i >= 5 {
			break
		}
		topTypes = append(topTypes, cap.ModuleType)
	}

	return qdrant.NewValueMap(map[string]any{
		"capability_text":  embeddingText,
		"filename":         item.Filename,
		"display_name":     item.DisplayName,
		"manufacturer":     item.Manufacturer,
		"model":            item.Model,
		"instrument_type":  item.InstrumentType,
		"total_pages":      item.TotalPages,
		"num_capabilities": len(item.Capabilities),
		"top_capabilities": topTypes,
	})
}

// SearchCapabilities returns the manuals whose capability records are
// nearest to the query.
func (s *Store) SearchCapabilities(ctx context.Context, query string, n int) ([]CapabilityHit, error) {
	if n <= 0 {
		return nil, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed capability query: %w", err)
	}

	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: CapabilityCollection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(n)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("search capabilities: %w", err)
	}

	hits := make([]CapabilityHit, 0, len(results))
	for _, point := range results {
		payload := point.Payload

		var caps []string
		if list := payload["top_capabilities"].GetListValue(); list != nil {
			for _, v := range list.Values {
				caps = append(caps, v.GetStringValue())
			}
		}

		hits = append(hits, CapabilityHit{
			Filename:       payload["filename"].GetStringValue(),
			DisplayName:    payload["display_name"].GetStringValue(),
			Manufacturer:   payload["manufacturer"].GetStringValue(),
			Model:          payload["model"].GetStringValue(),
			Capabilities:   caps,
			Score:          float64(point.Score),
			CapabilityText: payload["capability_text"].GetStringValue(),
		})
	}
	return hits, nil
}

// DeleteInventory removes a manual's capability record if present.
func (s *Store) DeleteInventory(ctx context.Context, filename string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CapabilityCollection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(InventoryPointID(filename))),
	})
	if err != nil {
		return fmt.Errorf("delete inventory for %s: %w", filename, err)
	}
	return nil
}

func (f Filters) toQdrant() *qdrant.Filter {
	var must []*qdrant.Condition
	if f.InstrumentType != "" {
		must = append(must, qdrant.NewMatch("instrument_type", f.InstrumentType))
	}
	if f.Manufacturer != "" {
		must = append(must, qdrant.NewMatch("manufacturer", f.Manufacturer))
	}
	if f.SectionType != "" {
		must = append(must, qdrant.NewMatch("section_type", f.SectionType))
	}
	if len(must) == 0 {
		return nil
	}
	return &qdrant.Filter{Must: must}
}

func recordFromPayload(id string, score float64, payload map[string]*qdrant.Value) RetrievalRecord {
	return RetrievalRecord{
		ID:      id,
		Content: payload["content"].GetStringValue(),
		Score:   score,
		Metadata: RecordMetadata{
			Filename:       payload["filename"].GetStringValue(),
			DisplayName:    payload["display_name"].GetStringValue(),
			Manufacturer:   payload["manufacturer"].GetStringValue(),
			Model:          payload["model"].GetStringValue(),
			InstrumentType: payload["instrument_type"].GetStringValue(),
			PageNumber:     int(payload["page_number"].GetIntegerValue()),
			ChunkIndex:     int(payload["chunk_index"].GetIntegerValue()),
			SectionType:    payload["section_type"].GetStringValue(),
			TotalPages:     int(payload["total_pages"].GetIntegerValue()),
		},
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
