package storage

import (
	"fmt"

	"github.com/google/uuid"
)

// ChunkCollection holds one point per manual chunk.
const ChunkCollection = "manual_chunks"

// CapabilityCollection holds one point per manual summarizing its detected
// module capabilities.
const CapabilityCollection = "module_capabilities"

// VectorDimension is the embedding size for text-embedding-3-small.
const VectorDimension = 1536

// RecordMetadata is the fixed per-chunk payload. Every chunk of one manual
// carries the same manual-level fields.
type RecordMetadata struct {
	Filename       string
	DisplayName    string
	Manufacturer   string
	Model          string
	InstrumentType string
	PageNumber     int
	ChunkIndex     int
	SectionType    string
	TotalPages     int
}

// RetrievalRecord is one ranked search hit. ID is deterministic (derived from
// filename, page and chunk index) and is the key for fusion de-duplication.
type RetrievalRecord struct {
	ID       string
	Content  string
	Metadata RecordMetadata
	Score    float64
}

// Filters restricts search to chunks whose metadata matches every non-empty
// field (logical AND).
type Filters struct {
	InstrumentType string
	Manufacturer   string
	SectionType    string
}

// ManualSummary is one manual's metadata plus its stored chunk count.
type ManualSummary struct {
	Filename       string
	DisplayName    string
	Manufacturer   string
	Model          string
	InstrumentType string
	TotalPages     int
	ChunkCount     int
}

// Stats summarizes the stored catalog. Distinct-value sets are computed by a
// full scroll, acceptable at catalog scale.
type Stats struct {
	TotalChunks     int
	TotalManuals    int
	Manufacturers   []string
	InstrumentTypes []string
	SectionTypes    []string
}

// CapabilityHit is one ranked result from capability search: a manual and the
// module types it was detected to contain.
type CapabilityHit struct {
	Filename       string
	DisplayName    string
	Manufacturer   string
	Model          string
	Capabilities   []string
	Score          float64
	CapabilityText string
}

// idNamespace scopes deterministic point IDs to this application.
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/bull/gearbook"))

// ChunkPointID derives the stable point ID for a chunk. Re-ingesting the same
// manual overwrites its previous points instead of duplicating them.
func ChunkPointID(filename string, pageNumber, chunkIndex int) string {
	key := fmt.Sprintf("chunk/%s_%d_%d", filename, pageNumber, chunkIndex)
	return uuid.NewSHA1(idNamespace, []byte(key)).String()
}

// InventoryPointID derives the stable point ID for a manual's capability
// record.
func InventoryPointID(filename string) string {
	return uuid.NewSHA1(idNamespace, []byte("modules/"+filename)).String()
}
