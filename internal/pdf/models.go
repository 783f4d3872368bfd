package pdf

// ManualMetadata describes one ingested manual. It is inferred once at
// extraction time, corrected by the user during staged review, and frozen at
// commit time.
type ManualMetadata struct {
	Filename       string
	DisplayName    string
	Manufacturer   string // empty when inference found nothing
	Model          string // empty when inference found nothing
	InstrumentType string // "unknown" when inference found nothing
	TotalPages     int
	Language       string
}

// Page is the text of a single PDF page. PageNumber is 1-based.
type Page struct {
	Text       string
	PageNumber int
}

// Chunk is a bounded unit of manual text tied to one page. ChunkIndex is
// unique within a manual and increases in emission order.
type Chunk struct {
	Content     string
	PageNumber  int
	ChunkIndex  int
	SectionType string // empty when no section keyword matched
	Metadata    ManualMetadata
}
