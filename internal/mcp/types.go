// Package mcp exposes the manual library over the Model Context Protocol.
package mcp

// SearchManualsInput defines the input parameters for the search_manuals tool.
type SearchManualsInput struct {
	// Query is the semantic search query.
	Query string `json:"query" jsonschema:"required,description=Natural language question about equipment operation or setup"`
	// Keywords bias retrieval toward exact terms (panel labels, jack names, error codes).
	Keywords []string `json:"keywords,omitempty" jsonschema:"description=Exact terms to prioritize such as panel labels or connector names"`
	// MaxResults is the maximum number of chunks to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of chunks to return"`
	// InstrumentType restricts results to one instrument category.
	InstrumentType string `json:"instrument_type,omitempty" jsonschema:"description=Restrict to one instrument type (e.g. synthesizer or drum_machine)"`
	// Manufacturer restricts results to one manufacturer.
	Manufacturer string `json:"manufacturer,omitempty" jsonschema:"description=Restrict to one manufacturer"`
	// SectionType restricts results to one manual section category.
	SectionType string `json:"section_type,omitempty" jsonschema:"description=Restrict to one section type (specifications, connections, setup, operation, programming, troubleshooting)"`
}

// SearchManualsOutput contains the fused retrieval results.
type SearchManualsOutput struct {
	Results []ChunkResult `json:"results"`
	// Message provides informational context when there are no results.
	Message string `json:"message,omitempty"`
}

// ChunkResult is one retrieved manual passage with its provenance.
type ChunkResult struct {
	Content        string  `json:"content"`
	Score          float64 `json:"score"`
	Filename       string  `json:"filename"`
	DisplayName    string  `json:"display_name"`
	Manufacturer   string  `json:"manufacturer"`
	Model          string  `json:"model"`
	InstrumentType string  `json:"instrument_type"`
	PageNumber     int     `json:"page_number"`
	SectionType    string  `json:"section_type"`
}

// FindModulesInput defines the input parameters for the find_modules tool.
type FindModulesInput struct {
	// Query describes the module capability being sought.
	Query string `json:"query" jsonschema:"required,description=Module capability to find (e.g. a voltage controlled filter with resonance)"`
	// MaxResults is the maximum number of manuals to return.
	MaxResults int `json:"max_results,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Maximum number of manuals to return"`
}

// FindModulesOutput contains capability search results.
type FindModulesOutput struct {
	Results []ModuleResult `json:"results"`
	Message string         `json:"message,omitempty"`
}

// ModuleResult is one manual matched by capability search.
type ModuleResult struct {
	Filename     string   `json:"filename"`
	DisplayName  string   `json:"display_name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Capabilities []string `json:"capabilities"`
	Score        float64  `json:"score"`
}

// ListManualsInput takes no parameters.
type ListManualsInput struct{}

// ListManualsOutput contains the stored catalog.
type ListManualsOutput struct {
	Manuals []ManualEntry `json:"manuals"`
	Count   int           `json:"count"`
}

// ManualEntry summarizes one stored manual.
type ManualEntry struct {
	Filename       string `json:"filename"`
	DisplayName    string `json:"display_name"`
	Manufacturer   string `json:"manufacturer"`
	Model          string `json:"model"`
	InstrumentType string `json:"instrument_type"`
	TotalPages     int    `json:"total_pages"`
	ChunkCount     int    `json:"chunk_count"`
}

// DeleteManualInput defines the input parameters for the delete_manual tool.
type DeleteManualInput struct {
	// Filename identifies the manual to remove, as reported by list_manuals.
	Filename string `json:"filename" jsonschema:"required,description=Exact stored filename of the manual to delete"`
}

// DeleteManualOutput reports the deletion outcome.
type DeleteManualOutput struct {
	Deleted  bool   `json:"deleted"`
	Filename string `json:"filename"`
	Message  string `json:"message,omitempty"`
}

// StatsInput takes no parameters.
type StatsInput struct{}

// StatsOutput summarizes the library contents.
type StatsOutput struct {
	TotalManuals    int      `json:"total_manuals"`
	TotalChunks     int      `json:"total_chunks"`
	Manufacturers   []string `json:"manufacturers"`
	InstrumentTypes []string `json:"instrument_types"`
	SectionTypes    []string `json:"section_types"`
}
