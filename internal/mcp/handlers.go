package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/bull/gearbook/internal/ingest"
	"github.com/bull/gearbook/internal/storage"
)

// makeSearchHandler creates the search_manuals tool handler. Retrieval is
// hybrid: semantic similarity over chunk embeddings, with optional keywords
// contributing a higher-priority candidate set.
func makeSearchHandler(svc *ingest.Service) func(
	context.Context, *mcp.CallToolRequest, SearchManualsInput,
) (*mcp.CallToolResult, SearchManualsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchManualsInput) (
		*mcp.CallToolResult, SearchManualsOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}

		filters := storage.Filters{
			InstrumentType: input.InstrumentType,
			Manufacturer:   input.Manufacturer,
			SectionType:    input.SectionType,
		}

		records, err := svc.Query(ctx, input.Query, input.Keywords, maxResults, filters)
		if err != nil {
			return nil, SearchManualsOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]ChunkResult, 0, len(records))
		for _, rec := range records {
			results = append(results, ChunkResult{
				Content:        rec.Content,
				Score:          rec.Score,
				Filename:       rec.Metadata.Filename,
				DisplayName:    rec.Metadata.DisplayName,
				Manufacturer:   rec.Metadata.Manufacturer,
				Model:          rec.Metadata.Model,
				InstrumentType: rec.Metadata.InstrumentType,
				PageNumber:     rec.Metadata.PageNumber,
				SectionType:    rec.Metadata.SectionType,
			})
		}

		if len(results) == 0 {
			return nil, SearchManualsOutput{
				Results: []ChunkResult{},
				Message: "No matching manual content found. Try broader terms or drop filters.",
			}, nil
		}

		return nil, SearchManualsOutput{Results: results}, nil
	}
}

// makeFindModulesHandler creates the find_modules tool handler, searching
// per-manual capability records rather than raw chunks.
func makeFindModulesHandler(svc *ingest.Service) func(
	context.Context, *mcp.CallToolRequest, FindModulesInput,
) (*mcp.CallToolResult, FindModulesOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input FindModulesInput) (
		*mcp.CallToolResult, FindModulesOutput, error,
	) {
		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}

		hits, err := svc.FindModules(ctx, input.Query, maxResults)
		if err != nil {
			return nil, FindModulesOutput{}, fmt.Errorf("capability search failed: %w", err)
		}

		results := make([]ModuleResult, 0, len(hits))
		for _, hit := range hits {
			caps := hit.Capabilities
			if caps == nil {
				caps = []string{}
			}
			results = append(results, ModuleResult{
				Filename:     hit.Filename,
				DisplayName:  hit.DisplayName,
				Manufacturer: hit.Manufacturer,
				Model:        hit.Model,
				Capabilities: caps,
				Score:        hit.Score,
			})
		}

		if len(results) == 0 {
			return nil, FindModulesOutput{
				Results: []ModuleResult{},
				Message: "No manuals with matching module capabilities found.",
			}, nil
		}

		return nil, FindModulesOutput{Results: results}, nil
	}
}

// makeListHandler creates the list_manuals tool handler.
func makeListHandler(svc *ingest.Service) func(
	context.Context, *mcp.CallToolRequest, ListManualsInput,
) (*mcp.CallToolResult, ListManualsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input ListManualsInput) (
		*mcp.CallToolResult, ListManualsOutput, error,
	) {
		summaries, err := svc.ListManuals(ctx)
		if err != nil {
			return nil, ListManualsOutput{}, fmt.Errorf("failed to list manuals: %w", err)
		}

		manuals := make([]ManualEntry, 0, len(summaries))
		for _, s := range summaries {
			manuals = append(manuals, ManualEntry{
				Filename:       s.Filename,
				DisplayName:    s.DisplayName,
				Manufacturer:   s.Manufacturer,
				Model:          s.Model,
				InstrumentType: s.InstrumentType,
				TotalPages:     s.TotalPages,
				ChunkCount:     s.ChunkCount,
			})
		}

		return nil, ListManualsOutput{Manuals: manuals, Count: len(manuals)}, nil
	}
}

// makeDeleteHandler creates the delete_manual tool handler. Deleting an
// unknown manual is reported in-band, not as a protocol error.
func makeDeleteHandler(svc *ingest.Service) func(
	context.Context, *mcp.CallToolRequest, DeleteManualInput,
) (*mcp.CallToolResult, DeleteManualOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DeleteManualInput) (
		*mcp.CallToolResult, DeleteManualOutput, error,
	) {
		err := svc.DeleteManual(ctx, input.Filename)
		if err != nil {
			if errors.Is(err, storage.ErrManualNotFound) {
				return nil, DeleteManualOutput{
					Deleted:  false,
					Filename: input.Filename,
					Message:  "No manual with that filename is stored. Use list_manuals to see the catalog.",
				}, nil
			}
			return nil, DeleteManualOutput{}, fmt.Errorf("delete failed: %w", err)
		}

		return nil, DeleteManualOutput{Deleted: true, Filename: input.Filename}, nil
	}
}

// makeStatsHandler creates the get_library_stats tool handler.
func makeStatsHandler(svc *ingest.Service) func(
	context.Context, *mcp.CallToolRequest, StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input StatsInput) (
		*mcp.CallToolResult, StatsOutput, error,
	) {
		stats, err := svc.Stats(ctx)
		if err != nil {
			return nil, StatsOutput{}, fmt.Errorf("failed to compute stats: %w", err)
		}

		return nil, StatsOutput{
			TotalManuals:    stats.TotalManuals,
			TotalChunks:     stats.TotalChunks,
			Manufacturers:   emptyIfNil(stats.Manufacturers),
			InstrumentTypes: emptyIfNil(stats.InstrumentTypes),
			SectionTypes:    emptyIfNil(stats.SectionTypes),
		}, nil
	}
}

// emptyIfNil keeps JSON arrays non-null for clients.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
