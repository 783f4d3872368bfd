// Package main provides the gearbook CLI for managing the manual library.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/gearbook/internal/embedding"
	"github.com/bull/gearbook/internal/ingest"
	"github.com/bull/gearbook/internal/pdf"
	"github.com/bull/gearbook/internal/storage"
	"github.com/bull/gearbook/internal/upload"
)

var rootCmd = &cobra.Command{
	Use:   "gearbook",
	Short: "Music equipment manual library tool",
	Long: `CLI for ingesting and querying music equipment manuals in Qdrant.

Environment variables:
  QDRANT_HOST            Qdrant hostname (default: localhost)
  QDRANT_PORT            Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY         OpenAI API key for embeddings (required)
  GEARBOOK_CHUNK_SIZE    Max chunk size in characters (default: 1000)
  GEARBOOK_CHUNK_OVERLAP Chunk overlap in characters (default: 200)
  GEARBOOK_STAGING_DIR   Staging directory for pending uploads (default: OS temp)`,
}

var (
	flagDryRun         bool
	flagDisplayName    string
	flagManufacturer   string
	flagModel          string
	flagInstrumentType string
	flagMaxResults     int
	flagKeywords       []string
	flagFilterType     string
	flagFilterMfr      string
	flagFilterSection  string
)

var addCmd = &cobra.Command{
	Use:   "add <manual.pdf>",
	Short: "Process a PDF manual and commit it to the library",
	Long: `Extracts text, infers metadata, chunks, detects module capabilities,
stages the result, then commits it to Qdrant. With --dry-run the staged
upload is cancelled after printing what would be stored. Metadata flags
override the inferred values at commit time.`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored manuals",
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <filename>",
	Short: "Delete a stored manual and its capability record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show library totals and filterable values",
	RunE:  runStats,
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Hybrid search over manual content",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

var findCmd = &cobra.Command{
	Use:   "find <capability>",
	Short: "Find manuals by detected module capability",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFind,
}

func init() {
	addCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "process and report without committing")
	addCmd.Flags().StringVar(&flagDisplayName, "display-name", "", "override inferred display name")
	addCmd.Flags().StringVar(&flagManufacturer, "manufacturer", "", "override inferred manufacturer")
	addCmd.Flags().StringVar(&flagModel, "model", "", "override inferred model")
	addCmd.Flags().StringVar(&flagInstrumentType, "type", "", "override inferred instrument type")

	searchCmd.Flags().IntVarP(&flagMaxResults, "max-results", "n", 5, "maximum results")
	searchCmd.Flags().StringSliceVarP(&flagKeywords, "keyword", "k", nil, "exact terms to prioritize (repeatable)")
	searchCmd.Flags().StringVar(&flagFilterType, "type", "", "filter by instrument type")
	searchCmd.Flags().StringVar(&flagFilterMfr, "manufacturer", "", "filter by manufacturer")
	searchCmd.Flags().StringVar(&flagFilterSection, "section", "", "filter by section type")

	findCmd.Flags().IntVarP(&flagMaxResults, "max-results", "n", 5, "maximum results")

	rootCmd.AddCommand(addCmd, listCmd, deleteCmd, statsCmd, searchCmd, findCmd)
}

func main() {
	// Load .env if present (local development), ignore if missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildService connects all pipeline dependencies from the environment.
func buildService() (*ingest.Service, func(), error) {
	embedder, err := embedding.NewClient(0)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedding client: %w", err)
	}

	host := getEnv("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)

	store, err := storage.NewStore(host, port, embedder)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to Qdrant at %s:%d: %w", host, port, err)
	}

	if err := store.EnsureCollections(context.Background()); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("ensure collections: %w", err)
	}

	stagingDir := getEnv("GEARBOOK_STAGING_DIR", filepath.Join(os.TempDir(), "gearbook-staging"))
	staged, err := upload.NewManager(stagingDir, slog.Default())
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	cfg := ingest.Config{
		ChunkSize: getEnvInt("GEARBOOK_CHUNK_SIZE", pdf.DefaultMaxChunkSize),
		Overlap:   getEnvInt("GEARBOOK_CHUNK_OVERLAP", pdf.DefaultOverlap),
	}

	svc, err := ingest.NewService(store, staged, cfg, slog.Default())
	if err != nil {
		store.Close()
		return nil, nil, err
	}

	return svc, func() { store.Close() }, nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	path := args[0]
	start := time.Now()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	svc, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := context.Background()
	result, err := svc.Process(ctx, filepath.Base(path), data)
	if err != nil {
		return err
	}

	fmt.Printf("Processed %s\n", result.Metadata.Filename)
	fmt.Printf("  Display name: %s\n", result.Metadata.DisplayName)
	fmt.Printf("  Manufacturer: %s\n", valueOr(result.Metadata.Manufacturer, "(not detected)"))
	fmt.Printf("  Model:        %s\n", valueOr(result.Metadata.Model, "(not detected)"))
	fmt.Printf("  Type:         %s\n", result.Metadata.InstrumentType)
	fmt.Printf("  Pages:        %d\n", result.PageCount)
	fmt.Printf("  Chunks:       %d\n", result.ChunkCount)

	if len(result.Capabilities) > 0 {
		fmt.Println("  Detected modules:")
		for _, cap := range result.Capabilities {
			fmt.Printf("    %-14s confidence %.2f  pages %v\n", cap.ModuleType, cap.Confidence, cap.PageNumbers)
		}
	} else {
		fmt.Println("  Detected modules: none")
	}

	if flagDryRun {
		if err := svc.Cancel(result.Handle); err != nil {
			return err
		}
		fmt.Println()
		fmt.Println("Dry run: staged upload cancelled, nothing stored.")
		return nil
	}

	override := overrideFromFlags()
	if err := svc.Commit(ctx, result.Handle, override); err != nil {
		return err
	}

	fmt.Println()
	fmt.Printf("Committed in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

// overrideFromFlags returns nil when no metadata flag was set.
func overrideFromFlags() *pdf.ManualMetadata {
	if flagDisplayName == "" && flagManufacturer == "" && flagModel == "" && flagInstrumentType == "" {
		return nil
	}
	return &pdf.ManualMetadata{
		DisplayName:    flagDisplayName,
		Manufacturer:   flagManufacturer,
		Model:          flagModel,
		InstrumentType: flagInstrumentType,
	}
}

func runList(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	manuals, err := svc.ListManuals(context.Background())
	if err != nil {
		return err
	}

	if len(manuals) == 0 {
		fmt.Println("Library is empty.")
		return nil
	}

	for _, m := range manuals {
		fmt.Printf("%s\n", m.DisplayName)
		fmt.Printf("  file=%s manufacturer=%s model=%s type=%s pages=%d chunks=%d\n",
			m.Filename, m.Manufacturer, m.Model, m.InstrumentType, m.TotalPages, m.ChunkCount)
	}
	fmt.Printf("\n%d manual(s)\n", len(manuals))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	filename := args[0]
	if err := svc.DeleteManual(context.Background(), filename); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", filename)
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := svc.Stats(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Manuals: %d\n", stats.TotalManuals)
	fmt.Printf("Chunks:  %d\n", stats.TotalChunks)
	fmt.Printf("Manufacturers:    %s\n", joinOrNone(stats.Manufacturers))
	fmt.Printf("Instrument types: %s\n", joinOrNone(stats.InstrumentTypes))
	fmt.Printf("Section types:    %s\n", joinOrNone(stats.SectionTypes))
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	query := strings.Join(args, " ")
	filters := storage.Filters{
		InstrumentType: flagFilterType,
		Manufacturer:   flagFilterMfr,
		SectionType:    flagFilterSection,
	}

	records, err := svc.Query(context.Background(), query, flagKeywords, flagMaxResults, filters)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, rec := range records {
		fmt.Printf("%d. [%.3f] %s p.%d (%s)\n", i+1, rec.Score,
			rec.Metadata.DisplayName, rec.Metadata.PageNumber,
			valueOr(rec.Metadata.SectionType, "general"))
		fmt.Printf("   %s\n", truncate(rec.Content, 200))
	}
	return nil
}

func runFind(cmd *cobra.Command, args []string) error {
	svc, cleanup, err := buildService()
	if err != nil {
		return err
	}
	defer cleanup()

	query := strings.Join(args, " ")
	hits, err := svc.FindModules(context.Background(), query, flagMaxResults)
	if err != nil {
		return err
	}

	if len(hits) == 0 {
		fmt.Println("No manuals with matching capabilities.")
		return nil
	}

	for i, hit := range hits {
		fmt.Printf("%d. [%.3f] %s (%s %s)\n", i+1, hit.Score, hit.DisplayName,
			hit.Manufacturer, hit.Model)
		fmt.Printf("   modules: %s\n", joinOrNone(hit.Capabilities))
	}
	return nil
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "(none)"
	}
	return strings.Join(values, ", ")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		var i int
		if _, err := fmt.Sscanf(v, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}
