// Package main provides the MCP server entry point for the manual library.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bull/gearbook/internal/embedding"
	"github.com/bull/gearbook/internal/ingest"
	mcpserver "github.com/bull/gearbook/internal/mcp"
	"github.com/bull/gearbook/internal/pdf"
	"github.com/bull/gearbook/internal/storage"
	"github.com/bull/gearbook/internal/upload"
)

func main() {
	// Load .env file if present (local development), ignore if missing.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	qdrantHost := getEnv("QDRANT_HOST", "localhost")
	qdrantPort := getEnvInt("QDRANT_PORT", 6334)
	port := getEnv("PORT", "8080")

	embedder, err := embedding.NewClient(0)
	if err != nil {
		log.Fatalf("failed to create embedding client: %v", err)
	}

	store, err := storage.NewStore(qdrantHost, qdrantPort, embedder)
	if err != nil {
		log.Fatalf("failed to connect to Qdrant: %v", err)
	}
	defer store.Close()

	if err := store.EnsureCollections(ctx); err != nil {
		log.Fatalf("failed to ensure collections: %v", err)
	}

	stagingDir := getEnv("GEARBOOK_STAGING_DIR", filepath.Join(os.TempDir(), "gearbook-staging"))
	staged, err := upload.NewManager(stagingDir, slog.Default())
	if err != nil {
		log.Fatalf("failed to create staging manager: %v", err)
	}

	cfg := ingest.Config{
		ChunkSize: getEnvInt("GEARBOOK_CHUNK_SIZE", pdf.DefaultMaxChunkSize),
		Overlap:   getEnvInt("GEARBOOK_CHUNK_OVERLAP", pdf.DefaultOverlap),
	}
	service, err := ingest.NewService(store, staged, cfg, slog.Default())
	if err != nil {
		log.Fatalf("failed to build pipeline: %v", err)
	}

	server := mcpserver.NewServer(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/", mcpserver.NewLandingHandler())
	mux.HandleFunc("/health", mcpserver.NewHealthHandler(store))
	mux.Handle("/mcp", mcpserver.NewHTTPHandler(server, nil))

	serverMode := getEnv("SERVER_MODE", "false") == "true"

	if serverMode {
		// HTTP mode: serve MCP over HTTP for remote clients.
		addr := "0.0.0.0:" + port
		log.Printf("Starting HTTP server on %s (MCP at /mcp, health at /health)", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}
	} else {
		// Stdio mode for local clients, with the HTTP endpoints in the
		// background for health checks.
		go func() {
			addr := "0.0.0.0:" + port
			log.Printf("Starting health server on %s", addr)
			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Printf("Health server error: %v", err)
			}
		}()

		log.Println("Starting Gearbook MCP Server (stdio mode)...")
		if err := server.Run(ctx); err != nil {
			log.Fatalf("MCP server error: %v", err)
		}
	}
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
