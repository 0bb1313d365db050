// Package main is the docquery CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"docquery/internal/answer"
	"docquery/internal/cli"
	"docquery/internal/config"
	"docquery/internal/embedding"
	"docquery/internal/extract"
	"docquery/internal/index"
	"docquery/internal/ingest"
	"docquery/internal/llm"
	"docquery/internal/models"
	"docquery/internal/server"
	"docquery/internal/storage"
	"docquery/internal/vector"
	"docquery/internal/watcher"
	"docquery/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads config from path. A missing file at the default path is
// not an error; env vars and defaults still apply.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			path = ""
		}
	}
	return config.Load(path)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "upload":
		runUpload()
	case "query":
		runQuery()
	case "stats":
		runStats()
	case "delete":
		runDelete()
	case "reset":
		runReset()
	case "version", "--version", "-v":
		fmt.Printf("docquery version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (uploads, queries, watcher events)")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if cfg.Watch.Enabled {
		ingestor := components.Ingestor
		watchOpts := []watcher.Option{}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc = watcher.NewWatcher(
			cfg.Storage.UploadDir,
			func(path string) {
				if _, err := ingestor.IngestFile(context.Background(), path); err != nil {
					logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				}
			},
			func(filename string) {
				if _, err := ingestor.Delete(context.Background(), filename); err != nil {
					logger.Warn("watch delete failed", zap.String("filename", filename), zap.Error(err))
				}
			},
			watchOpts...,
		)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Ingestor, components.Answers, components.Index, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	if err := components.VectorIndex.Save(cfg.Vector.SnapshotPath); err != nil {
		logger.Warn("vector snapshot save failed",
			zap.String("path", cfg.Vector.SnapshotPath), zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runUpload() {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docquery upload [flags] <file.pdf>...")
		os.Exit(1)
	}
	for _, path := range fs.Args() {
		if err := uploadViaHTTP(*serverURL, path); err != nil {
			fmt.Fprintf(os.Stderr, "Upload failed for %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Uploaded: %s\n", filepath.Base(path))
	}
}

func uploadViaHTTP(serverURL, path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := fw.Write(content); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}
	resp, err := http.Post(serverURL+"/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	topK := fs.Int("top-k", 0, "number of chunks to retrieve (0 = server default)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docquery query [flags] <question>")
		os.Exit(1)
	}
	question := buildQuestion(fs.Args())

	body, _ := json.Marshal(map[string]interface{}{"question": question, "top_k": *topK})
	resp, err := http.Post(*serverURL+"/api/query", "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Query failed (%d): %s\n", resp.StatusCode, string(payload))
		os.Exit(1)
	}

	var ans models.Answer
	if err := json.Unmarshal(payload, &ans); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteAnswer(os.Stdout, &ans, cli.OutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// buildQuestion joins all positional args with spaces so multi-word
// questions work with or without shell quoting.
func buildQuestion(args []string) string {
	out := ""
	for i, a := range args {
		if i > 0 {
			out += " "
		}
		out += a
	}
	return out
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	token := fs.String("token", "", "monitor token, when the server requires one")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	req, _ := http.NewRequest(http.MethodGet, *serverURL+"/api/stats", nil)
	if *token != "" {
		req.Header.Set("Authorization", "Bearer "+*token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Stats failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Stats failed (%d): %s\n", resp.StatusCode, string(payload))
		os.Exit(1)
	}

	var stats models.Stats
	if err := json.Unmarshal(payload, &stats); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStats(os.Stdout, &stats, cli.OutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: docquery delete [flags] <filename>")
		os.Exit(1)
	}
	filename := fs.Arg(0)

	req, _ := http.NewRequest(http.MethodDelete,
		*serverURL+"/api/documents/"+url.PathEscape(filename), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Deleted: %s\n", filename)
}

func runReset() {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	yes := fs.Bool("yes", false, "skip confirmation")
	_ = fs.Parse(os.Args[2:])

	if !*yes {
		fmt.Print("This removes every indexed document. Continue? [y/N] ")
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	resp, err := http.Post(*serverURL+"/api/reset", "application/json", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reset failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Reset failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Println("Index reset.")
}

// Components holds initialized services.
type Components struct {
	Store       storage.Store
	Embedder    embedding.Embedder
	VectorIndex vector.Index
	LLM         llm.Client
	Index       *index.Index
	Ingestor    *ingest.Ingestor
	Answers     *answer.Service
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.VectorIndex != nil {
		_ = c.VectorIndex.Close()
	}
	if c.LLM != nil {
		_ = c.LLM.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required (set LLM_API_KEY)")
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	embedder, err := embedding.NewRemoteEmbedder(embedding.RemoteConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		CacheSize:  cfg.Embedding.CacheSize,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	vectorIndex, err := vector.NewIndex(context.Background(), cfg.Vector, embedder.Dimensions())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize vector index: %w", err)
	}
	logger.Info("vector index initialized", zap.String("backend", cfg.Vector.Backend))

	client, err := llm.NewChatClient(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
	})
	if err != nil {
		_ = store.Close()
		_ = vectorIndex.Close()
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}

	idxOpts := []index.Option{}
	if debug {
		idxOpts = append(idxOpts, index.WithLogger(logger))
	}
	idx := index.New(store, embedder, vectorIndex, idxOpts...)

	ingestor, err := ingest.NewIngestor(idx, extract.NewExtractor(),
		ingest.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		cfg.Storage.UploadDir, cfg.Storage.MaxUploadBytes, logger)
	if err != nil {
		_ = store.Close()
		_ = vectorIndex.Close()
		return nil, fmt.Errorf("failed to initialize ingestor: %w", err)
	}

	answers := answer.NewService(idx, client, &cfg.RAG, logger)

	return &Components{
		Store:       store,
		Embedder:    embedder,
		VectorIndex: vectorIndex,
		LLM:         client,
		Index:       idx,
		Ingestor:    ingestor,
		Answers:     answers,
	}, nil
}

func printUsage() {
	fmt.Println(`docquery - PDF question answering service

Usage:
  docquery server [flags]             Start the HTTP server
  docquery upload [flags] <file>...   Upload PDFs to a running server
  docquery query [flags] <question>   Ask a question over indexed documents
  docquery stats [flags]              Show index statistics
  docquery delete [flags] <filename>  Remove a document from the index
  docquery reset [flags]              Remove all documents
  docquery version                    Show version
  docquery help                       Show this help

Server Flags:
  --config string    Config file path (default: config.yaml)
  --debug            Enable debug logging

Client Flags (upload, query, stats, delete, reset):
  --server string    Server URL (default: http://localhost:8000)

Query Flags:
  --top-k int        Number of chunks to retrieve (0 = server default)
  --output string    Output format: text or json (default: text)

Stats Flags:
  --token string     Monitor token, when the server requires one
  --output string    Output format: text or json (default: text)

Reset Flags:
  --yes              Skip confirmation

Examples:
  docquery server --debug
  docquery upload report.pdf handbook.pdf
  docquery query what does the handbook say about onboarding?
  docquery stats --output json
  docquery delete report.pdf
  docquery reset --yes`)
}
