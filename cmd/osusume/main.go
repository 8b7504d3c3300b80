// Package main is the Osusume CLI entry point.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/engine"
	"github.com/hyperjump/osusume/internal/sentiment"
	"github.com/hyperjump/osusume/internal/server"
	"github.com/hyperjump/osusume/internal/storage"
	"github.com/hyperjump/osusume/internal/watcher"
	"github.com/hyperjump/osusume/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/osusume/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so that running from the project
// dir picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
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
	case "recommend":
		runRecommend()
	case "genre":
		runGenre()
	case "search":
		runSearch()
	case "train":
		runTrain()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("osusume version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// components holds the wired engine and its closable collaborators.
type components struct {
	Engine *engine.Engine
	Store  storage.Store
}

func (c *components) Close() {
	if c.Engine != nil {
		_ = c.Engine.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

// initializeComponents wires the engine from config: catalog loader, sentiment
// scorer, bundle store.
func initializeComponents(cfg *config.Config, logger *zap.Logger) (*components, error) {
	loader := catalog.NewFileLoader(cfg.Catalog.Path)

	var scorer sentiment.Scorer
	if cfg.Sentiment.EnabledOrDefault() {
		scorer = sentiment.NewScorer(cfg.Sentiment.ModelPath)
	}

	var store storage.Store
	if cfg.Storage.DatabasePath != "" {
		s, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bundle store: %w", err)
		}
		store = s
	}

	eng := engine.NewEngine(logger, loader, scorer, store, &cfg.Recommend)
	if err := eng.Init(context.Background()); err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}
	return &components{Engine: eng, Store: store}, nil
}

// setup loads config, builds the logger, and wires the engine for a
// subcommand. Exits on failure.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger, *components) {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug("config loaded", zap.String("config_path", resolvedPath))

	comps, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize engine", zap.Error(err))
	}
	return cfg, logger, comps
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, comps := setup(*configPath, *debug)
	defer logger.Sync()
	defer comps.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if cfg.Catalog.Watch {
		watchOpts := []watcher.Option{}
		if cfg.Debug || *debug {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher(cfg.Catalog.Path, func(path string) {
			logger.Info("catalog changed, retraining", zap.String("path", path))
			if err := comps.Engine.Invalidate(context.Background()); err != nil {
				logger.Warn("retrain after catalog change failed", zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(comps.Engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 0, "number of recommendations (0 = configured default)")
	includeSelf := fs.Bool("include-self", false, "include the seed book in results")
	jsonOut := fs.Bool("json", false, "output JSON")
	_ = fs.Parse(os.Args[2:])

	title := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if title == "" {
		fmt.Println("Usage: osusume recommend [flags] <title>")
		fs.PrintDefaults()
		os.Exit(1)
	}

	_, logger, comps := setup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	resp, err := comps.Engine.RecommendSimilar(context.Background(), title, *k, *includeSelf)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommendation failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		printJSON(resp)
		return
	}
	fmt.Printf("Recommendations for %q (%s mode):\n", resp.Seed, resp.Mode)
	for i, rec := range resp.Recommendations {
		fmt.Printf("%2d. %s by %s (rating %.2f, %d ratings, similarity %.3f)\n",
			i+1, rec.Title, rec.Author, rec.Rating, rec.RatingsCount, rec.Similarity)
	}
}

func runGenre() {
	fs := flag.NewFlagSet("genre", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 0, "number of recommendations (0 = configured default)")
	jsonOut := fs.Bool("json", false, "output JSON")
	list := fs.Bool("list", false, "list known genres and exit")
	_ = fs.Parse(os.Args[2:])

	_, logger, comps := setup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	if *list {
		for _, g := range comps.Engine.Genres() {
			fmt.Println(g)
		}
		return
	}

	genreName := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if genreName == "" {
		fmt.Println("Usage: osusume genre [flags] <genre>")
		fs.PrintDefaults()
		os.Exit(1)
	}

	resp, err := comps.Engine.RecommendForGenre(context.Background(), genreName, *k)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Genre recommendation failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		printJSON(resp)
		return
	}
	if len(resp.Recommendations) == 0 {
		fmt.Printf("No books matched genre %q\n", resp.Genre)
		return
	}
	fmt.Printf("Top %s books:\n", resp.Genre)
	for i, rec := range resp.Recommendations {
		fmt.Printf("%2d. %s by %s (rating %.2f, %d ratings, score %.3f)\n",
			i+1, rec.Title, rec.Author, rec.Rating, rec.RatingsCount, rec.QualityScore)
	}
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 10, "number of results")
	jsonOut := fs.Bool("json", false, "output JSON")
	_ = fs.Parse(os.Args[2:])

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Println("Usage: osusume search [flags] <query>")
		fs.PrintDefaults()
		os.Exit(1)
	}

	_, logger, comps := setup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	resp, err := comps.Engine.Search(context.Background(), query, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		printJSON(resp)
		return
	}
	if len(resp.Hits) == 0 {
		fmt.Printf("No results for %q\n", resp.Query)
		return
	}
	for i, hit := range resp.Hits {
		fmt.Printf("%2d. %s by %s (rating %.2f, %d ratings)\n",
			i+1, hit.Title, hit.Author, hit.Rating, hit.RatingsCount)
	}
}

func runTrain() {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	_, logger, comps := setup(*configPath, *debug)
	defer logger.Sync()
	defer comps.Close()

	// setup already trained or restored; force a fresh fit so a stale bundle
	// is replaced.
	if err := comps.Engine.Invalidate(context.Background()); err != nil {
		logger.Fatal("Training failed", zap.Error(err))
	}
	fmt.Printf("Trained %d books in %s mode\n", comps.Engine.Size(), comps.Engine.Mode())
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	jsonOut := fs.Bool("json", false, "output JSON")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, comps := setup(*configPath, false)
	defer logger.Sync()
	defer comps.Close()

	if *jsonOut {
		printJSON(map[string]interface{}{
			"mode":          comps.Engine.Mode(),
			"books":         comps.Engine.Size(),
			"catalog_path":  cfg.Catalog.Path,
			"database_path": cfg.Storage.DatabasePath,
		})
		return
	}
	fmt.Printf("Mode:     %s\n", comps.Engine.Mode())
	fmt.Printf("Books:    %d\n", comps.Engine.Size())
	fmt.Printf("Catalog:  %s\n", cfg.Catalog.Path)
	fmt.Printf("Database: %s\n", cfg.Storage.DatabasePath)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printUsage() {
	fmt.Println(`Usage: osusume <command> [flags]

Commands:
  server     Start the HTTP API server
  recommend  Recommend books similar to a title
  genre      Recommend top books for a genre
  search     Full-text search over titles and authors
  train      Retrain the model from the catalog and persist it
  status     Show engine status
  version    Print version
  help       Show this help

Run "osusume <command> -h" for command flags.`)
}
