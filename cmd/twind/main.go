package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/config"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/embedder"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/engine"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/extract"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/llm"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/logger"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/maintenance"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/memory"
	"github.com/62zqbq4f6g-commits/digital-twin-sub007/internal/retrieval"
)

func init() {
	godotenv.Load()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", "error", err)
	}

	extractModel, err := llm.New(llm.Config{
		Provider: cfg.Extractor.Provider,
		APIKey:   cfg.Extractor.APIKey,
		Model:    cfg.Extractor.Model,
		BaseURL:  cfg.Extractor.BaseURL,
	})
	if err != nil {
		logger.Fatal("failed to create extractor llm", "error", err)
	}

	decideModel, err := llm.New(llm.Config{
		Provider: cfg.Decider.Provider,
		APIKey:   cfg.Decider.APIKey,
		Model:    cfg.Decider.Model,
		BaseURL:  cfg.Decider.BaseURL,
	})
	if err != nil {
		logger.Fatal("failed to create decider llm", "error", err)
	}

	store, err := memory.Open(cfg.MemoryPath)
	if err != nil {
		logger.Fatal("failed to open memory", "error", err)
	}
	defer store.Close()

	emb, err := embedder.New(embedder.Config{
		Provider: cfg.Embedder.Provider,
		BaseURL:  cfg.Embedder.BaseURL,
		Model:    cfg.Embedder.Model,
	})
	if err != nil {
		logger.Fatal("failed to create embedder", "error", err)
	}
	if emb != nil {
		store.SetEmbedder(emb)
		logger.Debug("embedder configured", "provider", cfg.Embedder.Provider)
	}

	eng := engine.New(store, extract.NewService(extractModel), engine.NewLLMDecider(decideModel))
	composer := retrieval.New(store, emb)

	policy, err := maintenance.LoadPolicy(cfg.PolicyPath)
	if err != nil {
		logger.Fatal("failed to load maintenance policy", "error", err)
	}

	queue, err := maintenance.NewQueue(store.DB(), policy)
	if err != nil {
		logger.Fatal("failed to create job queue", "error", err)
	}

	var uploader *maintenance.BackupUploader
	if cfg.Storage.Enabled {
		uploader, err = maintenance.NewBackupUploader(
			cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey,
			cfg.Storage.Bucket, cfg.Storage.UseSSL)
		if err != nil {
			logger.Error("failed to create backup uploader", "error", err)
		} else {
			logger.Info("backups enabled", "endpoint", cfg.Storage.Endpoint, "bucket", cfg.Storage.Bucket)
		}
	}

	runner := maintenance.NewRunner(store, decideModel, policy, uploader)
	pool := maintenance.NewPool(queue, policy, runner.Handlers())

	scheduler, err := maintenance.NewScheduler(queue, store, policy)
	if err != nil {
		logger.Fatal("failed to create scheduler", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pool.Run(ctx)
	go scheduler.Run(ctx)

	logger.Info("twind started", "owner", cfg.OwnerID, "memory", cfg.MemoryPath)

	go repl(ctx, cfg.OwnerID, eng, composer)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	cancel()
}

// repl is a development surface on stdin: plain lines are learned, lines
// prefixed with "?" are retrieval queries.
func repl(ctx context.Context, owner string, eng *engine.Engine, composer *retrieval.Composer) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		if query, ok := strings.CutPrefix(line, "?"); ok {
			result, err := composer.Retrieve(ctx, owner, strings.TrimSpace(query), 0)
			if err != nil {
				fmt.Fprintln(os.Stderr, "retrieve:", err)
				continue
			}
			for _, s := range result.Summaries {
				fmt.Printf("[summary:%s] %s\n", s.Category, s.SummaryText)
			}
			for _, r := range result.Records {
				fmt.Printf("[%s %.2f] %s\n", r.Kind, r.Importance, r.Content)
			}
			continue
		}

		for _, op := range eng.Learn(ctx, owner, line) {
			fmt.Printf("%s %s (%s)\n", op.Op, strings.Join(op.ResultIDs, ","), op.Status)
		}
	}
}
