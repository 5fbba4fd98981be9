package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/synapse/internal/config"
	"github.com/lazypower/synapse/internal/engine"
	"github.com/lazypower/synapse/internal/llm"
	"github.com/lazypower/synapse/internal/server"
	"github.com/lazypower/synapse/internal/store"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", defaultConfigPath(), "path to config file")
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "synapse.yaml"
	}
	return filepath.Join(home, ".synapse", "config.yaml")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return err
	}

	// Env keys override file config.
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		cfg.LLM.AnthropicKey = key
		if cfg.LLM.Provider == "" {
			cfg.LLM.Provider = "anthropic"
		}
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
		if cfg.LLM.Provider == "" {
			cfg.LLM.Provider = "openai"
		}
	}

	zl, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer zl.Sync()
	log := zl.Sugar()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	var llmClient llm.Client
	if c, err := llm.NewClient(cfg.LLM); err != nil {
		log.Warnw("LLM not configured, ingestion and summarization disabled", "err", err)
	} else {
		llmClient = c
		log.Infow("llm configured", "provider", cfg.LLM.Provider, "model", cfg.LLM.Model)
	}

	eng := engine.New(db, llmClient, log)
	// NewSegmenter falls back to the default gap for non-positive values.
	eng.Sessions = engine.NewSegmenter(db, time.Duration(cfg.Memory.SessionGapMinutes)*time.Minute)
	configureEmbedder(eng, db, cfg, log)

	// Background summarizer closes out idle sessions on a schedule.
	var scheduler *cron.Cron
	if llmClient != nil && cfg.Memory.SummarizeSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.Memory.SummarizeSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			wrote, err := eng.SummarizePending(ctx, cfg.Memory.MinSessionMessages)
			if err != nil {
				log.Warnw("scheduled summarization failed", "err", err)
			} else if wrote {
				log.Infow("scheduled summarization completed")
			}
		})
		if err != nil {
			return fmt.Errorf("schedule summarizer: %w", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	srv := server.New(db, eng, log, VersionString(), cfg.Memory.MinSessionMessages)
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Infow("synapse serving", "addr", addr, "db", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-done
	log.Infow("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}

// configureEmbedder picks the best available embedding provider: a local
// Ollama if reachable, then OpenAI if a key is present, then the TF-IDF
// fallback built from the stored corpus.
func configureEmbedder(eng *engine.Engine, db *store.DB, cfg config.Config, log *zap.SugaredLogger) {
	ollamaURL := cfg.LLM.OllamaURL
	if ollamaURL == "" {
		ollamaURL = "http://localhost:11434"
	}
	embeddingModel := cfg.LLM.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = "nomic-embed-text"
	}

	if engine.ProbeOllama(ollamaURL, embeddingModel) {
		eng.SetEmbedder(engine.NewOllamaEmbedder(ollamaURL, embeddingModel, 768))
		log.Infow("embedder configured", "provider", "ollama", "model", embeddingModel)
		return
	}
	if cfg.LLM.OpenAIKey != "" {
		emb := engine.NewOpenAIEmbedder(cfg.LLM.OpenAIKey, "")
		eng.SetEmbedder(emb)
		log.Infow("embedder configured", "provider", "openai", "model", emb.Model())
		return
	}

	emb, err := engine.NewTFIDFEmbedder(db, 512)
	if err != nil {
		log.Warnw("tfidf embedder init failed, recall degraded to core nodes", "err", err)
		return
	}
	eng.SetEmbedder(emb)
	log.Infow("embedder configured", "provider", "tfidf")
}
