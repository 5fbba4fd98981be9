package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/synapse/internal/config"
	"github.com/lazypower/synapse/internal/engine"
	"github.com/lazypower/synapse/internal/store"
)

var (
	recallTopK    int
	recallMaxHops int
)

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Recall memories associated with a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRecall,
}

func init() {
	recallCmd.Flags().IntVar(&recallTopK, "top-k", -1, "maximum results (core nodes excluded)")
	recallCmd.Flags().IntVar(&recallMaxHops, "max-hops", 0, "activation spread depth")
}

func runRecall(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	cfg, err := config.Load(defaultConfigPath())
	if err != nil {
		return err
	}
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

	eng := engine.New(db, nil, nil)
	configureRecallEmbedder(eng, db, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	results, err := eng.Activate(ctx, query, recallTopK, recallMaxHops)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("nothing recalled")
		return nil
	}

	for _, r := range results {
		fmt.Printf("%.3f  [%s] %s", r.Score, r.Type, r.Label)
		if r.Category == store.CategoryCore {
			fmt.Print("  (core)")
		}
		fmt.Println()
		if r.Body != "" {
			for _, line := range strings.Split(r.Body, "\n") {
				fmt.Printf("       %s\n", line)
			}
		}
		if len(r.Connections) > 0 {
			fmt.Printf("       via %s\n", strings.Join(r.Connections, ", "))
		}
	}
	return nil
}

// configureRecallEmbedder mirrors the serve-time selection but stays quiet;
// recall output should be just the results.
func configureRecallEmbedder(eng *engine.Engine, db *store.DB, cfg config.Config) {
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
		return
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		eng.SetEmbedder(engine.NewOpenAIEmbedder(key, ""))
		return
	}
	if emb, err := engine.NewTFIDFEmbedder(db, 512); err == nil {
		eng.SetEmbedder(emb)
	}
}
