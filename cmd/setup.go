package cmd

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/galileo0/galileo/db"
	"github.com/galileo0/galileo/internal/config"
	"github.com/galileo0/galileo/internal/database"
	"github.com/galileo0/galileo/internal/log"
	"github.com/galileo0/galileo/internal/rag"
)

// runtime bundles the pieces every database-backed command needs.
type runtime struct {
	cfg    *config.Config
	logger log.Logger
	pool   *pgxpool.Pool
}

// openRuntime loads configuration, applies pending migrations and opens the
// connection pool. The caller must Close().
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger()

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logger, pool: pool}, nil
}

func (r *runtime) Close() {
	r.pool.Close()
}

// initGenkit initializes Genkit with the Google AI plugin.
func initGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit")
	}
	return g, nil
}

// openStore builds the vector store over the runtime's pool with the
// configured embedder and metric.
func (r *runtime) openStore(g *genkit.Genkit) (*rag.Store, error) {
	metric, err := rag.ParseMetric(r.cfg.Metric)
	if err != nil {
		return nil, err
	}
	embedder := googlegenai.GoogleAIEmbedder(g, r.cfg.EmbedderModel)
	return rag.New(r.pool, embedder, metric, r.logger), nil
}
