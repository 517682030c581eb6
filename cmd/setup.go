package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pluma0/pluma/db"
	"github.com/pluma0/pluma/internal/augment"
	"github.com/pluma0/pluma/internal/augment/sources"
	"github.com/pluma0/pluma/internal/config"
	"github.com/pluma0/pluma/internal/convo"
	"github.com/pluma0/pluma/internal/intent"
	"github.com/pluma0/pluma/internal/knowledge"
	"github.com/pluma0/pluma/internal/log"
	"github.com/pluma0/pluma/internal/pipeline"
	"github.com/pluma0/pluma/internal/terminology"
)

// app holds the wired pipeline and the resources behind it.
type app struct {
	Pipeline *pipeline.Pipeline
	Store    *knowledge.Store
	pool     *pgxpool.Pool
}

// Close releases the database pool.
func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// setup wires the full retrieval pipeline from configuration. An unreachable
// knowledge base is a fatal setup error: the service must refuse to start
// rather than fail every request.
func setup(ctx context.Context, cfg *config.Config, logger log.Logger) (*app, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("initializing genkit")
	}
	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	store, err := knowledge.NewStore(knowledge.NewPGQuerier(pool), embedder, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("knowledge base unreachable: %w", err)
	}

	table, err := intent.NewTable(intent.DefaultSpecs())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("building intent table: %w", err)
	}
	classifier := intent.NewGenkitClassifier(g, "googleai/"+cfg.ModelName)
	router := intent.NewRouter(table, classifier, cfg.Pipeline.MinSignalMatches, cfg.Pipeline.ClassifierThreshold, logger)

	resolver := convo.NewResolver(cfg.Pipeline.HistoryWindow, logger)

	orchestrator := augment.NewOrchestrator(
		buildSources(cfg, logger),
		store,
		augment.Config{
			Threshold:  cfg.Pipeline.AugmentThreshold,
			MinYear:    cfg.Pipeline.MinYear,
			MaxResults: cfg.Pipeline.MaxResults,
			Timeout:    cfg.Pipeline.SourceTimeout(),
		},
		logger,
	)

	injector, err := buildInjector(cfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}

	p, err := pipeline.New(resolver, router, store, orchestrator, injector, cfg.Pipeline.TopK, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("wiring pipeline: %w", err)
	}

	return &app{Pipeline: p, Store: store, pool: pool}, nil
}

// buildSources instantiates the enabled external providers in configuration
// order. The providers share one HTTP client; rate limits are per provider.
func buildSources(cfg *config.Config, logger log.Logger) []augment.Source {
	client := &http.Client{Timeout: cfg.Pipeline.SourceTimeout()}

	var out []augment.Source
	for _, name := range cfg.Sources.Enabled {
		switch name {
		case "europepmc":
			out = append(out, sources.NewEuropePMC(client, logger))
		case "crossref":
			out = append(out, sources.NewCrossref(client, logger))
		case "semanticscholar":
			out = append(out, sources.NewSemanticScholar(client, cfg.Sources.SemanticScholarAPIKey, logger))
		default:
			// Validate() already rejected unknown names.
			logger.Warn("skipping unknown source", "source", name)
		}
	}
	return out
}

// buildInjector loads the terminology catalog. A missing or broken catalog
// file degrades to the embedded default; that failing too degrades to an
// empty index and empty enrichment blocks.
func buildInjector(cfg *config.Config, logger log.Logger) (*terminology.Injector, error) {
	var (
		terms []terminology.Term
		err   error
	)
	if cfg.TerminologyPath != "" {
		terms, err = terminology.LoadFile(cfg.TerminologyPath)
		if err != nil {
			logger.Warn("terminology catalog unreadable, using embedded default",
				"path", cfg.TerminologyPath, "error", err)
		}
	}
	if terms == nil {
		terms, err = terminology.LoadDefault()
		if err != nil {
			logger.Warn("embedded terminology catalog unavailable, enrichment disabled", "error", err)
			return terminology.NewInjector(nil, cfg.Pipeline.TokenBudget, logger), nil
		}
	}
	return terminology.NewInjector(terminology.NewIndex(terms), cfg.Pipeline.TokenBudget, logger), nil
}
