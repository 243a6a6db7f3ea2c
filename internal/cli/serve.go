package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lorekeep/lorekeep/internal/agent"
	"github.com/lorekeep/lorekeep/internal/config"
	"github.com/lorekeep/lorekeep/internal/delivery"
	"github.com/lorekeep/lorekeep/internal/gateway"
	"github.com/lorekeep/lorekeep/internal/llm"
	"github.com/lorekeep/lorekeep/internal/retrieval"
	"github.com/lorekeep/lorekeep/internal/store"
	"github.com/lorekeep/lorekeep/internal/stream"
	"github.com/lorekeep/lorekeep/internal/tool"
	"github.com/lorekeep/lorekeep/internal/tools"
	"github.com/lorekeep/lorekeep/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the lorekeep gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if issues := config.Validate(&cfg); len(issues) > 0 {
				for _, issue := range issues {
					log.Error().Str("path", issue.Path).Msg(issue.Message)
				}
				return fmt.Errorf("invalid configuration (%d issues)", len(issues))
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	db, err := store.Open(cfg.Store.Path, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	client := llm.NewOpenAIClient(
		cfg.Providers.Completion.BaseURL,
		cfg.Providers.Completion.APIKey,
		cfg.Providers.Completion.Model,
	)

	hub := delivery.NewHub(log)
	synth := stream.NewSynthesizer(db, hub, log)

	var reranker llm.RerankClient
	if cfg.Providers.Rerank.BaseURL != "" {
		reranker = llm.NewHTTPReranker(
			cfg.Providers.Rerank.BaseURL,
			cfg.Providers.Rerank.APIKey,
			cfg.Providers.Rerank.Model,
		)
	}

	var assembler *retrieval.Assembler
	if cfg.Providers.Embedding.BaseURL != "" {
		embedder := llm.NewHTTPEmbedder(
			cfg.Providers.Embedding.BaseURL,
			cfg.Providers.Embedding.APIKey,
			cfg.Providers.Embedding.Model,
		)
		assembler = retrieval.NewAssembler(embedder, db, reranker, log).
			WithTopK(cfg.Retrieval.TopK).
			WithRerankTopN(cfg.Providers.Rerank.TopN)
	}

	registry := tool.NewRegistry(log)
	if assembler != nil {
		registry.Register(tools.NewSearchDocuments(assembler))
		registry.Register(tools.NewReadChunks(db))
		registry.Register(tools.NewListSources(db))
	}
	if cfg.WebSearch.BaseURL != "" {
		registry.Register(tools.NewWebSearch(web.NewSearchClient(cfg.WebSearch.BaseURL, cfg.WebSearch.APIKey)))
		registry.Register(tools.NewFetchWebpage(web.NewFetcher()))
	}
	registry.Register(tools.NewFinalAnswer())

	deps := agent.Deps{
		Client:             client,
		Model:              cfg.Providers.Completion.Model,
		Registry:           registry,
		Store:              db,
		Pub:                hub,
		Synth:              synth,
		Log:                log,
		MaxContextMessages: cfg.Agent.MaxContextMessages,
		DisableHyDE:        !cfg.Retrieval.HyDEEnabled(),
	}
	if assembler != nil {
		deps.Retriever = assembler
	}

	factory := agent.NewFactory(deps, agent.NewStaticGate(cfg.Agent.Features))
	svc := agent.NewService(deps, factory, time.Duration(cfg.Agent.TurnTimeoutSeconds)*time.Second)

	srv := gateway.New(cfg.Server, svc, hub, db, db, log)
	log.Info().
		Str("model", cfg.Providers.Completion.Model).
		Bool("retrieval", assembler != nil).
		Bool("web", cfg.WebSearch.BaseURL != "").
		Msg("lorekeep starting")
	return srv.Start(ctx)
}
