package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"archdiagram/internal/agent"
	"archdiagram/internal/api"
	"archdiagram/internal/config"
	"archdiagram/internal/diagram"
	"archdiagram/internal/generator"
	"archdiagram/internal/logger"
	"archdiagram/internal/render"
	"archdiagram/internal/storage"

	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	closer, err := logger.InitLogger(cfg.Log)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("Server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	engine := render.NewGraphvizEngine(render.GraphvizOptions{
		RankDir:  cfg.Diagram.RankDir,
		FontName: cfg.Diagram.FontName,
	})
	store, err := diagram.NewStore(engine, cfg.Diagram.OutputDir)
	if err != nil {
		return err
	}

	history, err := storage.NewHistoryStore(ctx, cfg.History)
	if err != nil {
		return err
	}
	defer history.Close()

	chatModel, err := agent.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		return err
	}
	driver, err := agent.New(chatModel, agent.Options{
		MaxStep:   cfg.Agent.MaxStep,
		NodeTypes: diagram.TypeNames(),
	})
	if err != nil {
		return err
	}

	gen, err := generator.New(store, driver, history, generator.Options{
		MaxConcurrent: cfg.Agent.MaxConcurrent,
		Timeout:       cfg.Agent.Timeout,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewRouter(api.NewHandler(gen, history)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", cfg.Server.Addr).
			Str("provider", cfg.LLM.Provider).
			Str("model", cfg.LLM.Model).
			Str("history", cfg.History.Backend).
			Str("output_dir", store.Dir()).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
