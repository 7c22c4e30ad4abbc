// Command diagram-mcp exposes the diagram tools over MCP on stdio.
// One process serves one diagram session; the client drives the tools and
// render_diagram writes the image and closes the session.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"archdiagram/internal/config"
	"archdiagram/internal/diagram"
	"archdiagram/internal/logger"
	"archdiagram/internal/render"
	"archdiagram/internal/tools"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// stdout carries the protocol
	if cfg.Log.Output == "stdout" {
		cfg.Log.Output = "stderr"
	}
	closer, err := logger.InitLogger(cfg.Log)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize logger")
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.Error().Err(err).Msg("MCP server stopped with error")
		os.Exit(1)
	}
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

	s, err := diagram.WithSession(ctx, store, func(ctx context.Context, s *diagram.Session) error {
		server := mcp.NewServer(&mcp.Implementation{Name: "diagram-mcp", Version: version}, nil)
		tools.RegisterMCPTools(server, s, diagram.TypeNames())

		logger.Info().Str("session_id", s.ID()).Str("path", s.Path()).Msg("MCP diagram session opened")
		return server.Run(ctx, &mcp.StdioTransport{})
	})
	if s != nil {
		logger.Info().
			Str("session_id", s.ID()).
			Bool("finalized", s.Finalized()).
			Int("nodes", s.NodeCount()).
			Int("edges", s.EdgeCount()).
			Msg("MCP diagram session closed")
	}
	if ctx.Err() != nil {
		return nil
	}
	return err
}
