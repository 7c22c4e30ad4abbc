package generator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"archdiagram/internal/diagram"
	"archdiagram/internal/logger"
	"archdiagram/internal/tools"
	"archdiagram/pkg"

	"github.com/cloudwego/eino/components/tool"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

var (
	// ErrEmptyInput is returned for a blank prompt; no session is opened
	ErrEmptyInput = errors.New("prompt cannot be empty")
	// ErrDriverIncomplete means the driver stopped without producing a diagram file
	ErrDriverIncomplete = errors.New("agent failed to generate a valid diagram file")
)

// Driver turns a prompt into tool calls
type Driver interface {
	Drive(ctx context.Context, prompt string, tools []tool.BaseTool) (string, error)
}

// History records generation outcomes
type History interface {
	Save(ctx context.Context, rec pkg.GenerationRecord) error
}

// Options configures a Generator
type Options struct {
	MaxConcurrent int64
	Timeout       time.Duration
}

// Result describes a rendered diagram. The caller owns the file at Path.
type Result struct {
	Path         string
	SessionID    string
	Nodes        []pkg.Node
	Edges        []pkg.Edge
	Duration     time.Duration
	DriverOutput string
}

// Generator runs one isolated diagram session per prompt
type Generator struct {
	store   *diagram.Store
	driver  Driver
	history History
	sem     *semaphore.Weighted
	timeout time.Duration
}

// New creates a Generator. history may be nil.
func New(store *diagram.Store, driver Driver, history History, opts Options) (*Generator, error) {
	if store == nil {
		return nil, errors.New("diagram store is required")
	}
	if driver == nil {
		return nil, errors.New("driver is required")
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Generator{
		store:   store,
		driver:  driver,
		history: history,
		sem:     semaphore.NewWeighted(opts.MaxConcurrent),
		timeout: opts.Timeout,
	}, nil
}

// Generate builds a diagram for prompt. On success the rendered file exists
// at Result.Path; on any error no file is left behind.
func (g *Generator) Generate(ctx context.Context, prompt string) (*Result, error) {
	start := time.Now()
	rec := pkg.GenerationRecord{
		ID:        uuid.NewString(),
		Prompt:    prompt,
		CreatedAt: start.UTC(),
	}

	if strings.TrimSpace(prompt) == "" {
		rec.Status = pkg.GenerationRejected
		rec.Error = ErrEmptyInput.Error()
		g.record(ctx, rec)
		return nil, ErrEmptyInput
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a generation slot: %w", err)
	}
	defer g.sem.Release(1)

	// a panicking driver still leaves a failed record behind
	defer func() {
		if r := recover(); r != nil {
			rec.Status = pkg.GenerationFailed
			rec.Error = fmt.Sprintf("panic: %v", r)
			rec.DurationMs = time.Since(start).Milliseconds()
			g.record(context.WithoutCancel(ctx), rec)
			logger.Error().Str("request_id", rec.ID).Interface("panic", r).Msg("Diagram generation panicked")
			panic(r)
		}
	}()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	result, err := g.generate(ctx, prompt)
	rec.DurationMs = time.Since(start).Milliseconds()
	if result != nil {
		rec.NodeCount = len(result.Nodes)
		rec.EdgeCount = len(result.Edges)
	}

	if err != nil {
		rec.Status = pkg.GenerationFailed
		rec.Error = err.Error()
		g.record(context.WithoutCancel(ctx), rec)
		logger.Error().Err(err).Str("request_id", rec.ID).Msg("Diagram generation failed")
		return nil, err
	}

	rec.Status = pkg.GenerationSucceeded
	g.record(context.WithoutCancel(ctx), rec)
	result.Duration = time.Since(start)

	logger.Info().
		Str("request_id", rec.ID).
		Str("session_id", result.SessionID).
		Int("nodes", rec.NodeCount).
		Int("edges", rec.EdgeCount).
		Dur("duration", result.Duration).
		Msg("Diagram generated")
	return result, nil
}

func (g *Generator) generate(ctx context.Context, prompt string) (*Result, error) {
	var output string
	s, err := diagram.WithSession(ctx, g.store, func(ctx context.Context, s *diagram.Session) error {
		diagramTools, err := tools.NewEinoTools(s, diagram.TypeNames())
		if err != nil {
			return err
		}
		output, err = g.driver.Drive(ctx, prompt, diagramTools)
		return err
	})
	if s == nil {
		return nil, err
	}

	result := &Result{
		Path:         s.Path(),
		SessionID:    s.ID(),
		Nodes:        s.Nodes(),
		Edges:        s.Edges(),
		DriverOutput: output,
	}

	if err == nil {
		err = checkOutput(s, output)
	}
	if err != nil {
		// Release keeps finalized files; this request will not hand it out
		if s.Finalized() {
			if rmErr := os.Remove(s.Path()); rmErr != nil && !os.IsNotExist(rmErr) {
				logger.Warn().Err(rmErr).Str("path", s.Path()).Msg("Failed to remove diagram file")
			}
		}
		return result, err
	}
	return result, nil
}

// checkOutput accepts a session only when it rendered a file and the
// driver's final answer names that file.
func checkOutput(s *diagram.Session, output string) error {
	if err := s.FinalizeErr(); err != nil {
		return err
	}
	if !s.Finalized() {
		return ErrDriverIncomplete
	}
	if strings.TrimSpace(output) != s.Path() {
		logger.Warn().Str("driver_output", output).Str("path", s.Path()).Msg("Driver answer does not name the rendered diagram")
		return ErrDriverIncomplete
	}
	info, err := os.Stat(s.Path())
	if err != nil || info.IsDir() {
		return ErrDriverIncomplete
	}
	return nil
}

func (g *Generator) record(ctx context.Context, rec pkg.GenerationRecord) {
	if g.history == nil {
		return
	}
	if err := g.history.Save(ctx, rec); err != nil {
		logger.Warn().Err(err).Str("request_id", rec.ID).Msg("Failed to record generation history")
	}
}
