package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"archdiagram/internal/logger"
	"archdiagram/internal/tools"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
)

// Options configures an Agent
type Options struct {
	MaxStep   int
	NodeTypes []string
}

// Agent drives the diagram tools with a tool-calling chat model
type Agent struct {
	model     model.ToolCallingChatModel
	template  prompt.ChatTemplate
	maxStep   int
	nodeTypes string
}

// New creates an Agent around a chat model
func New(cm model.ToolCallingChatModel, opts Options) (*Agent, error) {
	if cm == nil {
		return nil, errors.New("chat model is required")
	}
	if opts.MaxStep <= 0 {
		opts.MaxStep = 60
	}
	return &Agent{
		model:     cm,
		template:  newDiagramTemplate(),
		maxStep:   opts.MaxStep,
		nodeTypes: strings.Join(opts.NodeTypes, ", "),
	}, nil
}

// Drive runs one tool-calling loop over userPrompt. Tools run one at a time and
// the loop stops as soon as render_diagram has been called. The returned text
// is the driver's final answer, normally the rendered file path.
func (a *Agent) Drive(ctx context.Context, userPrompt string, diagramTools []tool.BaseTool) (string, error) {
	start := time.Now()

	messages, err := a.template.Format(ctx, map[string]any{
		"available_nodes": a.nodeTypes,
		"input":           userPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("error formatting prompt: %w", err)
	}

	ra, err := react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: a.model,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools:               diagramTools,
			ExecuteSequentially: true,
		},
		MaxStep:            a.maxStep,
		ToolReturnDirectly: map[string]struct{}{tools.RenderToolName: {}},
	})
	if err != nil {
		return "", fmt.Errorf("error creating react agent: %w", err)
	}

	out, err := ra.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("error running agent: %w", err)
	}

	answer := strings.TrimSpace(out.Content)
	logger.Debug().
		Str("answer", answer).
		Dur("elapsed", time.Since(start)).
		Msg("Agent finished")
	return answer, nil
}
