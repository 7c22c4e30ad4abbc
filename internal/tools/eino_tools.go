package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

// AddNodeTool creates the add_node tool bound to a builder using Eino's InferTool
func AddNodeTool(b Builder, typeNames []string) (tool.InvokableTool, error) {
	desc := fmt.Sprintf("Adds a new node to the diagram. 'label' is the display name of the node and must be unique. "+
		"'node_type' must be one of: %s. Returns the unique ID of the created node (its label).",
		strings.Join(typeNames, ", "))

	return utils.InferTool(AddNodeToolName, desc,
		func(ctx context.Context, args AddNodeArgs) (string, error) {
			out, err := AddNode(ctx, b, args)
			return report(AddNodeToolName, out, err), nil
		})
}

// LinkNodesTool creates the link_nodes tool bound to a builder
func LinkNodesTool(b Builder) (tool.InvokableTool, error) {
	return utils.InferTool(LinkNodesToolName,
		"Connects two nodes with a directed arrow. Use the unique IDs (labels) returned by the 'add_node' tool.",
		func(ctx context.Context, args LinkNodesArgs) (string, error) {
			out, err := LinkNodes(ctx, b, args)
			return report(LinkNodesToolName, out, err), nil
		})
}

// renderTool ignores its arguments; some models send an empty string
// instead of an empty JSON object for parameterless tools.
type renderTool struct {
	b Builder
}

// RenderTool creates the render_diagram tool bound to a builder
func RenderTool(b Builder) tool.InvokableTool {
	return &renderTool{b: b}
}

func (t *renderTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: RenderToolName,
		Desc: "Finalizes the diagram creation. This MUST be the last tool called. " +
			"Returns the path to the generated image file.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	}, nil
}

func (t *renderTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...tool.Option) (string, error) {
	out, err := Render(ctx, t.b)
	return report(RenderToolName, out, err), nil
}

// NewEinoTools returns the three diagram tools as BaseTool instances
func NewEinoTools(b Builder, typeNames []string) ([]tool.BaseTool, error) {
	addNode, err := AddNodeTool(b, typeNames)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", AddNodeToolName, err)
	}

	linkNodes, err := LinkNodesTool(b)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s tool: %w", LinkNodesToolName, err)
	}

	return []tool.BaseTool{addNode, linkNodes, RenderTool(b)}, nil
}
