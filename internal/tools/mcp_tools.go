package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCP argument structs. The go-sdk schema inference takes the whole
// jsonschema tag as the description.

type mcpAddNodeArgs struct {
	Label    string `json:"label" jsonschema:"Display name of the node. It must be unique and is used as the node ID"`
	NodeType string `json:"node_type" jsonschema:"Type of the node. Must be one of the supported node types"`
}

type mcpLinkNodesArgs struct {
	FromNodeID string `json:"from_node_id" jsonschema:"Label of the node the arrow starts from"`
	ToNodeID   string `json:"to_node_id" jsonschema:"Label of the node the arrow points to"`
}

type mcpRenderArgs struct{}

// RegisterMCPTools registers add_node, link_nodes and render_diagram on an
// MCP server. Every call goes to the same builder.
func RegisterMCPTools(server *mcp.Server, b Builder, typeNames []string) {
	mcp.AddTool(server, &mcp.Tool{
		Name: AddNodeToolName,
		Description: fmt.Sprintf("Adds a new node to the diagram. 'node_type' must be one of: %s. "+
			"Returns the unique ID of the created node (its label).", strings.Join(typeNames, ", ")),
	}, func(ctx context.Context, req *mcp.CallToolRequest, args mcpAddNodeArgs) (*mcp.CallToolResult, any, error) {
		out, err := AddNode(ctx, b, AddNodeArgs{Label: args.Label, NodeType: args.NodeType})
		return toolResult(AddNodeToolName, out, err), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        LinkNodesToolName,
		Description: "Connects two nodes with a directed arrow. Use the unique IDs (labels) returned by add_node.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args mcpLinkNodesArgs) (*mcp.CallToolResult, any, error) {
		out, err := LinkNodes(ctx, b, LinkNodesArgs{FromNodeID: args.FromNodeID, ToNodeID: args.ToNodeID})
		return toolResult(LinkNodesToolName, out, err), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        RenderToolName,
		Description: "Finalizes the diagram. This MUST be the last tool called. Returns the path to the generated image file.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args mcpRenderArgs) (*mcp.CallToolResult, any, error) {
		out, err := Render(ctx, b)
		return toolResult(RenderToolName, out, err), nil, nil
	})
}

func toolResult(tool, out string, err error) *mcp.CallToolResult {
	text := report(tool, out, err)
	if err != nil {
		return errorResult(text)
	}
	return textResult(text)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
