package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"archdiagram/internal/logger"
)

// Tool names exposed to drivers
const (
	AddNodeToolName   = "add_node"
	LinkNodesToolName = "link_nodes"
	RenderToolName    = "render_diagram"
)

// Builder is the capability a driver mutates a diagram through.
// *diagram.Session implements it.
type Builder interface {
	AddNodeReplacing(label, typeName string) (string, bool, error)
	LinkNodes(from, to string) error
	Finalize(ctx context.Context) (string, error)
}

var errMissingArgument = errors.New("missing required argument")

// AddNodeArgs are the arguments of add_node
type AddNodeArgs struct {
	Label    string `json:"label" jsonschema:"description=Display name of the node. It must be unique and is used as the node ID."`
	NodeType string `json:"node_type" jsonschema:"description=Type of the node. Must be one of the supported node types."`
}

// LinkNodesArgs are the arguments of link_nodes
type LinkNodesArgs struct {
	FromNodeID string `json:"from_node_id" jsonschema:"description=Label of the node the arrow starts from."`
	ToNodeID   string `json:"to_node_id" jsonschema:"description=Label of the node the arrow points to."`
}

// AddNode validates the arguments and adds a node through the builder.
// It returns the label to use as the node ID.
func AddNode(ctx context.Context, b Builder, args AddNodeArgs) (string, error) {
	if args.Label == "" {
		return "", fmt.Errorf("%w: label", errMissingArgument)
	}
	if args.NodeType == "" {
		return "", fmt.Errorf("%w: node_type", errMissingArgument)
	}

	ref, replaced, err := b.AddNodeReplacing(args.Label, args.NodeType)
	if err != nil {
		return "", err
	}
	if replaced {
		return fmt.Sprintf("%s (replaced the existing node with this label)", ref), nil
	}
	return ref, nil
}

// LinkNodes validates the arguments and links two nodes through the builder
func LinkNodes(ctx context.Context, b Builder, args LinkNodesArgs) (string, error) {
	if args.FromNodeID == "" {
		return "", fmt.Errorf("%w: from_node_id", errMissingArgument)
	}
	if args.ToNodeID == "" {
		return "", fmt.Errorf("%w: to_node_id", errMissingArgument)
	}

	if err := b.LinkNodes(args.FromNodeID, args.ToNodeID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Linked %s -> %s", args.FromNodeID, args.ToNodeID), nil
}

// Render finalizes the diagram and returns the absolute path of the image
func Render(ctx context.Context, b Builder) (string, error) {
	return b.Finalize(ctx)
}

// report converts an action result into the string convention drivers
// expect from tool calls. Errors are passed through verbatim.
func report(tool string, out string, err error) string {
	if err != nil {
		logger.Warn().Str("tool", tool).Err(err).Msg("Tool call rejected")
		return "Error: " + err.Error()
	}
	logger.Debug().Str("tool", tool).Str("result", out).Msg("Tool call succeeded")
	return out
}

// IsErrorResult reports whether a tool result string carries an error
func IsErrorResult(result string) bool {
	return strings.HasPrefix(result, "Error: ")
}
