package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"archdiagram/internal/logger"
	"archdiagram/pkg"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

var errEmptyImage = errors.New("renderer produced an empty image")

// labelEscaper keeps graphviz from reading user text as escape sequences
// such as \N or \G.
var labelEscaper = strings.NewReplacer(`\`, `\\`)

// nodeLabel is the escString drawn for a node: the user label over the type name
func nodeLabel(label, typeName string) string {
	return labelEscaper.Replace(label) + `\n` + typeName
}

// GraphvizOptions controls the layout of rendered diagrams
type GraphvizOptions struct {
	RankDir  string // LR, TB, RL, BT
	FontName string
}

// GraphvizEngine renders diagrams to PNG with the graphviz dot layout
type GraphvizEngine struct {
	opts GraphvizOptions
}

// NewGraphvizEngine creates a graphviz backed engine
func NewGraphvizEngine(opts GraphvizOptions) *GraphvizEngine {
	if opts.RankDir == "" {
		opts.RankDir = "LR"
	}
	if opts.FontName == "" {
		opts.FontName = "Helvetica"
	}
	return &GraphvizEngine{opts: opts}
}

// Open creates a fresh graphviz context and an empty directed graph
func (e *GraphvizEngine) Open(ctx context.Context) (Canvas, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create graphviz context: %w", err)
	}

	graph, err := gv.Graph()
	if err != nil {
		gv.Close()
		return nil, fmt.Errorf("failed to create graph: %w", err)
	}
	graph.SetRankDir(cgraph.RankDir(e.opts.RankDir))

	return &graphvizCanvas{
		gv:       gv,
		graph:    graph,
		fontName: e.opts.FontName,
		nodes:    make(map[string]*cgraph.Node),
	}, nil
}

type graphvizCanvas struct {
	gv       *graphviz.Graphviz
	graph    *cgraph.Graph
	fontName string
	nodes    map[string]*cgraph.Node
	edges    int
}

func (c *graphvizCanvas) AddNode(label string, desc pkg.NodeDescriptor) error {
	node, ok := c.nodes[label]
	if !ok {
		var err error
		node, err = c.graph.CreateNodeByName(label)
		if err != nil {
			return fmt.Errorf("failed to create node %q: %w", label, err)
		}
		c.nodes[label] = node
	}

	node.SetLabel(nodeLabel(label, desc.Name))
	node.SetShape(cgraph.Shape(desc.Shape))
	node.SetStyle(cgraph.NodeStyle("filled"))
	node.SetFillColor(desc.FillColor)
	node.SetFontName(c.fontName)
	return nil
}

func (c *graphvizCanvas) AddEdge(from, to string) error {
	src, ok := c.nodes[from]
	if !ok {
		return fmt.Errorf("edge source %q is not on the canvas", from)
	}
	dst, ok := c.nodes[to]
	if !ok {
		return fmt.Errorf("edge target %q is not on the canvas", to)
	}

	// Edge names must be unique for parallel edges to survive
	c.edges++
	if _, err := c.graph.CreateEdgeByName(fmt.Sprintf("e%d", c.edges), src, dst); err != nil {
		return fmt.Errorf("failed to create edge %s -> %s: %w", from, to, err)
	}
	return nil
}

func (c *graphvizCanvas) Commit(ctx context.Context, path string) error {
	defer c.Discard()

	start := time.Now()
	var buf bytes.Buffer
	if err := c.gv.Render(ctx, c.graph, graphviz.PNG, &buf); err != nil {
		return fmt.Errorf("failed to render %s: %w", path, err)
	}
	if buf.Len() == 0 {
		return fmt.Errorf("failed to render %s: %w", path, errEmptyImage)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	logger.Debug().
		Str("path", path).
		Int("nodes", len(c.nodes)).
		Int("edges", c.edges).
		Str("size", humanize.Bytes(uint64(buf.Len()))).
		Dur("render_time", time.Since(start)).
		Msg("Diagram rendered")
	return nil
}

func (c *graphvizCanvas) Discard() {
	if c.graph != nil {
		if err := c.graph.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close graphviz graph")
		}
		c.graph = nil
	}
	if c.gv != nil {
		c.gv.Close()
		c.gv = nil
	}
}
