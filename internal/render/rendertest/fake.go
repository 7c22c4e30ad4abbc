// Package rendertest provides an in-memory render engine for tests.
package rendertest

import (
	"context"
	"errors"
	"os"
	"sync"

	"archdiagram/internal/render"
	"archdiagram/pkg"
)

// PNGHeader is written at the start of every committed file
const PNGHeader = "\x89PNG\r\n\x1a\n"

// Engine records every canvas it opens
type Engine struct {
	OpenErr   error
	CommitErr error
	// EmptyOutput makes Commit succeed but leave a zero-byte file
	EmptyOutput bool

	mu       sync.Mutex
	canvases []*Canvas
}

func (e *Engine) Open(ctx context.Context) (render.Canvas, error) {
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	c := &Canvas{Nodes: make(map[string]pkg.NodeDescriptor), commitErr: e.CommitErr, empty: e.EmptyOutput}

	e.mu.Lock()
	e.canvases = append(e.canvases, c)
	e.mu.Unlock()
	return c, nil
}

// Canvases returns the canvases opened so far
func (e *Engine) Canvases() []*Canvas {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Canvas(nil), e.canvases...)
}

// Canvas is a render.Canvas that writes a tiny fake PNG on Commit
type Canvas struct {
	Nodes    map[string]pkg.NodeDescriptor
	Edges    []pkg.Edge
	Commits  int
	Discards int

	commitErr error
	empty     bool
}

func (c *Canvas) AddNode(label string, desc pkg.NodeDescriptor) error {
	c.Nodes[label] = desc
	return nil
}

func (c *Canvas) AddEdge(from, to string) error {
	if _, ok := c.Nodes[from]; !ok {
		return errors.New("missing source")
	}
	if _, ok := c.Nodes[to]; !ok {
		return errors.New("missing target")
	}
	c.Edges = append(c.Edges, pkg.Edge{From: from, To: to})
	return nil
}

func (c *Canvas) Commit(ctx context.Context, path string) error {
	c.Commits++
	if c.commitErr != nil {
		// leave a partial file behind like a crashed encoder would
		_ = os.WriteFile(path, []byte("partial"), 0o644)
		return c.commitErr
	}
	if c.empty {
		return os.WriteFile(path, nil, 0o644)
	}
	return os.WriteFile(path, []byte(PNGHeader+"fake"), 0o644)
}

func (c *Canvas) Discard() {
	c.Discards++
}

// Teardowns counts Commit and Discard calls together
func (c *Canvas) Teardowns() int {
	return c.Commits + c.Discards
}
