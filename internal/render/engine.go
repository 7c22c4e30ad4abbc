package render

import (
	"context"

	"archdiagram/pkg"
)

// Engine opens render canvases. One canvas backs one diagram session.
type Engine interface {
	Open(ctx context.Context) (Canvas, error)
}

// Canvas accumulates nodes and edges until it is committed or discarded.
//
// Exactly one of Commit or Discard must be called, exactly once; both
// release every resource the canvas holds, including on a failed Commit.
type Canvas interface {
	// AddNode draws a node. Adding an existing label redraws that node
	// with the new descriptor.
	AddNode(label string, desc pkg.NodeDescriptor) error
	AddEdge(from, to string) error
	// Commit lays out the graph and writes a PNG to path.
	Commit(ctx context.Context, path string) error
	Discard()
}
