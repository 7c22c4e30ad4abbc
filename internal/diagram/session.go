package diagram

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"archdiagram/internal/logger"
	"archdiagram/internal/render"
	"archdiagram/pkg"

	"github.com/google/uuid"
)

// Store opens diagram sessions against one render engine and output directory
type Store struct {
	engine render.Engine
	dir    string
}

// NewStore creates a session store. An empty dir means os.TempDir().
func NewStore(engine render.Engine, dir string) (*Store, error) {
	if engine == nil {
		return nil, fmt.Errorf("render engine cannot be nil")
	}
	if dir == "" {
		dir = os.TempDir()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output dir %q: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir %q: %w", abs, err)
	}

	return &Store{engine: engine, dir: abs}, nil
}

// Dir returns the absolute output directory
func (st *Store) Dir() string {
	return st.dir
}

// Open allocates a session id and output path and opens a render canvas.
// The path is reserved but no file is written until Finalize.
func (st *Store) Open(ctx context.Context) (*Session, error) {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")

	canvas, err := st.engine.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRenderEngine, err)
	}

	s := &Session{
		id:     id,
		path:   filepath.Join(st.dir, "diagram_"+id+".png"),
		canvas: canvas,
		state:  pkg.SessionOpen,
		nodes:  make(map[string]pkg.NodeKind),
		opened: time.Now(),
	}

	logger.Debug().Str("session_id", id).Str("path", s.path).Msg("Diagram session opened")
	return s, nil
}

// Session is one open-to-finalize diagram lifecycle. Labels are the node
// identifiers. A session is driven by a single call sequence; the mutex only
// keeps a misbehaving driver from corrupting it.
type Session struct {
	mu        sync.Mutex
	id        string
	path      string
	canvas    render.Canvas
	state     pkg.SessionState
	nodes     map[string]pkg.NodeKind
	edges     []pkg.Edge
	finalized bool
	commitErr error
	opened    time.Time
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Path returns the absolute output path reserved for this session
func (s *Session) Path() string {
	return s.path
}

// State returns the lifecycle state
func (s *Session) State() pkg.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Finalized reports whether Finalize wrote the output file
func (s *Session) Finalized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalized
}

// FinalizeErr returns the render error of a failed Finalize, if any
func (s *Session) FinalizeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitErr
}

// AddNode adds a node and returns its label
func (s *Session) AddNode(label, typeName string) (string, error) {
	ref, _, err := s.AddNodeReplacing(label, typeName)
	return ref, err
}

// AddNodeReplacing adds a node and reports whether an existing node with the
// same label was replaced. A duplicate label overwrites the previous node's
// kind; edges already attached to the label stay attached.
func (s *Session) AddNodeReplacing(label, typeName string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != pkg.SessionOpen {
		return "", false, ErrSessionClosed
	}
	if strings.TrimSpace(label) == "" {
		return "", false, ErrEmptyLabel
	}

	kind, err := Resolve(typeName)
	if err != nil {
		return "", false, err
	}
	desc, _ := Describe(kind)

	if err := s.canvas.AddNode(label, desc); err != nil {
		return "", false, fmt.Errorf("%w: %v", ErrRenderEngine, err)
	}

	_, replaced := s.nodes[label]
	s.nodes[label] = kind

	logger.Debug().
		Str("session_id", s.id).
		Str("label", label).
		Str("type", desc.Name).
		Bool("replaced", replaced).
		Msg("Node added")
	return label, replaced, nil
}

// LinkNodes adds a directed edge between two existing labels.
// Duplicate edges and self-loops are allowed.
func (s *Session) LinkNodes(from, to string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != pkg.SessionOpen {
		return ErrSessionClosed
	}

	_, okFrom := s.nodes[from]
	_, okTo := s.nodes[to]
	if !okFrom || !okTo {
		return ErrUnknownNode
	}

	if err := s.canvas.AddEdge(from, to); err != nil {
		return fmt.Errorf("%w: %v", ErrRenderEngine, err)
	}
	s.edges = append(s.edges, pkg.Edge{From: from, To: to})

	logger.Debug().Str("session_id", s.id).Str("from", from).Str("to", to).Msg("Nodes linked")
	return nil
}

// Finalize commits the canvas to the reserved path and closes the session.
// It returns the absolute path of the PNG, which exists on success. On a
// render failure the session is closed anyway and no file is left behind.
func (s *Session) Finalize(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != pkg.SessionOpen {
		return "", ErrSessionClosed
	}
	s.state = pkg.SessionClosed

	if err := s.canvas.Commit(ctx, s.path); err != nil {
		removeIfExists(s.path)
		s.commitErr = fmt.Errorf("%w: %v", ErrRenderEngine, err)
		return "", s.commitErr
	}
	info, err := os.Stat(s.path)
	if err != nil {
		s.commitErr = fmt.Errorf("%w: output file missing after render: %v", ErrRenderEngine, err)
		return "", s.commitErr
	}
	if info.Size() == 0 {
		removeIfExists(s.path)
		s.commitErr = fmt.Errorf("%w: empty output file", ErrRenderEngine)
		return "", s.commitErr
	}

	s.finalized = true
	logger.Info().
		Str("session_id", s.id).
		Str("path", s.path).
		Int("nodes", len(s.nodes)).
		Int("edges", len(s.edges)).
		Dur("session_time", time.Since(s.opened)).
		Msg("Diagram finalized")
	return s.path, nil
}

// Release tears down a session that was never finalized: the canvas is
// discarded and the reserved path removed. It is a no-op once closed.
func (s *Session) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != pkg.SessionOpen {
		return
	}
	s.state = pkg.SessionClosed
	s.canvas.Discard()
	removeIfExists(s.path)

	logger.Debug().Str("session_id", s.id).Msg("Diagram session released without render")
}

// Nodes returns a copy of the nodes sorted by label
func (s *Session) Nodes() []pkg.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	nodes := make([]pkg.Node, 0, len(s.nodes))
	for label, kind := range s.nodes {
		nodes = append(nodes, pkg.Node{Label: label, Kind: kind})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Label < nodes[j].Label })
	return nodes
}

// Edges returns a copy of the edges in call order
func (s *Session) Edges() []pkg.Edge {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := make([]pkg.Edge, len(s.edges))
	copy(edges, s.edges)
	return edges
}

// HasNode reports whether a label exists
func (s *Session) HasNode(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.nodes[label]
	return ok
}

// NodeCount returns the number of distinct labels
func (s *Session) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// EdgeCount returns the number of recorded edges
func (s *Session) EdgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}

func removeIfExists(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn().Err(err).Str("path", path).Msg("Failed to remove diagram file")
	}
}
