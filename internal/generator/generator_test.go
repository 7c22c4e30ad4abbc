package generator

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"archdiagram/internal/diagram"
	"archdiagram/internal/render/rendertest"
	"archdiagram/internal/tools"
	"archdiagram/pkg"

	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driverFunc adapts a function to the Driver interface
type driverFunc func(ctx context.Context, prompt string, tools []tool.BaseTool) (string, error)

func (f driverFunc) Drive(ctx context.Context, prompt string, tools []tool.BaseTool) (string, error) {
	return f(ctx, prompt, tools)
}

type memoryHistory struct {
	mu      sync.Mutex
	records []pkg.GenerationRecord
	err     error
}

func (h *memoryHistory) Save(ctx context.Context, rec pkg.GenerationRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return h.err
	}
	h.records = append(h.records, rec)
	return nil
}

func (h *memoryHistory) last(t *testing.T) pkg.GenerationRecord {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.records)
	return h.records[len(h.records)-1]
}

func call(t *testing.T, ts []tool.BaseTool, name, args string) string {
	t.Helper()
	for _, bt := range ts {
		info, err := bt.Info(context.Background())
		require.NoError(t, err)
		if info.Name == name {
			out, err := bt.(tool.InvokableTool).InvokableRun(context.Background(), args)
			require.NoError(t, err)
			return out
		}
	}
	t.Fatalf("tool %s not found", name)
	return ""
}

// webStack adds a user, a load balancer and a server, then renders
func webStack(t *testing.T) driverFunc {
	return func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
		call(t, ts, tools.AddNodeToolName, `{"label":"User","node_type":"User"}`)
		call(t, ts, tools.AddNodeToolName, `{"label":"LB","node_type":"ALB"}`)
		call(t, ts, tools.AddNodeToolName, `{"label":"Web","node_type":"EC2"}`)
		call(t, ts, tools.LinkNodesToolName, `{"from_node_id":"User","to_node_id":"LB"}`)
		call(t, ts, tools.LinkNodesToolName, `{"from_node_id":"LB","to_node_id":"Web"}`)
		return call(t, ts, tools.RenderToolName, ""), nil
	}
}

func newGenerator(t *testing.T, engine *rendertest.Engine, d Driver, h History, opts Options) *Generator {
	t.Helper()
	store, err := diagram.NewStore(engine, t.TempDir())
	require.NoError(t, err)
	g, err := New(store, d, h, opts)
	require.NoError(t, err)
	return g
}

func TestGenerateSuccess(t *testing.T) {
	engine := &rendertest.Engine{}
	history := &memoryHistory{}
	g := newGenerator(t, engine, webStack(t), history, Options{MaxConcurrent: 2, Timeout: time.Minute})

	res, err := g.Generate(context.Background(), "a web server")
	require.NoError(t, err)

	assert.FileExists(t, res.Path)
	assert.Equal(t, res.Path, res.DriverOutput)
	assert.NotEmpty(t, res.SessionID)
	assert.Len(t, res.Nodes, 3)
	assert.Equal(t, []pkg.Edge{{From: "User", To: "LB"}, {From: "LB", To: "Web"}}, res.Edges)
	assert.Positive(t, res.Duration)

	rec := history.last(t)
	assert.Equal(t, pkg.GenerationSucceeded, rec.Status)
	assert.Equal(t, "a web server", rec.Prompt)
	assert.Equal(t, 3, rec.NodeCount)
	assert.Equal(t, 2, rec.EdgeCount)
	assert.NotEmpty(t, rec.ID)

	require.Len(t, engine.Canvases(), 1)
	assert.Equal(t, 1, engine.Canvases()[0].Teardowns())
}

func TestGenerateEmptyPrompt(t *testing.T) {
	engine := &rendertest.Engine{}
	history := &memoryHistory{}
	called := false
	g := newGenerator(t, engine, driverFunc(func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
		called = true
		return "", nil
	}), history, Options{})

	for _, prompt := range []string{"", "   ", "\n\t"} {
		_, err := g.Generate(context.Background(), prompt)
		assert.ErrorIs(t, err, ErrEmptyInput)
	}

	assert.False(t, called)
	assert.Empty(t, engine.Canvases(), "no session is opened for an empty prompt")
	assert.Equal(t, pkg.GenerationRejected, history.last(t).Status)
}

func TestGenerateFailures(t *testing.T) {
	errQuota := errors.New("quota exceeded")

	tests := []struct {
		name      string
		engine    *rendertest.Engine
		driver    driverFunc
		wantErr   error
		committed bool
	}{
		{
			name: "driver never renders",
			driver: func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
				call(t, ts, tools.AddNodeToolName, `{"label":"A","node_type":"EC2"}`)
				return "I drew it", nil
			},
			wantErr: ErrDriverIncomplete,
		},
		{
			name: "driver fails before render",
			driver: func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
				call(t, ts, tools.AddNodeToolName, `{"label":"A","node_type":"EC2"}`)
				return "", errQuota
			},
			wantErr: errQuota,
		},
		{
			name: "driver fails after render",
			driver: func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
				call(t, ts, tools.RenderToolName, "")
				return "", errQuota
			},
			wantErr:   errQuota,
			committed: true,
		},
		{
			name:   "render engine failure",
			engine: &rendertest.Engine{CommitErr: errors.New("disk full")},
			driver: func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
				out := call(t, ts, tools.RenderToolName, "")
				assert.True(t, tools.IsErrorResult(out))
				return out, nil
			},
			wantErr:   diagram.ErrRenderEngine,
			committed: true,
		},
		{
			name:   "render writes empty file",
			engine: &rendertest.Engine{EmptyOutput: true},
			driver: func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
				call(t, ts, tools.AddNodeToolName, `{"label":"A","node_type":"EC2"}`)
				out := call(t, ts, tools.RenderToolName, "")
				assert.True(t, tools.IsErrorResult(out))
				return out, nil
			},
			wantErr:   diagram.ErrRenderEngine,
			committed: true,
		},
		{
			name: "driver answers with something other than the path",
			driver: func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
				call(t, ts, tools.AddNodeToolName, `{"label":"A","node_type":"EC2"}`)
				call(t, ts, tools.RenderToolName, "")
				return "/etc/passwd", nil
			},
			wantErr:   ErrDriverIncomplete,
			committed: true,
		},
		{
			name: "driver panics",
			driver: func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
				call(t, ts, tools.AddNodeToolName, `{"label":"A","node_type":"EC2"}`)
				panic("boom")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := tt.engine
			if engine == nil {
				engine = &rendertest.Engine{}
			}
			history := &memoryHistory{}
			g := newGenerator(t, engine, tt.driver, history, Options{MaxConcurrent: 1})

			if tt.wantErr == nil {
				assert.PanicsWithValue(t, "boom", func() { _, _ = g.Generate(context.Background(), "draw") })
				rec := history.last(t)
				assert.Equal(t, pkg.GenerationFailed, rec.Status)
				assert.Equal(t, "panic: boom", rec.Error)
			} else {
				res, err := g.Generate(context.Background(), "draw")
				assert.Nil(t, res)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, pkg.GenerationFailed, history.last(t).Status)
			}

			canvases := engine.Canvases()
			require.Len(t, canvases, 1)
			assert.Equal(t, 1, canvases[0].Teardowns())
			if tt.committed {
				assert.Equal(t, 1, canvases[0].Commits)
			}

			entries, err := os.ReadDir(g.store.Dir())
			require.NoError(t, err)
			assert.Empty(t, entries, "no diagram file is left behind")
		})
	}
}

func TestGenerateTimeout(t *testing.T) {
	engine := &rendertest.Engine{}
	g := newGenerator(t, engine, driverFunc(func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}), nil, Options{Timeout: 20 * time.Millisecond})

	_, err := g.Generate(context.Background(), "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, engine.Canvases()[0].Discards)
}

func TestGenerateConcurrentSessionsAreIsolated(t *testing.T) {
	engine := &rendertest.Engine{}
	var inFlight, peak atomic.Int32

	driver := driverFunc(func(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		call(t, ts, tools.AddNodeToolName, `{"label":"`+prompt+`","node_type":"EC2"}`)
		time.Sleep(10 * time.Millisecond)
		return call(t, ts, tools.RenderToolName, ""), nil
	})
	g := newGenerator(t, engine, driver, &memoryHistory{}, Options{MaxConcurrent: 2})

	prompts := []string{"a", "b", "c", "d", "e", "f"}
	results := make([]*Result, len(prompts))
	var wg sync.WaitGroup
	for i, p := range prompts {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			res, err := g.Generate(context.Background(), p)
			assert.NoError(t, err)
			results[i] = res
		}(i, p)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	paths := map[string]bool{}
	for i, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, []pkg.Node{{Label: prompts[i], Kind: pkg.KindEC2}}, res.Nodes)
		paths[res.Path] = true
	}
	assert.Len(t, paths, len(prompts))
}

func TestGenerateHistoryFailureIsIgnored(t *testing.T) {
	g := newGenerator(t, &rendertest.Engine{}, webStack(t), &memoryHistory{err: errors.New("redis down")}, Options{})

	res, err := g.Generate(context.Background(), "a web server")
	require.NoError(t, err)
	assert.FileExists(t, res.Path)
}

func TestNewValidates(t *testing.T) {
	store, err := diagram.NewStore(&rendertest.Engine{}, t.TempDir())
	require.NoError(t, err)

	_, err = New(nil, webStack(t), nil, Options{})
	assert.Error(t, err)
	_, err = New(store, nil, nil, Options{})
	assert.Error(t, err)
}
