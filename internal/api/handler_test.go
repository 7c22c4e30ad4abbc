package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"archdiagram/internal/diagram"
	"archdiagram/internal/generator"
	"archdiagram/internal/render/rendertest"
	"archdiagram/internal/storage"
	"archdiagram/internal/tools"
	"archdiagram/pkg"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/components/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fakePNG = "\x89PNG\r\n\x1a\nfake-image"

type fakeGenerator struct {
	result func(t *testing.T, prompt string) (*generator.Result, error)
	t      *testing.T
	calls  int
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (*generator.Result, error) {
	f.calls++
	return f.result(f.t, prompt)
}

func writeDiagram(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "diagram_test.png")
	require.NoError(t, os.WriteFile(path, []byte(fakePNG), 0o644))
	return path
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateDiagramSuccess(t *testing.T) {
	var path string
	gen := &fakeGenerator{t: t, result: func(t *testing.T, prompt string) (*generator.Result, error) {
		assert.Equal(t, "a web server", prompt)
		path = writeDiagram(t)
		return &generator.Result{Path: path, SessionID: "abc123"}, nil
	}}
	router := NewRouter(NewHandler(gen, nil))

	rec := serve(router, http.MethodPost, "/diagrams/generate", `{"prompt":"a web server"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "abc123", rec.Header().Get("X-Diagram-Session"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, []byte(fakePNG), rec.Body.Bytes())
	assert.NoFileExists(t, path, "file is removed after it is served")
}

func TestGenerateDiagramErrors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		result     func(t *testing.T, prompt string) (*generator.Result, error)
		wantStatus int
		wantDetail string
		wantCalls  int
	}{
		{
			name:       "empty prompt",
			body:       `{"prompt":""}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Prompt cannot be empty.",
		},
		{
			name:       "whitespace prompt",
			body:       `{"prompt":"   "}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Prompt cannot be empty.",
		},
		{
			name:       "missing prompt",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Prompt cannot be empty.",
		},
		{
			name:       "malformed json",
			body:       `{"prompt":`,
			wantStatus: http.StatusBadRequest,
			wantDetail: "Prompt cannot be empty.",
		},
		{
			name: "driver failure",
			body: `{"prompt":"x"}`,
			result: func(t *testing.T, prompt string) (*generator.Result, error) {
				return nil, fmt.Errorf("error running agent: %w", errors.New("LLM exploded"))
			},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "An internal error occurred: error running agent: LLM exploded",
			wantCalls:  1,
		},
		{
			name: "driver incomplete",
			body: `{"prompt":"x"}`,
			result: func(t *testing.T, prompt string) (*generator.Result, error) {
				return nil, generator.ErrDriverIncomplete
			},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Agent failed to generate a valid diagram file.",
			wantCalls:  1,
		},
		{
			name: "render engine failure",
			body: `{"prompt":"x"}`,
			result: func(t *testing.T, prompt string) (*generator.Result, error) {
				return nil, fmt.Errorf("%w: disk full", diagram.ErrRenderEngine)
			},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "An internal error occurred: render engine failure: disk full",
			wantCalls:  1,
		},
		{
			name: "path does not exist",
			body: `{"prompt":"x"}`,
			result: func(t *testing.T, prompt string) (*generator.Result, error) {
				return &generator.Result{Path: "invalid/path/to/file.png"}, nil
			},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Agent failed to generate a valid diagram file.",
			wantCalls:  1,
		},
		{
			name: "path is a directory",
			body: `{"prompt":"x"}`,
			result: func(t *testing.T, prompt string) (*generator.Result, error) {
				return &generator.Result{Path: t.TempDir()}, nil
			},
			wantStatus: http.StatusInternalServerError,
			wantDetail: "Agent failed to generate a valid diagram file.",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{t: t, result: tt.result}
			router := NewRouter(NewHandler(gen, nil))

			rec := serve(router, http.MethodPost, "/diagrams/generate", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			detail := decodeDetail(t, rec)
			if tt.wantStatus == http.StatusInternalServerError && tt.wantDetail != detailInvalidFile {
				assert.True(t, strings.HasPrefix(detail, "An internal error occurred"), detail)
			}
			assert.Equal(t, tt.wantDetail, detail)
			assert.Equal(t, tt.wantCalls, gen.calls)
		})
	}
}

// renderingDriver adds one node and renders it through the real tool set
type renderingDriver struct{}

func (renderingDriver) Drive(ctx context.Context, prompt string, ts []tool.BaseTool) (string, error) {
	byName := map[string]tool.InvokableTool{}
	for _, bt := range ts {
		info, err := bt.Info(ctx)
		if err != nil {
			return "", err
		}
		byName[info.Name] = bt.(tool.InvokableTool)
	}
	if _, err := byName[tools.AddNodeToolName].InvokableRun(ctx, `{"label":"Web","node_type":"EC2"}`); err != nil {
		return "", err
	}
	return byName[tools.RenderToolName].InvokableRun(ctx, "")
}

func TestGenerateDiagramEmptyRenderOutput(t *testing.T) {
	dir := t.TempDir()
	store, err := diagram.NewStore(&rendertest.Engine{EmptyOutput: true}, dir)
	require.NoError(t, err)
	history := storage.NewMemoryHistoryStore(10)
	gen, err := generator.New(store, renderingDriver{}, history, generator.Options{})
	require.NoError(t, err)
	router := NewRouter(NewHandler(gen, history))

	rec := serve(router, http.MethodPost, "/diagrams/generate", `{"prompt":"a web server"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotEqual(t, "image/png", rec.Header().Get("Content-Type"))
	detail := decodeDetail(t, rec)
	assert.True(t, strings.HasPrefix(detail, "An internal error occurred"), detail)
	assert.Contains(t, detail, "empty output file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	recs, err := history.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, pkg.GenerationFailed, recs[0].Status)
}

func TestGenerateDiagramMethodNotAllowed(t *testing.T) {
	router := NewRouter(NewHandler(&fakeGenerator{t: t}, nil))

	rec := serve(router, http.MethodGet, "/diagrams/generate", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealth(t *testing.T) {
	router := NewRouter(NewHandler(&fakeGenerator{t: t}, nil))

	rec := serve(router, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	history := storage.NewMemoryHistoryStore(10)
	for i := 1; i <= 3; i++ {
		require.NoError(t, history.Save(ctx, pkg.GenerationRecord{
			ID:     fmt.Sprintf("req-%d", i),
			Prompt: fmt.Sprintf("prompt %d", i),
			Status: pkg.GenerationSucceeded,
		}))
	}
	router := NewRouter(NewHandler(&fakeGenerator{t: t}, history))

	rec := serve(router, http.MethodGet, "/diagrams/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var recs []pkg.GenerationRecord
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 2)
	assert.Equal(t, "req-3", recs[0].ID)
	assert.Equal(t, "req-2", recs[1].ID)

	rec = serve(router, http.MethodGet, "/diagrams/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(router, http.MethodGet, "/diagrams/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []pkg.GenerationRecord
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 3)
}

func TestHistoryWithoutStore(t *testing.T) {
	router := NewRouter(NewHandler(&fakeGenerator{t: t}, nil))

	rec := serve(router, http.MethodGet, "/diagrams/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRecoverMiddleware(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	}), Logger, Recover)

	rec := serve(h, http.MethodGet, "/", "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeDetail(t, rec), "An internal error occurred")
}
