package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pdfqa/internal/chunker"
	"pdfqa/internal/domain"
	"pdfqa/internal/embedding/placeholder"
	"pdfqa/internal/index"
	"pdfqa/internal/loader"
)

type fakeLoader struct {
	docs  []domain.Document
	err   error
	calls atomic.Int32
}

func (f *fakeLoader) Load(ctx context.Context, _ string) ([]domain.Document, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

func corpus() []domain.Document {
	texts := []string{
		"The pump must be primed before first use.",
		"Battery capacity is 40 Ah at 20 degrees.",
		"Warranty claims require the original receipt.",
		"Replace the air filter every six months.",
		"The display shows error E4 when the tank is empty.",
	}
	docs := make([]domain.Document, len(texts))
	for i, text := range texts {
		docs[i] = domain.Document{
			ID:      fmt.Sprintf("doc%d", i),
			Path:    fmt.Sprintf("content/manual%d.pdf", i),
			Content: text,
			Pages:   []domain.PageSpan{{Number: 1, Start: 0, End: len(text)}},
		}
	}
	return docs
}

func newPipeline(t *testing.T, l DocumentLoader, dim int, opts Options) *Pipeline {
	t.Helper()
	c, err := chunker.NewRecursiveChunker(1000, 100)
	require.NoError(t, err)
	emb, err := placeholder.NewEmbedder(dim)
	require.NoError(t, err)
	return NewPipeline(l, c, emb, opts, zaptest.NewLogger(t))
}

func TestInitializeEmptyCorpus(t *testing.T) {
	ctx := context.Background()

	t.Run("loader returns no documents", func(t *testing.T) {
		p := newPipeline(t, &fakeLoader{}, 16, Options{})
		st, err := p.Initialize(ctx, "content")
		require.NoError(t, err)
		assert.False(t, st.Available)
		assert.Equal(t, 0, st.Documents)

		ans, err := p.Answer(ctx, "anything", 3)
		require.NoError(t, err)
		assert.False(t, ans.Available)
		assert.Empty(t, ans.Results)
	})

	t.Run("document directory missing", func(t *testing.T) {
		l := loader.New(nil, loader.Options{})
		p := newPipeline(t, l, 16, Options{})
		st, err := p.Initialize(ctx, filepath.Join(t.TempDir(), "content"))
		require.NoError(t, err)
		assert.False(t, st.Available)
	})

	t.Run("documents without chunks", func(t *testing.T) {
		p := newPipeline(t, &fakeLoader{docs: []domain.Document{{ID: "x", Path: "x.pdf"}}}, 16, Options{})
		st, err := p.Initialize(ctx, "content")
		require.NoError(t, err)
		assert.False(t, st.Available)
		assert.Equal(t, 1, st.Documents)
		assert.Equal(t, 0, st.Chunks)
	})
}

func TestAnswerBeforeInitialize(t *testing.T) {
	p := newPipeline(t, &fakeLoader{docs: corpus()}, 16, Options{})
	ans, err := p.Answer(context.Background(), "pump", 3)
	require.NoError(t, err)
	assert.False(t, ans.Available)
	_, ok := p.Status()
	assert.False(t, ok)
}

func TestBuildAndAnswer(t *testing.T) {
	ctx := context.Background()
	l := &fakeLoader{docs: corpus()}
	p := newPipeline(t, l, 32, Options{})

	st, err := p.Initialize(ctx, "content")
	require.NoError(t, err)
	assert.True(t, st.Available)
	assert.False(t, st.FromDisk)
	assert.Equal(t, 5, st.Documents)
	assert.Equal(t, 5, st.Chunks)
	assert.NotEmpty(t, st.BuildID)

	ans, err := p.Answer(ctx, "Battery capacity is 40 Ah at 20 degrees.", 3)
	require.NoError(t, err)
	assert.True(t, ans.Available)
	require.Len(t, ans.Results, 3)
	assert.Equal(t, "doc1:0", ans.Results[0].Chunk.ChunkID)
	assert.InDelta(t, 0, ans.Results[0].Distance, 1e-9)
	for i, r := range ans.Results {
		assert.Equal(t, i+1, r.Rank)
		if i > 0 {
			assert.LessOrEqual(t, ans.Results[i-1].Distance, r.Distance)
		}
	}

	t.Run("k larger than corpus", func(t *testing.T) {
		ans, err := p.Answer(ctx, "filter", 50)
		require.NoError(t, err)
		assert.Len(t, ans.Results, 5)
	})

	t.Run("blank query", func(t *testing.T) {
		ans, err := p.Answer(ctx, "   ", 3)
		require.NoError(t, err)
		assert.True(t, ans.Available)
		assert.Empty(t, ans.Results)
	})

	t.Run("second initialize is cached", func(t *testing.T) {
		again, err := p.Initialize(ctx, "content")
		require.NoError(t, err)
		assert.Equal(t, st, again)
		assert.Equal(t, int32(1), l.calls.Load())
	})
}

func TestPersistedIndexReuse(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vector_db")

	first := newPipeline(t, &fakeLoader{docs: corpus()}, 16, Options{IndexDir: dir})
	built, err := first.Initialize(ctx, "content")
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(dir, "manifest.yaml"))

	t.Run("same embedder loads from disk", func(t *testing.T) {
		l := &fakeLoader{docs: corpus()}
		p := newPipeline(t, l, 16, Options{IndexDir: dir})
		st, err := p.Initialize(ctx, "content")
		require.NoError(t, err)
		assert.True(t, st.FromDisk)
		assert.Equal(t, built.BuildID, st.BuildID)
		assert.Equal(t, 5, st.Documents)
		assert.Equal(t, 5, st.Chunks)
		assert.Equal(t, int32(0), l.calls.Load())

		want, err := first.Answer(ctx, "warranty receipt", 3)
		require.NoError(t, err)
		got, err := p.Answer(ctx, "warranty receipt", 3)
		require.NoError(t, err)
		assert.Equal(t, want.Results, got.Results)
	})

	t.Run("different embedder is a config error", func(t *testing.T) {
		p := newPipeline(t, &fakeLoader{docs: corpus()}, 8, Options{IndexDir: dir})
		_, err := p.Initialize(ctx, "content")
		assert.ErrorIs(t, err, domain.ErrConfig)
		_, ok := p.Status()
		assert.False(t, ok)
	})

	t.Run("different metric is a config error", func(t *testing.T) {
		l := &fakeLoader{docs: corpus()}
		p := newPipeline(t, l, 16, Options{IndexDir: dir, Metric: index.MetricL2})
		_, err := p.Initialize(ctx, "content")
		assert.ErrorIs(t, err, domain.ErrConfig)
		assert.ErrorContains(t, err, "metric")
		assert.Equal(t, int32(0), l.calls.Load())
	})

	t.Run("rebuild ignores the persisted index", func(t *testing.T) {
		l := &fakeLoader{docs: corpus()}
		p := newPipeline(t, l, 8, Options{IndexDir: dir, Rebuild: true})
		st, err := p.Initialize(ctx, "content")
		require.NoError(t, err)
		assert.False(t, st.FromDisk)
		assert.NotEqual(t, built.BuildID, st.BuildID)
		assert.Equal(t, int32(1), l.calls.Load())

		ix, err := index.Load(dir)
		require.NoError(t, err)
		assert.Equal(t, "placeholder-8", ix.EmbedderName())
	})
}

func TestCorruptIndexIsRebuilt(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "vector_db")
	_, err := newPipeline(t, &fakeLoader{docs: corpus()}, 16, Options{IndexDir: dir}).Initialize(ctx, "content")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "entries.gob"), []byte("garbage"), 0o644))

	l := &fakeLoader{docs: corpus()}
	st, err := newPipeline(t, l, 16, Options{IndexDir: dir}).Initialize(ctx, "content")
	require.NoError(t, err)
	assert.False(t, st.FromDisk)
	assert.True(t, st.Available)
	assert.Equal(t, int32(1), l.calls.Load())

	_, err = index.Load(dir)
	assert.NoError(t, err)
}

func TestFailedBuildIsRetried(t *testing.T) {
	ctx := context.Background()
	l := &fakeLoader{err: errors.New("disk on fire")}
	p := newPipeline(t, l, 16, Options{})

	_, err := p.Initialize(ctx, "content")
	require.Error(t, err)

	l.err = nil
	l.docs = corpus()
	st, err := p.Initialize(ctx, "content")
	require.NoError(t, err)
	assert.True(t, st.Available)
	assert.Equal(t, int32(2), l.calls.Load())
}

func TestConcurrentInitializeBuildsOnce(t *testing.T) {
	ctx := context.Background()
	l := &fakeLoader{docs: corpus()}
	p := newPipeline(t, l, 16, Options{})

	const callers = 16
	statuses := make([]Status, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], errs[i] = p.Initialize(ctx, "content")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), l.calls.Load())
	for i := range statuses {
		require.NoError(t, errs[i])
		assert.Equal(t, statuses[0], statuses[i])
	}
}

func TestInitializeIgnoresCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := &fakeLoader{docs: corpus()}
	p := newPipeline(t, l, 16, Options{})
	st, err := p.Initialize(ctx, "content")
	require.NoError(t, err)
	assert.True(t, st.Available)
	assert.Equal(t, int32(1), l.calls.Load())
}

func TestAnswerRejectsMismatchedIndex(t *testing.T) {
	tests := []struct {
		name     string
		metric   string
		embedder string
	}{
		{"other embedder", index.MetricCosine, "lexical-16"},
		{"other metric", index.MetricL2, "placeholder-16"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPipeline(t, &fakeLoader{}, 16, Options{})
			ix, err := index.New(16, tt.metric, tt.embedder)
			require.NoError(t, err)
			require.NoError(t, ix.Build([]domain.Entry{{Vector: make([]float64, 16), Chunk: domain.Chunk{ChunkID: "a:0"}}}))
			p.index = ix

			_, err = p.Answer(context.Background(), "pump", 3)
			assert.ErrorIs(t, err, domain.ErrConfig)
		})
	}
}
