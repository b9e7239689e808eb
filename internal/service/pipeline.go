package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pdfqa/internal/domain"
	"pdfqa/internal/embedding"
	"pdfqa/internal/index"
)

// DocumentLoader reads every source document in a directory.
type DocumentLoader interface {
	Load(ctx context.Context, dir string) ([]domain.Document, error)
}

// Options configures where the index is persisted and how it measures distance.
type Options struct {
	// IndexDir holds the persisted index. Empty disables persistence.
	IndexDir string
	Metric   string
	// Rebuild ignores any persisted index and overwrites it.
	Rebuild bool
}

// Status summarizes the outcome of Initialize.
type Status struct {
	Documents int
	Chunks    int
	FromDisk  bool
	IndexDir  string
	BuildID   string
	// Available is false when there was nothing to index.
	Available bool
}

// Pipeline loads, chunks, embeds and indexes a document directory once and
// then answers queries against the resulting index.
type Pipeline struct {
	loader   DocumentLoader
	chunker  domain.Chunker
	embedder embedding.Embedder
	opts     Options
	logger   *zap.Logger

	group singleflight.Group

	mu     sync.RWMutex
	ready  bool
	status Status
	index  *index.Index
}

// NewPipeline wires the pipeline stages together. Nothing runs until Initialize.
func NewPipeline(loader DocumentLoader, chunker domain.Chunker, embedder embedding.Embedder, opts Options, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Metric == "" {
		opts.Metric = index.MetricCosine
	}
	return &Pipeline{loader: loader, chunker: chunker, embedder: embedder, opts: opts, logger: logger}
}

// Initialize builds or loads the index for docDir. Concurrent callers share a
// single build; after the first success every call returns the cached Status.
// A failed build is not cached and runs again on the next call. The shared
// build keeps ctx values but not its cancellation, so one caller giving up
// does not fail the others.
func (p *Pipeline) Initialize(ctx context.Context, docDir string) (Status, error) {
	if st, ok := p.cached(); ok {
		return st, nil
	}
	v, err, _ := p.group.Do("initialize", func() (any, error) {
		if st, ok := p.cached(); ok {
			return st, nil
		}
		ix, st, err := p.build(context.WithoutCancel(ctx), docDir)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.index = ix
		p.status = st
		p.ready = true
		p.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return Status{}, err
	}
	return v.(Status), nil
}

// Status returns the cached initialization result, if any.
func (p *Pipeline) Status() (Status, bool) {
	return p.cached()
}

func (p *Pipeline) cached() (Status, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status, p.ready
}

func (p *Pipeline) build(ctx context.Context, docDir string) (*index.Index, Status, error) {
	start := time.Now()
	st := Status{IndexDir: p.opts.IndexDir}

	if p.opts.IndexDir != "" && !p.opts.Rebuild {
		ix, err := index.Load(p.opts.IndexDir)
		switch {
		case err == nil:
			if err := p.checkIndex(ix); err != nil {
				return nil, Status{}, fmt.Errorf("%w; rerun with --rebuild to re-index", err)
			}
			st.Documents = ix.DocumentCount()
			st.Chunks = ix.Len()
			st.FromDisk = true
			st.BuildID = ix.BuildID()
			st.Available = ix.Len() > 0
			p.logger.Info("loaded persisted index",
				zap.String("dir", p.opts.IndexDir),
				zap.String("build_id", st.BuildID),
				zap.Int("chunks", st.Chunks))
			if !st.Available {
				return nil, st, nil
			}
			return ix, st, nil
		case errors.Is(err, domain.ErrNotFound):
			p.logger.Debug("no persisted index", zap.String("dir", p.opts.IndexDir))
		case errors.Is(err, domain.ErrCorruptIndex):
			p.logger.Warn("persisted index is corrupt, rebuilding", zap.String("dir", p.opts.IndexDir), zap.Error(err))
		default:
			return nil, Status{}, fmt.Errorf("loading index: %w", err)
		}
	}

	docs, err := p.loader.Load(ctx, docDir)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, Status{}, fmt.Errorf("loading documents: %w", err)
		}
		p.logger.Warn("document directory does not exist", zap.String("dir", docDir))
	}
	st.Documents = len(docs)
	if len(docs) == 0 {
		p.logger.Warn("index unavailable", zap.String("dir", docDir), zap.Error(domain.ErrEmptyCorpus))
		return nil, st, nil
	}

	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := p.chunker.Chunk(d)
		if err != nil {
			return nil, Status{}, fmt.Errorf("chunking %s: %w", d.Path, err)
		}
		chunks = append(chunks, cs...)
	}
	st.Chunks = len(chunks)
	if len(chunks) == 0 {
		p.logger.Warn("index unavailable", zap.String("dir", docDir), zap.Error(domain.ErrEmptyCorpus))
		return nil, st, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := embedding.EmbedAll(ctx, p.embedder, texts)
	if err != nil {
		return nil, Status{}, err
	}
	entries := make([]domain.Entry, len(chunks))
	for i := range chunks {
		entries[i] = domain.Entry{Vector: vectors[i], Chunk: chunks[i]}
	}

	ix, err := index.New(p.embedder.Dimension(), p.opts.Metric, p.embedder.Name())
	if err != nil {
		return nil, Status{}, err
	}
	if err := ix.Build(entries); err != nil {
		return nil, Status{}, err
	}
	st.BuildID = ix.BuildID()
	st.Available = true
	p.logger.Info("built index",
		zap.Int("documents", st.Documents),
		zap.Int("chunks", st.Chunks),
		zap.String("embedder", p.embedder.Name()),
		zap.String("build_id", st.BuildID),
		zap.Duration("took", time.Since(start)))

	if p.opts.IndexDir != "" {
		if err := ix.Persist(p.opts.IndexDir); err != nil {
			p.logger.Warn("could not persist index", zap.String("dir", p.opts.IndexDir), zap.Error(err))
		}
	}
	return ix, st, nil
}

// Answer embeds query and returns the k closest chunks. Before a successful
// Initialize, or when there was nothing to index, the answer is marked
// unavailable instead of failing. A blank query yields no results.
func (p *Pipeline) Answer(ctx context.Context, query string, k int) (domain.Answer, error) {
	p.mu.RLock()
	ix := p.index
	p.mu.RUnlock()

	ans := domain.Answer{Query: query, Results: []domain.QueryResult{}}
	if ix == nil {
		return ans, nil
	}
	ans.Available = true
	if err := p.checkIndex(ix); err != nil {
		return domain.Answer{}, err
	}
	if strings.TrimSpace(query) == "" {
		return ans, nil
	}

	vec, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("embedding query: %w", err)
	}
	results, err := ix.Query(vec, k)
	if err != nil {
		return domain.Answer{}, err
	}
	ans.Results = results
	p.logger.Debug("answered query", zap.String("query", query), zap.Int("k", k), zap.Int("results", len(results)))
	return ans, nil
}

// checkIndex rejects an index built with a different embedder or metric.
func (p *Pipeline) checkIndex(ix *index.Index) error {
	if ix.EmbedderName() != p.embedder.Name() || ix.Dimension() != p.embedder.Dimension() {
		return fmt.Errorf("%w: index was built by %s (dimension %d), configured embedder is %s (dimension %d)",
			domain.ErrConfig, ix.EmbedderName(), ix.Dimension(), p.embedder.Name(), p.embedder.Dimension())
	}
	if ix.Metric() != p.opts.Metric {
		return fmt.Errorf("%w: index uses metric %s, configured metric is %s",
			domain.ErrConfig, ix.Metric(), p.opts.Metric)
	}
	return nil
}
