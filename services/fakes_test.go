package services

import (
	"context"
	"fmt"
	"sync"

	"knowledge-engine/models"
)

// fakeEmbedder returns canned vectors by exact text, or a default vector.
// Setting fail makes every call fail; failFor fails selected texts only.
type fakeEmbedder struct {
	vectors map[string][]float32
	def     []float32
	fail    bool
	failFor map[string]bool
	calls   int
}

func newFakeEmbedder() *fakeEmbedder {
	return &fakeEmbedder{
		vectors: make(map[string][]float32),
		def:     []float32{1, 0, 0},
		failFor: make(map[string]bool),
	}
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.fail || f.failFor[text] {
		return nil, fmt.Errorf("%w: fake outage", models.ErrEmbeddingUnavailable)
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return f.def, nil
}

// fakeIndex is an in-memory vectorindex.Store. Query returns the canned
// queryResults; writes and deletes operate on the chunk list.
type fakeIndex struct {
	mu           sync.Mutex
	chunks       []models.Chunk
	queryResults []models.SearchResult
	failQuery    bool
	failAdd      bool
	adds         int
	deletes      int
}

func (f *fakeIndex) Add(_ context.Context, chunk models.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAdd {
		return fmt.Errorf("%w: fake outage", models.ErrIndexUnavailable)
	}
	for i := range f.chunks {
		if f.chunks[i].ChunkID == chunk.ChunkID {
			f.chunks[i] = chunk
			return nil
		}
	}
	f.chunks = append(f.chunks, chunk)
	f.adds++
	return nil
}

func (f *fakeIndex) AddBatch(ctx context.Context, chunks []models.Chunk) (int, error) {
	for _, ch := range chunks {
		if err := f.Add(ctx, ch); err != nil {
			return 0, err
		}
	}
	return len(chunks), nil
}

func (f *fakeIndex) Query(_ context.Context, _ []float32, k int) ([]models.SearchResult, error) {
	if f.failQuery {
		return nil, fmt.Errorf("%w: fake outage", models.ErrIndexUnavailable)
	}
	if len(f.queryResults) > k {
		return f.queryResults[:k], nil
	}
	return f.queryResults, nil
}

func (f *fakeIndex) AllChunks(_ context.Context) ([]models.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Chunk, len(f.chunks))
	copy(out, f.chunks)
	return out, nil
}

func (f *fakeIndex) DeleteByDocumentID(_ context.Context, documentID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []models.Chunk
	var removed int64
	for _, ch := range f.chunks {
		if ch.Metadata.DocumentID == documentID {
			removed++
			continue
		}
		kept = append(kept, ch)
	}
	f.chunks = kept
	if removed > 0 {
		f.deletes++
	}
	return removed, nil
}

func (f *fakeIndex) DeleteChunks(_ context.Context, chunkIDs []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := make(map[string]struct{}, len(chunkIDs))
	for _, id := range chunkIDs {
		drop[id] = struct{}{}
	}
	var kept []models.Chunk
	var removed int64
	for _, ch := range f.chunks {
		if _, ok := drop[ch.ChunkID]; ok {
			removed++
			continue
		}
		kept = append(kept, ch)
	}
	f.chunks = kept
	return removed, nil
}

func (f *fakeIndex) Count(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.chunks)), nil
}

func (f *fakeIndex) Stats(_ context.Context) (*models.IndexStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &models.IndexStats{TotalChunks: len(f.chunks)}, nil
}

// fakeGatherer returns canned documents, or an error when fail is set.
type fakeGatherer struct {
	docs  []models.Document
	fail  bool
	calls int
}

func (f *fakeGatherer) Gather(_ context.Context, _ string) ([]models.Document, error) {
	f.calls++
	if f.fail {
		return nil, fmt.Errorf("%w: fake outage", models.ErrExternalFetchFailed)
	}
	return f.docs, nil
}
