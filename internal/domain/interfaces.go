package domain

// PageSpan marks where one page of a source file lives inside Document.Content.
// Offsets are in runes.
type PageSpan struct {
	Number int
	Start  int
	End    int
}

// Document represents a single source file loaded into the system.
type Document struct {
	ID      string
	Path    string
	Content string
	Pages   []PageSpan
}

// PageAt returns the 1-based page number containing the rune offset,
// or 0 when the document carries no page boundaries.
func (d Document) PageAt(offset int) int {
	for _, p := range d.Pages {
		if offset >= p.Start && offset < p.End {
			return p.Number
		}
	}
	if n := len(d.Pages); n > 0 && offset >= d.Pages[n-1].End {
		return d.Pages[n-1].Number
	}
	return 0
}

// Chunk is a bounded span of one document used for indexing.
// Start and End are rune offsets into the document content; Overlap is the
// number of runes shared with the previous chunk of the same document.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Source     string
	Index      int
	Start      int
	End        int
	Page       int
	Overlap    int
	Text       string
}

// Entry pairs a chunk with its embedding vector.
type Entry struct {
	Vector []float64
	Chunk  Chunk
}

// QueryResult is one retrieved match. Rank starts at 1; lower Distance is closer.
type QueryResult struct {
	Rank     int
	Chunk    Chunk
	Distance float64
}

// Answer is what the pipeline hands to the presentation layer.
// Available is false when no index could be built (no documents).
type Answer struct {
	Query     string
	Results   []QueryResult
	Available bool
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}
