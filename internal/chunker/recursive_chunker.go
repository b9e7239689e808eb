package chunker

import (
	"fmt"
	"strconv"

	"pdfqa/internal/domain"
)

// separatorLevels lists cut points from most to least preferred. A cut is
// placed right after the separator so words are never split.
var separatorLevels = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? "},
	{" "},
}

// RecursiveChunker splits text into windows of at most chunkSize characters.
// Consecutive chunks of a document share exactly chunkOverlap characters.
type RecursiveChunker struct {
	chunkSize    int
	chunkOverlap int
	separators   [][][]rune
}

// NewRecursiveChunker validates the window parameters and returns a chunker.
func NewRecursiveChunker(chunkSize, chunkOverlap int) (*RecursiveChunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrConfig, chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("%w: chunk_overlap must not be negative, got %d", domain.ErrConfig, chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk_overlap (%d) must be smaller than chunk_size (%d)", domain.ErrConfig, chunkOverlap, chunkSize)
	}
	seps := make([][][]rune, len(separatorLevels))
	for i, level := range separatorLevels {
		for _, s := range level {
			seps[i] = append(seps[i], []rune(s))
		}
	}
	return &RecursiveChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap, separators: seps}, nil
}

// Chunk splits one document. Offsets are rune offsets into document.Content.
func (c *RecursiveChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	runes := []rune(document.Content)
	n := len(runes)
	if n == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	start, idx, overlap := 0, 0, 0
	for {
		end := n
		if n-start > c.chunkSize {
			end = c.cut(runes, start)
		}
		chunks = append(chunks, domain.Chunk{
			DocumentID: document.ID,
			ChunkID:    document.ID + ":" + strconv.Itoa(idx),
			Source:     document.Path,
			Index:      idx,
			Start:      start,
			End:        end,
			Page:       document.PageAt(start),
			Overlap:    overlap,
			Text:       string(runes[start:end]),
		})
		if end == n {
			break
		}
		start = end - c.chunkOverlap
		overlap = c.chunkOverlap
		idx++
	}
	return chunks, nil
}

// ChunkAll splits every document, keeping document order.
func (c *RecursiveChunker) ChunkAll(documents []domain.Document) ([]domain.Chunk, error) {
	var all []domain.Chunk
	for _, d := range documents {
		chunks, err := c.Chunk(d)
		if err != nil {
			return nil, fmt.Errorf("chunking %s: %w", d.Path, err)
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// cut picks the end of the window starting at start. The result always lies in
// (start+chunkOverlap, start+chunkSize] so the next window makes progress.
func (c *RecursiveChunker) cut(runes []rune, start int) int {
	limit := start + c.chunkSize
	floor := start + c.chunkOverlap + 1
	if half := start + c.chunkSize/2; half > floor {
		floor = half
	}
	for _, level := range c.separators {
		for end := limit; end >= floor; end-- {
			for _, sep := range level {
				if endsWith(runes, end, sep) {
					return end
				}
			}
		}
	}
	return limit
}

func endsWith(runes []rune, end int, sep []rune) bool {
	if end < len(sep) {
		return false
	}
	for i, r := range sep {
		if runes[end-len(sep)+i] != r {
			return false
		}
	}
	return true
}
