// Package loader reads source documents from a directory.
//
// Loading is non-recursive: only regular files directly inside the directory
// are considered. Files that cannot be read or parsed are skipped with a
// warning; they never fail the whole load.
package loader

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"pdfqa/internal/domain"
)

// pageSeparator joins the text of consecutive PDF pages.
const pageSeparator = "\n\n"

// Options selects which files are loaded.
type Options struct {
	// Extensions lists accepted file extensions including the dot, e.g. ".pdf".
	Extensions []string
}

// Loader turns files into domain documents.
type Loader struct {
	logger     *zap.Logger
	extensions map[string]struct{}
}

// New creates a Loader. With no extensions configured only PDFs are loaded.
func New(logger *zap.Logger, opts Options) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = []string{".pdf"}
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return &Loader{logger: logger, extensions: set}
}

// Load returns one document per supported file in dir, sorted by file name.
// An empty directory yields no documents and no error.
func (l *Loader) Load(ctx context.Context, dir string) ([]domain.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: document directory %s", domain.ErrNotFound, dir)
		}
		return nil, fmt.Errorf("reading document directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []domain.Document
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := l.extensions[ext]; !ok {
			l.logger.Debug("skipping unsupported file", zap.String("path", path))
			continue
		}

		var doc domain.Document
		switch ext {
		case ".pdf":
			doc, err = loadPDF(path)
		default:
			doc, err = loadText(path)
		}
		if err != nil {
			l.logger.Warn("skipping unreadable document", zap.String("path", path), zap.Error(err))
			continue
		}
		if strings.TrimSpace(doc.Content) == "" {
			l.logger.Warn("skipping document without text", zap.String("path", path))
			continue
		}
		doc.ID = hashString(path)
		doc.Path = path
		docs = append(docs, doc)
		l.logger.Debug("loaded document", zap.String("path", path), zap.Int("pages", len(doc.Pages)), zap.Int("chars", utf8.RuneCountInString(doc.Content)))
	}
	return docs, nil
}

func loadText(path string) (domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Document{}, err
	}
	if !utf8.Valid(data) {
		return domain.Document{}, errors.New("file is not valid UTF-8 text")
	}
	content := string(data)
	return domain.Document{
		Content: content,
		Pages:   []domain.PageSpan{{Number: 1, Start: 0, End: utf8.RuneCountInString(content)}},
	}, nil
}

// joinPages concatenates page texts. Each span runs up to the start of the
// next page so every offset in the content belongs to some page.
func joinPages(pages []string) (string, []domain.PageSpan) {
	var sb strings.Builder
	spans := make([]domain.PageSpan, 0, len(pages))
	offset := 0
	for i, text := range pages {
		if i > 0 {
			sb.WriteString(pageSeparator)
			offset += utf8.RuneCountInString(pageSeparator)
			spans[i-1].End = offset
		}
		sb.WriteString(text)
		n := utf8.RuneCountInString(text)
		spans = append(spans, domain.PageSpan{Number: i + 1, Start: offset, End: offset + n})
		offset += n
	}
	return sb.String(), spans
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
