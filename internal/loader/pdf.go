package loader

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"pdfqa/internal/domain"
)

// loadPDF extracts plain text page by page. The parser panics on some
// malformed files; that is reported as an error like any other parse failure.
func loadPDF(path string) (doc domain.Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing pdf: %v", r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return domain.Document{}, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]string, 0, n)
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				font := p.Font(name)
				fonts[name] = &font
			}
		}
		text, err := p.GetPlainText(fonts)
		if err != nil {
			return domain.Document{}, fmt.Errorf("page %d: %w", i, err)
		}
		pages = append(pages, strings.TrimRight(text, " \n\t"))
	}

	content, spans := joinPages(pages)
	return domain.Document{Content: content, Pages: spans}, nil
}
