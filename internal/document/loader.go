package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrNoText means the document has no extractable text (scanned or image-only).
var ErrNoText = errors.New("document has no extractable text")

// Page is the text of one physical page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

type Document struct {
	Pages []Page // one per physical page, including blank ones
	Size  int
}

func (d *Document) PageCount() int { return len(d.Pages) }

// NonEmpty returns the pages that carry text.
func (d *Document) NonEmpty() []Page {
	var out []Page
	for _, p := range d.Pages {
		if p.Text != "" {
			out = append(out, p)
		}
	}
	return out
}

// Loader splits a blob into page-level documents.
type Loader interface {
	Load(ctx context.Context, data []byte) (*Document, error)
}

type PDFLoader struct{}

func NewPDFLoader() *PDFLoader { return &PDFLoader{} }

func (l *PDFLoader) Load(ctx context.Context, data []byte) (doc *Document, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("open PDF: malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}

	n := reader.NumPage()
	doc = &Document{Pages: make([]Page, 0, n), Size: len(data)}
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := Page{Number: i}
		p := reader.Page(i)
		if !p.V.IsNull() {
			if text, err := p.GetPlainText(nil); err == nil {
				page.Text = strings.TrimSpace(text)
			}
		}
		doc.Pages = append(doc.Pages, page)
	}
	return doc, nil
}
