package parser

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser renders PDF files as markdown with one "## Page N" heading per
// page, so a quote can be scoped to a page. With FallbackPdftotext set, files
// the Go reader rejects are passed to the pdftotext binary.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*Document, error) {
	// the pdf reader needs random access
	path, cleanup, err := spool(r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pages, err := readPages(path)
	if err != nil && p.FallbackPdftotext {
		pages, err = pdftotextPages(path)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	return &Document{
		Title:    trimExt(filename),
		Text:     pagesToMarkdown(pages),
		Markdown: true,
	}, nil
}

func spool(r io.Reader) (string, func(), error) {
	tmp, err := os.CreateTemp("", "quoth-pdf-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmp.Name()) }
	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	return tmp.Name(), cleanup, nil
}

// readPages returns the plain text of every page, keeping blank entries so
// page numbers stay aligned.
func readPages(path string) ([]string, error) {
	f, doc, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pages := make([]string, doc.NumPage())
	for i := range pages {
		page := doc.Page(i + 1)
		if page.V.IsNull() {
			continue
		}
		if text, err := page.GetPlainText(nil); err == nil {
			pages[i] = text
		}
	}
	return pages, nil
}

func pdftotextPages(path string) ([]string, error) {
	out, err := exec.Command("pdftotext", "-layout", path, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	// pdftotext separates pages with form feeds
	return strings.Split(string(out), "\f"), nil
}

func pagesToMarkdown(pages []string) string {
	var b strings.Builder
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## Page %d\n\n%s", i+1, page)
	}
	if b.Len() > 0 {
		b.WriteByte('\n')
	}
	return b.String()
}
