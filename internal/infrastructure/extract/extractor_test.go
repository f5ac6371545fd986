package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"SejmAudit/internal/config"
	"SejmAudit/internal/domain"
)

func testExtractor(renderer PageRenderer, recognizer Recognizer) *Extractor {
	return New(config.ExtractConfig{MinTextChars: 10, OCRDPI: 72}, renderer, recognizer, nil)
}

func TestExtractEmptyDocumentFails(t *testing.T) {
	t.Parallel()

	e := testExtractor(nil, nil)
	_, err := e.Extract(context.Background(), nil, "pdf")

	var failed *ExtractionFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected ExtractionFailedError for empty bytes, got %v", err)
	}
}

func TestExtractUnsupportedFormat(t *testing.T) {
	t.Parallel()

	e := testExtractor(nil, nil)
	_, err := e.Extract(context.Background(), []byte("payload"), "application/x-proprietary")

	var unsupported *UnsupportedFormatError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
}

func TestExtractPlainText(t *testing.T) {
	t.Parallel()

	e := testExtractor(nil, nil)
	res, err := e.Extract(context.Background(), []byte("ustawa o zmianie ustawy"), "txt")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if res.Method != domain.MethodDirect {
		t.Fatalf("unexpected method: %s", res.Method)
	}
	if res.Text != "ustawa o zmianie ustawy" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
}

func TestExtractHTMLStripsMarkup(t *testing.T) {
	t.Parallel()

	html := `<html><head><style>body{}</style></head>
	<body><h1>Opinia komisji</h1><p>Projekt zwiększa budżet.</p>
	<script>ignore()</script></body></html>`

	e := testExtractor(nil, nil)
	res, err := e.Extract(context.Background(), []byte(html), "text/html")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if res.Method != domain.MethodDirect {
		t.Fatalf("unexpected method: %s", res.Method)
	}
	if !strings.Contains(res.Text, "Opinia komisji") || !strings.Contains(res.Text, "budżet") {
		t.Fatalf("markup content missing: %q", res.Text)
	}
	if strings.Contains(res.Text, "ignore()") {
		t.Fatalf("script content leaked: %q", res.Text)
	}
}

func buildDocx(t *testing.T, body, core string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if _, err := w.Write([]byte(body)); err != nil {
		t.Fatalf("write entry: %v", err)
	}

	if core != "" {
		cw, err := zw.Create("docProps/core.xml")
		if err != nil {
			t.Fatalf("create core entry: %v", err)
		}
		if _, err := cw.Write([]byte(core)); err != nil {
			t.Fatalf("write core entry: %v", err)
		}
	}

	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractDocxTextAndProperties(t *testing.T) {
	t.Parallel()

	body := `<?xml version="1.0"?>
	<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
	  <w:body>
	    <w:p><w:r><w:t>Uzasadnienie projektu ustawy</w:t></w:r></w:p>
	    <w:p><w:r><w:t>Skutki finansowe dla budżetu</w:t></w:r></w:p>
	  </w:body>
	</w:document>`
	core := `<?xml version="1.0"?>
	<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
	  xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
	  <dc:creator>Kancelaria Sejmu</dc:creator>
	  <dcterms:created>2024-03-01T10:00:00Z</dcterms:created>
	</cp:coreProperties>`

	e := testExtractor(nil, nil)
	res, err := e.Extract(context.Background(), buildDocx(t, body, core), "docx")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if !strings.Contains(res.Text, "Uzasadnienie projektu ustawy") {
		t.Fatalf("paragraph text missing: %q", res.Text)
	}
	if !strings.Contains(res.Text, "\n") {
		t.Fatalf("expected paragraph break in %q", res.Text)
	}
	if res.Author != "Kancelaria Sejmu" {
		t.Fatalf("unexpected author: %q", res.Author)
	}
	if res.FileDate != "2024-03-01T10:00:00Z" {
		t.Fatalf("unexpected file date: %q", res.FileDate)
	}
}

type fakeRenderer struct {
	pages    int
	failPage int // 1-based; 0 disables
}

func (f fakeRenderer) Open(data []byte) (PageSequence, error) {
	if len(data) == 0 {
		return nil, errors.New("empty input")
	}
	return &fakeSequence{pages: f.pages, failPage: f.failPage}, nil
}

type fakeSequence struct {
	pages    int
	failPage int
}

func (s *fakeSequence) Count() int { return s.pages }

func (s *fakeSequence) RenderPage(index, dpi int) ([]byte, error) {
	if index+1 == s.failPage {
		return nil, errors.New("render failure")
	}
	return []byte(fmt.Sprintf("page-%d", index+1)), nil
}

func (s *fakeSequence) Close() error { return nil }

type fakeRecognizer struct {
	confidence float64
}

func (r fakeRecognizer) Recognize(_ context.Context, image []byte) (string, float64, error) {
	return "rozpoznany tekst " + string(image), r.confidence, nil
}

func TestExtractFallsBackToOptical(t *testing.T) {
	t.Parallel()

	// Bytes that are not a valid PDF: the text-layer strategy fails and the
	// optical fallback takes over.
	e := testExtractor(fakeRenderer{pages: 2}, fakeRecognizer{confidence: 0.8})
	res, err := e.Extract(context.Background(), []byte("scan bytes"), "pdf")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if res.Method != domain.MethodOptical {
		t.Fatalf("expected optical method, got %s", res.Method)
	}
	if res.Confidence == nil {
		t.Fatal("expected aggregate confidence for optical extraction")
	}
	if *res.Confidence < 0.79 || *res.Confidence > 0.81 {
		t.Fatalf("unexpected confidence: %f", *res.Confidence)
	}
	if !strings.Contains(res.Text, "page-1") || !strings.Contains(res.Text, "page-2") {
		t.Fatalf("expected per-page text in order, got %q", res.Text)
	}
	if strings.Index(res.Text, "page-1") > strings.Index(res.Text, "page-2") {
		t.Fatalf("pages out of order: %q", res.Text)
	}
}

func TestOpticalSkipsFailedPages(t *testing.T) {
	t.Parallel()

	e := testExtractor(fakeRenderer{pages: 3, failPage: 2}, fakeRecognizer{confidence: 0.5})
	res, err := e.Extract(context.Background(), []byte("scan bytes"), "pdf")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if !strings.Contains(res.Text, "[page 2 unreadable]") {
		t.Fatalf("expected placeholder for failed page, got %q", res.Text)
	}
	if !strings.Contains(res.Text, "page-1") || !strings.Contains(res.Text, "page-3") {
		t.Fatalf("surviving pages missing: %q", res.Text)
	}
}

func TestNormalizeFormat(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"pdf":                      formatPDF,
		"application/pdf":          formatPDF,
		".PDF":                     formatPDF,
		"docx":                     formatDOCX,
		"text/html; charset=utf-8": formatHTML,
		"txt":                      formatText,
		"image/tiff":               formatImage,
		"":                         "",
		"exe":                      "",
	}
	for in, want := range cases {
		if got := normalizeFormat(in); got != want {
			t.Fatalf("normalizeFormat(%q) = %q, want %q", in, got, want)
		}
	}
}
