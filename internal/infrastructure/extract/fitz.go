package extract

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer rasterizes PDF (and image) documents via MuPDF.
type FitzRenderer struct{}

var _ PageRenderer = (*FitzRenderer)(nil)

// Open parses the document from memory.
func (FitzRenderer) Open(data []byte) (PageSequence, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("mupdf open: %w", err)
	}
	return &fitzSequence{doc: doc}, nil
}

type fitzSequence struct {
	doc *fitz.Document
}

func (s *fitzSequence) Count() int {
	return s.doc.NumPage()
}

// RenderPage renders one page to PNG at the requested DPI.
func (s *fitzSequence) RenderPage(index, dpi int) ([]byte, error) {
	img, err := s.doc.ImageDPI(index, float64(dpi))
	if err != nil {
		return nil, fmt.Errorf("render page %d: %w", index, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", index, err)
	}
	return buf.Bytes(), nil
}

func (s *fitzSequence) Close() error {
	return s.doc.Close()
}
