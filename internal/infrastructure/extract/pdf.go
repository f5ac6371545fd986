package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"SejmAudit/internal/domain"
)

// pdfTextLayer reads the embedded text layer page by page. Scanned documents
// typically yield empty pages here and fall through to the optical strategy.
func pdfTextLayer(_ context.Context, data []byte) (res domain.ExtractionResult, err error) {
	// The parser panics on some malformed files; degrade to an error so the
	// strategy table can move on.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parse panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}

	return domain.ExtractionResult{Text: strings.TrimSpace(sb.String())}, nil
}
