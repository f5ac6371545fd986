package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"SejmAudit/internal/domain"
)

// htmlText strips markup from HTML attachments (committee opinions and
// amendments are often published as HTML pages).
func htmlText(_ context.Context, data []byte) (domain.ExtractionResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("parse html: %w", err)
	}

	doc.Find("script, style, noscript").Remove()

	body := doc.Find("body")
	text := body.Text()
	if body.Length() == 0 {
		text = doc.Text()
	}

	return domain.ExtractionResult{Text: collapseWhitespace(text)}, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
