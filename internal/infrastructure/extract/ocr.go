package extract

import (
	"context"
	"fmt"
	"strings"

	"SejmAudit/internal/domain"
)

// PageRenderer opens a document and rasterizes it one page at a time, so a
// 500-page scan never holds more than one rendered page in memory.
type PageRenderer interface {
	Open(data []byte) (PageSequence, error)
}

// PageSequence is an open document handle for page-by-page rendering.
type PageSequence interface {
	Count() int
	RenderPage(index, dpi int) ([]byte, error)
	Close() error
}

// Recognizer turns one rendered page image into text with a confidence in
// [0,1]. Implementations may report confidence < 0 when unavailable.
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (text string, confidence float64, err error)
}

// opticalStrategy is the last entry of the extraction table: rasterize each
// page, recognize it, concatenate in page order. A page that fails is
// replaced with a marker instead of aborting the document.
type opticalStrategy struct {
	renderer   PageRenderer
	recognizer Recognizer
	dpi        int
}

func (o *opticalStrategy) run(ctx context.Context, data []byte) (domain.ExtractionResult, error) {
	seq, err := o.renderer.Open(data)
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("rasterize: %w", err)
	}
	defer seq.Close()

	dpi := o.dpi
	if dpi <= 0 {
		dpi = 200
	}

	var (
		sb        strings.Builder
		confSum   float64
		confPages int
	)

	for i := 0; i < seq.Count(); i++ {
		if err := ctx.Err(); err != nil {
			return domain.ExtractionResult{}, err
		}

		img, err := seq.RenderPage(i, dpi)
		if err != nil {
			sb.WriteString(fmt.Sprintf("[page %d unreadable]\n", i+1))
			continue
		}
		text, conf, err := o.recognizer.Recognize(ctx, img)
		if err != nil {
			sb.WriteString(fmt.Sprintf("[page %d unreadable]\n", i+1))
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
		if conf >= 0 {
			confSum += conf
			confPages++
		}
	}

	res := domain.ExtractionResult{Text: strings.TrimSpace(sb.String())}
	if confPages > 0 {
		mean := confSum / float64(confPages)
		res.Confidence = &mean
	}
	return res, nil
}
