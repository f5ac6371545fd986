package extract

import (
	"context"
	"fmt"

	"github.com/otiai10/gosseract/v2"
)

// TesseractRecognizer runs optical recognition through a Tesseract client.
// One client per recognizer; callers serialize access per document, the
// orchestrator bounds document-level parallelism to the configured pool.
type TesseractRecognizer struct {
	language string
}

var _ Recognizer = (*TesseractRecognizer)(nil)

// NewTesseractRecognizer sets the recognition language (e.g. "pol").
func NewTesseractRecognizer(language string) *TesseractRecognizer {
	if language == "" {
		language = "pol"
	}
	return &TesseractRecognizer{language: language}
}

// Recognize OCRs one rendered page. Confidence is the mean of per-line
// confidences scaled to [0,1].
func (r *TesseractRecognizer) Recognize(ctx context.Context, image []byte) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", -1, err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(r.language); err != nil {
		return "", -1, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", -1, fmt.Errorf("set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return "", -1, fmt.Errorf("recognize: %w", err)
	}

	confidence := -1.0
	if boxes, err := client.GetBoundingBoxes(gosseract.RIL_TEXTLINE); err == nil && len(boxes) > 0 {
		var sum float64
		for _, b := range boxes {
			sum += b.Confidence
		}
		confidence = sum / float64(len(boxes)) / 100
	}

	return text, confidence, nil
}
