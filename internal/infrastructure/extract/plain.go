package extract

import (
	"context"
	"strings"
	"unicode/utf8"

	"SejmAudit/internal/domain"
)

// plainText treats the payload as UTF-8, dropping invalid sequences the way
// a lenient decode would.
func plainText(_ context.Context, data []byte) (domain.ExtractionResult, error) {
	if utf8.Valid(data) {
		return domain.ExtractionResult{Text: strings.TrimSpace(string(data))}, nil
	}

	var sb strings.Builder
	sb.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r != utf8.RuneError || size != 1 {
			sb.WriteRune(r)
		}
		data = data[size:]
	}
	return domain.ExtractionResult{Text: strings.TrimSpace(sb.String())}, nil
}
