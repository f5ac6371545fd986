package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"SejmAudit/internal/config"
	"SejmAudit/internal/domain"
	"SejmAudit/internal/ports"
)

// strategy is one entry of the ordered extraction table. Strategies are
// evaluated in declaration order until one passes the success predicate
// (non-trivial text); the optical strategy sits last as the fallback for
// scanned, image-only content.
type strategy struct {
	name    string
	method  domain.ExtractionMethod
	applies func(format string) bool
	run     func(ctx context.Context, data []byte) (domain.ExtractionResult, error)
}

// Extractor recovers plain text from heterogeneous document formats.
type Extractor struct {
	minChars   int
	strategies []strategy
	logger     *slog.Logger
}

var _ ports.Extractor = (*Extractor)(nil)

// New builds the extraction table. renderer and recognizer power the optical
// fallback; pass nil for either to disable it (text-layer paths still work).
func New(cfg config.ExtractConfig, renderer PageRenderer, recognizer Recognizer, logger *slog.Logger) *Extractor {
	e := &Extractor{
		minChars: cfg.MinTextChars,
		logger:   logger,
	}
	if e.minChars <= 0 {
		e.minChars = 64
	}

	e.strategies = []strategy{
		{
			name:    "pdf-text",
			method:  domain.MethodDirect,
			applies: func(f string) bool { return f == formatPDF },
			run:     pdfTextLayer,
		},
		{
			name:    "html",
			method:  domain.MethodDirect,
			applies: func(f string) bool { return f == formatHTML },
			run:     htmlText,
		},
		{
			name:    "docx",
			method:  domain.MethodDirect,
			applies: func(f string) bool { return f == formatDOCX },
			run:     docxText,
		},
		{
			name:    "plain",
			method:  domain.MethodDirect,
			applies: func(f string) bool { return f == formatText },
			run:     plainText,
		},
	}

	if renderer != nil && recognizer != nil {
		optical := &opticalStrategy{
			renderer:   renderer,
			recognizer: recognizer,
			dpi:        cfg.OCRDPI,
		}
		e.strategies = append(e.strategies, strategy{
			name:   "optical",
			method: domain.MethodOptical,
			applies: func(f string) bool {
				return f == formatPDF || f == formatImage
			},
			run: optical.run,
		})
	}

	return e
}

// Extract walks the strategy table for the document's format. Direct
// strategies win when they yield text above the minimum threshold; otherwise
// the optical fallback runs. When everything fails, the best sub-threshold
// text still counts as a (degraded) result rather than a hard failure.
func (e *Extractor) Extract(ctx context.Context, data []byte, mediaType string) (domain.ExtractionResult, error) {
	format := normalizeFormat(mediaType)
	if format == "" {
		return domain.ExtractionResult{Method: domain.MethodNone}, &UnsupportedFormatError{MediaType: mediaType}
	}
	if len(data) == 0 {
		return domain.ExtractionResult{Method: domain.MethodNone},
			&ExtractionFailedError{MediaType: mediaType, Err: errors.New("empty document")}
	}

	var (
		best    domain.ExtractionResult
		applied bool
		lastErr error
	)
	best.Method = domain.MethodNone

	for _, s := range e.strategies {
		if !s.applies(format) {
			continue
		}
		applied = true

		res, err := s.run(ctx, data)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", s.name, err)
			e.debug("strategy failed", "strategy", s.name, "format", format, "error", err)
			continue
		}
		res.Method = s.method

		if len(strings.TrimSpace(res.Text)) >= e.minChars {
			return res, nil
		}
		if len(strings.TrimSpace(res.Text)) > len(strings.TrimSpace(best.Text)) {
			best = res
		}
	}

	if !applied {
		return domain.ExtractionResult{Method: domain.MethodNone}, &UnsupportedFormatError{MediaType: mediaType}
	}
	if strings.TrimSpace(best.Text) != "" {
		return best, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no strategy produced text")
	}
	return domain.ExtractionResult{Method: domain.MethodNone},
		&ExtractionFailedError{MediaType: mediaType, Err: lastErr}
}

const (
	formatPDF   = "pdf"
	formatDOCX  = "docx"
	formatHTML  = "html"
	formatText  = "text"
	formatImage = "image"
)

// normalizeFormat folds declared media types, extensions, and bare format
// hints into one token. Returns "" for formats with no strategy.
func normalizeFormat(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	mt = strings.TrimPrefix(mt, ".")
	if i := strings.Index(mt, ";"); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch {
	case mt == "pdf" || mt == "application/pdf":
		return formatPDF
	case mt == "docx" || mt == "doc" ||
		strings.Contains(mt, "officedocument.wordprocessingml") ||
		mt == "application/msword":
		return formatDOCX
	case mt == "html" || mt == "htm" || mt == "text/html" || mt == "application/xhtml+xml":
		return formatHTML
	case mt == "txt" || strings.HasPrefix(mt, "text/"):
		return formatText
	case mt == "png" || mt == "jpg" || mt == "jpeg" || mt == "tif" || mt == "tiff" ||
		strings.HasPrefix(mt, "image/"):
		return formatImage
	default:
		return ""
	}
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
