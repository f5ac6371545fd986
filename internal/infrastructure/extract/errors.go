package extract

import "fmt"

// UnsupportedFormatError reports a document format no strategy can parse.
type UnsupportedFormatError struct {
	MediaType string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("extract: unsupported format %q", e.MediaType)
}

// ExtractionFailedError reports that every applicable strategy, direct and
// optical, failed to produce text. Recoverable at the document level.
type ExtractionFailedError struct {
	MediaType string
	Err       error
}

func (e *ExtractionFailedError) Error() string {
	return fmt.Sprintf("extract: all strategies failed for %q: %v", e.MediaType, e.Err)
}

func (e *ExtractionFailedError) Unwrap() error { return e.Err }
