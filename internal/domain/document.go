package domain

// ExtractionMethod records how text was recovered from a document.
type ExtractionMethod string

const (
	MethodNone    ExtractionMethod = "none"
	MethodDirect  ExtractionMethod = "direct"
	MethodOptical ExtractionMethod = "optical"
)

// Document is one attachment of a stage (bill text, opinion, annex).
// The byte buffer is owned exclusively by the document once fetched and is
// released after extraction to bound memory.
type Document struct {
	URL        string           `json:"url"`
	Filename   string           `json:"filename"`
	MediaType  string           `json:"mediaType,omitempty"`
	Size       int64            `json:"size"`
	Bytes      []byte           `json:"-"`
	SHA256     string           `json:"sha256,omitempty"`
	Text       string           `json:"text,omitempty"`
	Method     ExtractionMethod `json:"method"`
	Confidence *float64         `json:"confidence,omitempty"`
	Author     string           `json:"author,omitempty"`
	FileDate   string           `json:"fileDate,omitempty"`
	FetchErr   string           `json:"fetchError,omitempty"`
	ExtractErr string           `json:"extractError,omitempty"`
}

// HasText reports whether extraction produced usable text.
func (d *Document) HasText() bool {
	return d != nil && d.Method != MethodNone && d.Text != ""
}

// ReleaseBytes drops the raw buffer after extraction, keeping only Size/SHA256.
func (d *Document) ReleaseBytes() {
	d.Bytes = nil
}

// ExtractionResult is the extractor's verdict for one document.
type ExtractionResult struct {
	Text       string
	Method     ExtractionMethod
	Confidence *float64
	Author     string
	FileDate   string
}
