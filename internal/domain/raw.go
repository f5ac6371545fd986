package domain

// ProcessHeader is the list entry returned by the term-wide process index.
type ProcessHeader struct {
	ID     ProcessID `json:"id"`
	Title  string    `json:"title"`
	Status string    `json:"status,omitempty"`
}

// RawProcess is the assembled upstream metadata for one process: the process
// detail plus the detail of every print it references. The tree builder is a
// pure function of this value.
type RawProcess struct {
	Term         int        `json:"term"`
	Number       string     `json:"number"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	DocumentType string     `json:"documentType,omitempty"`
	Status       string     `json:"state,omitempty"`
	SponsorCount int        `json:"sponsorCount,omitempty"`
	Signatories  []string   `json:"signatories,omitempty"`
	Stages       []RawStage `json:"stages,omitempty"`
	Prints       []RawPrint `json:"prints,omitempty"`
}

// RawStage is one upstream stage record. The stage vocabulary is open and
// inconsistent across terms; Name is preserved verbatim.
type RawStage struct {
	Name        string     `json:"stageName"`
	Date        string     `json:"date,omitempty"`
	Comment     string     `json:"comment,omitempty"`
	PrintNumber string     `json:"printNumber,omitempty"`
	Children    []RawChild `json:"children,omitempty"`
}

// RawChild references a linked sub-process (e.g., an amendment tracked on
// its own).
type RawChild struct {
	Term   int    `json:"term,omitempty"`
	Number string `json:"number"`
	Title  string `json:"title,omitempty"`
}

// RawPrint is one print (druk) with its attachment inventory. URL building
// for attachments is the metadata source's concern; tree building only reads
// the resolved AttachmentURLs.
type RawPrint struct {
	Number         string   `json:"number"`
	Title          string   `json:"title,omitempty"`
	DocumentDate   string   `json:"documentDate,omitempty"`
	DeliveryDate   string   `json:"deliveryDate,omitempty"`
	Attachments    []string `json:"attachments,omitempty"`
	AttachmentURLs []string `json:"attachmentUrls,omitempty"`
}
