package ports

import (
	"context"

	"SejmAudit/internal/domain"
)

// Fetcher performs all outbound retrieval with timeout, retry/backoff, and
// shared rate limiting. No caching happens at this layer.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	FetchJSON(ctx context.Context, url string, v any) error
}

// MetadataSource lists and resolves process metadata from the upstream API.
type MetadataSource interface {
	ListProcesses(ctx context.Context, term int) ([]domain.ProcessHeader, error)
	ProcessMetadata(ctx context.Context, id domain.ProcessID) (domain.RawProcess, error)
}

// Extractor recovers plain text from raw document bytes.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mediaType string) (domain.ExtractionResult, error)
}

// AuditRepository persists assessments across runs for deduplication/history.
type AuditRepository interface {
	AlreadyAudited(ctx context.Context, keys []string) (map[string]bool, error)
	SaveAssessment(ctx context.Context, key string, assessment domain.RiskAssessment, status domain.OutcomeStatus) error
}

// Notifier delivers the final run summary to an external channel.
type Notifier interface {
	PublishSummary(ctx context.Context, summary string) error
}
