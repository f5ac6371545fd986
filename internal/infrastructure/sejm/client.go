package sejm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"SejmAudit/internal/domain"
	"SejmAudit/internal/ports"
)

// Client resolves process metadata from the Sejm public API through the
// resilient fetcher. It assembles the process detail together with every
// referenced print so the tree builder can stay a pure function.
type Client struct {
	baseURL string
	fetcher ports.Fetcher
	logger  *slog.Logger
}

var _ ports.MetadataSource = (*Client)(nil)

// NewClient wires the upstream base URL with the shared fetcher.
func NewClient(baseURL string, fetcher ports.Fetcher, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		fetcher: fetcher,
		logger:  logger,
	}
}

// processPayload mirrors the upstream process detail. Numbers arrive as
// either strings or integers depending on term, hence json.Number.
type processPayload struct {
	Number       json.Number    `json:"number"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	DocumentType string         `json:"documentType"`
	State        string         `json:"state"`
	SponsorCount int            `json:"sponsorCount"`
	Signatories  []string       `json:"signatories"`
	Prints       []json.Number  `json:"prints"`
	Stages       []stagePayload `json:"stages"`
}

type stagePayload struct {
	StageName   string         `json:"stageName"`
	Date        string         `json:"date"`
	Comment     string         `json:"comment"`
	PrintNumber json.Number    `json:"printNumber"`
	Children    []childPayload `json:"children"`
}

type childPayload struct {
	Term   int         `json:"term"`
	Number json.Number `json:"number"`
	Title  string      `json:"title"`
}

type printPayload struct {
	Number       json.Number `json:"number"`
	Title        string      `json:"title"`
	DocumentDate string      `json:"documentDate"`
	DeliveryDate string      `json:"deliveryDate"`
	Attachments  []string    `json:"attachments"`
}

// ListProcesses returns the header of every process tracked in a term.
func (c *Client) ListProcesses(ctx context.Context, term int) ([]domain.ProcessHeader, error) {
	var payload []processPayload
	listURL := fmt.Sprintf("%s/term%d/processes", c.baseURL, term)
	if err := c.fetcher.FetchJSON(ctx, listURL, &payload); err != nil {
		return nil, fmt.Errorf("list processes term %d: %w", term, err)
	}

	headers := make([]domain.ProcessHeader, 0, len(payload))
	for _, p := range payload {
		num := p.Number.String()
		if num == "" {
			continue
		}
		headers = append(headers, domain.ProcessHeader{
			ID:     domain.ProcessID{Term: term, Number: num},
			Title:  p.Title,
			Status: p.State,
		})
	}
	c.debug("listed processes", "term", term, "count", len(headers))
	return headers, nil
}

// ProcessMetadata fetches the process detail plus every referenced print.
// A print that cannot be fetched is recorded without attachments instead of
// failing the whole process.
func (c *Client) ProcessMetadata(ctx context.Context, id domain.ProcessID) (domain.RawProcess, error) {
	var payload processPayload
	detailURL := fmt.Sprintf("%s/term%d/processes/%s", c.baseURL, id.Term, url.PathEscape(id.Number))
	if err := c.fetcher.FetchJSON(ctx, detailURL, &payload); err != nil {
		return domain.RawProcess{}, fmt.Errorf("process %s: %w", id, err)
	}

	raw := domain.RawProcess{
		Term:         id.Term,
		Number:       id.Number,
		Title:        payload.Title,
		Description:  payload.Description,
		DocumentType: payload.DocumentType,
		Status:       payload.State,
		SponsorCount: payload.SponsorCount,
		Signatories:  payload.Signatories,
	}

	for _, s := range payload.Stages {
		stage := domain.RawStage{
			Name:        s.StageName,
			Date:        s.Date,
			Comment:     s.Comment,
			PrintNumber: s.PrintNumber.String(),
		}
		for _, ch := range s.Children {
			childTerm := ch.Term
			if childTerm == 0 {
				childTerm = id.Term
			}
			stage.Children = append(stage.Children, domain.RawChild{
				Term:   childTerm,
				Number: ch.Number.String(),
				Title:  ch.Title,
			})
		}
		raw.Stages = append(raw.Stages, stage)
	}

	for _, num := range printNumbers(payload) {
		pr, err := c.fetchPrint(ctx, id.Term, num)
		if err != nil {
			c.debug("print fetch failed", "process", id.String(), "print", num, "error", err)
			raw.Prints = append(raw.Prints, domain.RawPrint{Number: num})
			continue
		}
		raw.Prints = append(raw.Prints, pr)
	}

	return raw, nil
}

func (c *Client) fetchPrint(ctx context.Context, term int, number string) (domain.RawPrint, error) {
	var payload printPayload
	printURL := fmt.Sprintf("%s/term%d/prints/%s", c.baseURL, term, url.PathEscape(number))
	if err := c.fetcher.FetchJSON(ctx, printURL, &payload); err != nil {
		return domain.RawPrint{}, err
	}

	pr := domain.RawPrint{
		Number:       number,
		Title:        payload.Title,
		DocumentDate: payload.DocumentDate,
		DeliveryDate: payload.DeliveryDate,
		Attachments:  payload.Attachments,
	}
	for _, att := range payload.Attachments {
		pr.AttachmentURLs = append(pr.AttachmentURLs,
			fmt.Sprintf("%s/term%d/prints/%s/%s", c.baseURL, term, url.PathEscape(number), url.PathEscape(att)))
	}
	return pr, nil
}

// printNumbers dedupes print references from the process-level list and the
// per-stage printNumber fields, preserving first-seen order.
func printNumbers(payload processPayload) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(n json.Number) {
		s := n.String()
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	for _, n := range payload.Prints {
		add(n)
	}
	for _, s := range payload.Stages {
		add(s.PrintNumber)
	}
	return out
}

func (c *Client) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
