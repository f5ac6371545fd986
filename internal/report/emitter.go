package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"SejmAudit/internal/domain"
)

// Artifact is the stable-schema raw JSON document written per process.
type Artifact struct {
	Process     domain.Process        `json:"process"`
	Assessment  domain.RiskAssessment `json:"assessment"`
	GeneratedAt time.Time             `json:"generatedAt"`
}

// RenderJSON emits the full raw artifact. Deterministic for identical inputs
// and generatedAt.
func RenderJSON(p domain.Process, a domain.RiskAssessment, generatedAt time.Time) ([]byte, error) {
	data, err := json.MarshalIndent(Artifact{
		Process:     p,
		Assessment:  a,
		GeneratedAt: generatedAt,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	return data, nil
}

// RenderStructureTree renders the process as an indented tree in structural
// (source-declared) order.
func RenderStructureTree(p domain.Process, generatedAt time.Time) string {
	var sb strings.Builder
	header(&sb, "PROCESS STRUCTURE", p, generatedAt)

	for i, s := range p.Stages {
		last := i == len(p.Stages)-1
		connector := "├── "
		childPrefix := "│   "
		if last {
			connector = "└── "
			childPrefix = "    "
		}
		sb.WriteString(fmt.Sprintf("%s[%s] %s%s\n", connector, s.Kind, s.RawLabel, dateSuffix(s)))

		for j, d := range s.Documents {
			dc := "├── "
			if j == len(s.Documents)-1 && len(s.Links) == 0 {
				dc = "└── "
			}
			sb.WriteString(fmt.Sprintf("%s%s%s (%s)\n", childPrefix, dc, d.Filename, extractionNote(d)))
		}
		for j, l := range s.Links {
			lc := "├── "
			if j == len(s.Links)-1 {
				lc = "└── "
			}
			sb.WriteString(fmt.Sprintf("%s%s→ linked process %s %s\n", childPrefix, lc, l.ID, l.Label))
		}
	}

	return sb.String()
}

// RenderTimeline renders stages in chronological order; stages whose date
// could not be recovered sort last and are flagged.
func RenderTimeline(p domain.Process, generatedAt time.Time) string {
	var sb strings.Builder
	header(&sb, "PROCESS TIMELINE", p, generatedAt)

	for _, s := range p.ChronologicalStages() {
		when := "date unknown"
		if s.Date.Known() {
			when = s.Date.Value.Format("2006-01-02")
			if s.Date.Precision != domain.PrecisionDay {
				when += fmt.Sprintf(" (~%s precision)", s.Date.Precision)
			}
		}
		flag := ""
		if s.DateUncertain() {
			flag = " [date uncertain]"
		}
		sb.WriteString(fmt.Sprintf("%-28s [%s] %s%s\n", when, s.Kind, s.RawLabel, flag))
		if len(s.Documents) > 0 {
			sb.WriteString(fmt.Sprintf("%-28s attachments: %d\n", "", len(s.Documents)))
		}
	}

	return sb.String()
}

// RenderSummary combines the top risk indicators with their justifications
// and the document inventory.
func RenderSummary(p domain.Process, a domain.RiskAssessment, generatedAt time.Time) string {
	var sb strings.Builder
	header(&sb, "AUDIT SUMMARY", p, generatedAt)

	sb.WriteString(fmt.Sprintf("Risk score: %d/%d\n", a.Score, domain.MaxScore))
	sb.WriteString(fmt.Sprintf("Stages: %d  Documents: %d  Anomalies: %d  Linked processes: %d\n\n",
		len(p.Stages), len(p.AllDocuments()), len(p.Anomalies), len(p.Links)))

	if len(a.Indicators) == 0 {
		sb.WriteString("No risk indicators triggered.\n")
	} else {
		sb.WriteString("Triggered indicators (by weight):\n")
		sorted := make([]domain.Indicator, len(a.Indicators))
		copy(sorted, a.Indicators)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Weight > sorted[j].Weight })
		for _, ind := range sorted {
			sb.WriteString(fmt.Sprintf("  [%2d] %-22s %s\n", ind.Weight, ind.Code, ind.Justification))
		}
	}

	docs := p.AllDocuments()
	if len(docs) > 0 {
		sb.WriteString("\nDocuments:\n")
		for _, d := range docs {
			sb.WriteString(fmt.Sprintf("  %s — %s\n", d.Filename, extractionNote(d)))
		}
	}

	return sb.String()
}

// RenderRunSummary enumerates per-process outcomes for the whole run,
// distinguishing partial successes from full failures.
func RenderRunSummary(run domain.AuditRun) string {
	var sb strings.Builder
	succeeded, partial, failed := run.Counts()

	sb.WriteString(fmt.Sprintf("Audit run %s", scopeLabel(run.Scope)))
	sb.WriteString(fmt.Sprintf("\nStarted:  %s\nFinished: %s\n", run.Started.Format(time.RFC3339), run.Finished.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Processes: %d succeeded, %d partial, %d failed\n", succeeded, partial, failed))

	for _, o := range run.Outcomes {
		switch o.Status {
		case domain.OutcomeSuccess:
			sb.WriteString(fmt.Sprintf("  OK      %-18s score %d\n", o.ID, o.Score))
		case domain.OutcomePartial:
			sb.WriteString(fmt.Sprintf("  PARTIAL %-18s score %d (%s)\n", o.ID, o.Score, o.Reason))
		case domain.OutcomeFailed:
			sb.WriteString(fmt.Sprintf("  FAILED  %-18s %s\n", o.ID, o.Reason))
		}
	}

	return sb.String()
}

func scopeLabel(s domain.RunScope) string {
	if s.SingleProcess() {
		return fmt.Sprintf("(term %d, process %s)", s.Term, s.Number)
	}
	return fmt.Sprintf("(term %d, full scan)", s.Term)
}

func header(sb *strings.Builder, title string, p domain.Process, generatedAt time.Time) {
	sb.WriteString(strings.Repeat("=", 78) + "\n")
	sb.WriteString(fmt.Sprintf("%s — %s\n", title, p.ID))
	sb.WriteString(fmt.Sprintf("Title: %s\n", p.Title))
	if p.Status != "" {
		sb.WriteString(fmt.Sprintf("Status: %s\n", p.Status))
	}
	sb.WriteString(fmt.Sprintf("Generated at: %s\n", generatedAt.Format(time.RFC3339)))
	sb.WriteString(strings.Repeat("=", 78) + "\n\n")
}

func dateSuffix(s domain.Stage) string {
	if !s.Date.Known() {
		return " (date unknown)"
	}
	return fmt.Sprintf(" (%s)", s.Date.Value.Format("2006-01-02"))
}

func extractionNote(d *domain.Document) string {
	switch {
	case d.FetchErr != "":
		return "fetch failed: " + d.FetchErr
	case d.Method == domain.MethodOptical && d.Confidence != nil:
		return fmt.Sprintf("text via optical recognition, confidence %.2f", *d.Confidence)
	case d.Method == domain.MethodOptical:
		return "text via optical recognition"
	case d.Method == domain.MethodDirect:
		return "text extracted directly"
	case d.ExtractErr != "":
		return "no text: " + d.ExtractErr
	default:
		return "no text extracted"
	}
}
