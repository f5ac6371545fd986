package report

import (
	"strings"
	"testing"
	"time"

	"SejmAudit/internal/domain"
)

func sampleProcess() domain.Process {
	conf := 0.82
	day := func(d string) domain.PartialDate {
		t, _ := time.Parse("2006-01-02", d)
		return domain.PartialDate{Value: t.UTC(), Precision: domain.PrecisionDay}
	}
	return domain.Process{
		ID:     domain.ProcessID{Term: 10, Number: "471"},
		Title:  "o zmianie ustawy o finansach publicznych",
		Status: "zamknięty",
		Stages: []domain.Stage{
			{
				Kind:            domain.KindSubmission,
				RawLabel:        "Projekt wpłynął do Sejmu",
				Date:            day("2024-01-10"),
				StructuralIndex: 0,
				Documents: []*domain.Document{
					{Filename: "471.pdf", Method: domain.MethodOptical, Text: "tekst", Confidence: &conf},
					{Filename: "471-u.docx", Method: domain.MethodDirect, Text: "uzasadnienie"},
				},
			},
			{
				Kind:            domain.KindVote,
				RawLabel:        "Głosowanie",
				Date:            day("2024-03-01"),
				StructuralIndex: 1,
				Links: []domain.ProcessLink{
					{ID: domain.ProcessID{Term: 10, Number: "512"}, Label: "projekt powiązany"},
				},
			},
			{
				Kind:            domain.KindOther,
				RawLabel:        "etap bez daty",
				Date:            domain.PartialDate{Precision: domain.PrecisionUnknown},
				StructuralIndex: 2,
			},
		},
		Links: []domain.ProcessLink{
			{ID: domain.ProcessID{Term: 10, Number: "512"}, Label: "projekt powiązany"},
		},
	}
}

func sampleAssessment() domain.RiskAssessment {
	return domain.RiskAssessment{
		ProcessID: domain.ProcessID{Term: 10, Number: "471"},
		Score:     35,
		Indicators: []domain.Indicator{
			{Code: "missing_committee", Weight: 15, Justification: "vote without committee stage"},
			{Code: "fast_passage", Weight: 20, Justification: "51 days between first and last stage"},
		},
		SnapshotAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestRenderJSONIsDeterministic(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	first, err := RenderJSON(sampleProcess(), sampleAssessment(), at)
	if err != nil {
		t.Fatalf("RenderJSON error: %v", err)
	}
	second, _ := RenderJSON(sampleProcess(), sampleAssessment(), at)
	if string(first) != string(second) {
		t.Fatal("identical inputs must serialize identically")
	}
	if !strings.Contains(string(first), `"term10/471"`) && !strings.Contains(string(first), `"number": "471"`) {
		t.Fatalf("process identity missing from artifact: %s", first)
	}
}

func TestRenderStructureTreeFollowsStructuralOrder(t *testing.T) {
	t.Parallel()

	out := RenderStructureTree(sampleProcess(), time.Now())

	if !strings.Contains(out, "PROCESS STRUCTURE — term10/471") {
		t.Fatalf("header missing: %s", out)
	}
	sub := strings.Index(out, "Projekt wpłynął do Sejmu")
	vote := strings.Index(out, "Głosowanie")
	if sub < 0 || vote < 0 || sub > vote {
		t.Fatalf("stages out of structural order:\n%s", out)
	}
	if !strings.Contains(out, "471.pdf") || !strings.Contains(out, "471-u.docx") {
		t.Fatalf("documents missing from tree:\n%s", out)
	}
	if !strings.Contains(out, "→ linked process term10/512") {
		t.Fatalf("linked process reference missing:\n%s", out)
	}
	if !strings.Contains(out, "└── ") || !strings.Contains(out, "├── ") {
		t.Fatalf("tree connectors missing:\n%s", out)
	}
}

func TestRenderTimelineSortsAndFlagsUnknownDates(t *testing.T) {
	t.Parallel()

	out := RenderTimeline(sampleProcess(), time.Now())

	first := strings.Index(out, "2024-01-10")
	second := strings.Index(out, "2024-03-01")
	unknown := strings.Index(out, "etap bez daty")
	if first < 0 || second < 0 || unknown < 0 {
		t.Fatalf("timeline entries missing:\n%s", out)
	}
	if !(first < second && second < unknown) {
		t.Fatalf("timeline out of chronological order:\n%s", out)
	}
	if !strings.Contains(out, "[date uncertain]") {
		t.Fatalf("undated stage not flagged:\n%s", out)
	}
}

func TestRenderTimelineNotesReducedPrecision(t *testing.T) {
	t.Parallel()

	p := sampleProcess()
	m, _ := time.Parse("2006-01", "2024-02")
	p.Stages[1].Date = domain.PartialDate{Value: m.UTC(), Precision: domain.PrecisionMonth}

	out := RenderTimeline(p, time.Now())
	if !strings.Contains(out, "precision)") {
		t.Fatalf("month precision not annotated:\n%s", out)
	}
}

func TestRenderSummaryOrdersIndicatorsByWeight(t *testing.T) {
	t.Parallel()

	out := RenderSummary(sampleProcess(), sampleAssessment(), time.Now())

	if !strings.Contains(out, "Risk score: 35/100") {
		t.Fatalf("score line missing:\n%s", out)
	}
	fast := strings.Index(out, "fast_passage")
	committee := strings.Index(out, "missing_committee")
	if fast < 0 || committee < 0 || fast > committee {
		t.Fatalf("indicators not sorted by descending weight:\n%s", out)
	}
	if !strings.Contains(out, "confidence 0.82") {
		t.Fatalf("optical confidence missing from document inventory:\n%s", out)
	}
	if !strings.Contains(out, "text extracted directly") {
		t.Fatalf("direct extraction note missing:\n%s", out)
	}
}

func TestRenderSummaryWithoutIndicators(t *testing.T) {
	t.Parallel()

	a := domain.RiskAssessment{ProcessID: domain.ProcessID{Term: 10, Number: "471"}}
	out := RenderSummary(sampleProcess(), a, time.Now())
	if !strings.Contains(out, "No risk indicators triggered.") {
		t.Fatalf("expected empty-indicator note:\n%s", out)
	}
}

func TestRenderRunSummaryDistinguishesOutcomes(t *testing.T) {
	t.Parallel()

	run := domain.AuditRun{
		Scope:    domain.RunScope{Term: 10},
		Started:  time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		Finished: time.Date(2024, 6, 1, 13, 30, 0, 0, time.UTC),
		Outcomes: []domain.ProcessOutcome{
			{ID: domain.ProcessID{Term: 10, Number: "471"}, Status: domain.OutcomeSuccess, Score: 35},
			{ID: domain.ProcessID{Term: 10, Number: "472"}, Status: domain.OutcomePartial, Score: 20, Reason: "1 of 3 documents without text"},
			{ID: domain.ProcessID{Term: 10, Number: "473"}, Status: domain.OutcomeFailed, Reason: "metadata fetch failed"},
		},
	}

	out := RenderRunSummary(run)
	if !strings.Contains(out, "(term 10, full scan)") {
		t.Fatalf("scope label missing:\n%s", out)
	}
	if !strings.Contains(out, "1 succeeded, 1 partial, 1 failed") {
		t.Fatalf("counts missing:\n%s", out)
	}
	if !strings.Contains(out, "OK      term10/471") {
		t.Fatalf("success line missing:\n%s", out)
	}
	if !strings.Contains(out, "PARTIAL term10/472") || !strings.Contains(out, "1 of 3 documents without text") {
		t.Fatalf("partial line missing:\n%s", out)
	}
	if !strings.Contains(out, "FAILED  term10/473") || !strings.Contains(out, "metadata fetch failed") {
		t.Fatalf("failure line missing:\n%s", out)
	}
}
