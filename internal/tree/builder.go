package tree

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/mozillazg/go-unidecode"

	"SejmAudit/internal/domain"
)

// Builder turns raw upstream metadata into a normalized Process. It is a
// pure function of its input: identical metadata yields a deeply equal tree.
type Builder struct {
	gapDays int
}

// NewBuilder configures the stage-gap anomaly threshold in days.
func NewBuilder(gapDays int) *Builder {
	if gapDays <= 0 {
		gapDays = 180
	}
	return &Builder{gapDays: gapDays}
}

// Build normalizes stage records, parses dates with decreasing precision,
// attaches print documents to their stages, records linked sub-processes as
// references, and detects structural anomalies as data.
func (b *Builder) Build(raw domain.RawProcess) domain.Process {
	p := domain.Process{
		ID:          domain.ProcessID{Term: raw.Term, Number: raw.Number},
		Title:       raw.Title,
		Status:      raw.Status,
		Description: raw.Description,
		Sponsors:    raw.SponsorCount,
		Signatories: raw.Signatories,
	}

	for i, rs := range raw.Stages {
		stage := domain.Stage{
			Kind:            NormalizeKind(rs.Name),
			RawLabel:        rs.Name,
			Date:            ParseDate(rs.Date),
			Description:     rs.Comment,
			StructuralIndex: i,
		}
		for _, ch := range rs.Children {
			stage.Links = append(stage.Links, domain.ProcessLink{
				ID:    domain.ProcessID{Term: ch.Term, Number: ch.Number},
				Label: ch.Title,
			})
		}
		p.Stages = append(p.Stages, stage)
	}

	b.attachPrints(&p, raw.Prints, raw.Stages)
	p.Links = collectLinks(p.Stages)
	p.Anomalies = b.detectAnomalies(p.Stages)

	return p
}

// attachPrints places each print's documents on the stage referencing it.
// Prints no stage claims land on the submission stage (or the first stage);
// a process with prints but no stages gets a synthetic "other" stage so the
// documents are never dropped.
func (b *Builder) attachPrints(p *domain.Process, prints []domain.RawPrint, rawStages []domain.RawStage) {
	byPrint := map[string]int{}
	for i, rs := range rawStages {
		if rs.PrintNumber != "" {
			if _, taken := byPrint[rs.PrintNumber]; !taken {
				byPrint[rs.PrintNumber] = i
			}
		}
	}

	fallback := -1
	for i, s := range p.Stages {
		if s.Kind == domain.KindSubmission {
			fallback = i
			break
		}
	}
	if fallback < 0 && len(p.Stages) > 0 {
		fallback = 0
	}

	for _, pr := range prints {
		target, ok := byPrint[pr.Number]
		if !ok {
			target = fallback
		}
		if target < 0 {
			p.Stages = append(p.Stages, domain.Stage{
				Kind:            domain.KindOther,
				RawLabel:        fmt.Sprintf("druk %s", pr.Number),
				Date:            ParseDate(pr.DocumentDate),
				StructuralIndex: len(p.Stages),
			})
			target = len(p.Stages) - 1
		}

		for i, u := range pr.AttachmentURLs {
			filename := path.Base(u)
			if i < len(pr.Attachments) {
				filename = pr.Attachments[i]
			}
			p.Stages[target].Documents = append(p.Stages[target].Documents, &domain.Document{
				URL:       u,
				Filename:  filename,
				MediaType: strings.TrimPrefix(path.Ext(filename), "."),
				Method:    domain.MethodNone,
			})
		}
	}
}

func collectLinks(stages []domain.Stage) []domain.ProcessLink {
	seen := map[domain.ProcessID]struct{}{}
	var links []domain.ProcessLink
	for _, s := range stages {
		for _, l := range s.Links {
			if _, ok := seen[l.ID]; ok {
				continue
			}
			seen[l.ID] = struct{}{}
			links = append(links, l)
		}
	}
	return links
}

// detectAnomalies records structural irregularities as data, never failures.
func (b *Builder) detectAnomalies(stages []domain.Stage) []domain.Anomaly {
	var anomalies []domain.Anomaly

	// A vote with no committee stage anywhere before it structurally.
	committeeSeen := false
	for i, s := range stages {
		if s.Kind == domain.KindCommittee {
			committeeSeen = true
		}
		if s.Kind == domain.KindVote && !committeeSeen {
			anomalies = append(anomalies, domain.Anomaly{
				Code:       domain.AnomalyVoteWithoutCommittee,
				StageIndex: i,
				Detail:     fmt.Sprintf("vote %q at position %d has no preceding committee stage", s.RawLabel, i),
			})
		}
	}

	// Gaps between consecutive dated stages in chronological order.
	var dated []domain.Stage
	for _, s := range stages {
		if s.Date.Known() {
			dated = append(dated, s)
		}
	}
	for i := 1; i < len(dated); i++ {
		prev, cur := dated[i-1], dated[i]
		if cur.Date.Value.Before(prev.Date.Value) {
			prev, cur = cur, prev
		}
		gap := cur.Date.Value.Sub(prev.Date.Value)
		if gap > time.Duration(b.gapDays)*24*time.Hour {
			anomalies = append(anomalies, domain.Anomaly{
				Code:       domain.AnomalyStageGap,
				StageIndex: cur.StructuralIndex,
				Detail: fmt.Sprintf("%.0f days between %q and %q exceeds threshold of %d",
					gap.Hours()/24, prev.RawLabel, cur.RawLabel, b.gapDays),
			})
		}
	}

	// Structural order contradicting chronological order.
	for i := 1; i < len(stages); i++ {
		a, c := stages[i-1], stages[i]
		if a.Date.Known() && c.Date.Known() && c.Date.Value.Before(a.Date.Value) {
			anomalies = append(anomalies, domain.Anomaly{
				Code:       domain.AnomalyOrderConflict,
				StageIndex: i,
				Detail: fmt.Sprintf("stage %q (position %d) is dated before preceding stage %q",
					c.RawLabel, i, a.RawLabel),
			})
		}
	}

	return anomalies
}

// ParseDate applies the decreasing-precision ladder: full timestamp or date,
// then year-month, then year, then unknown.
func ParseDate(value string) domain.PartialDate {
	v := strings.TrimSpace(value)
	if v == "" {
		return domain.PartialDate{Precision: domain.PrecisionUnknown}
	}

	dayFormats := []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}
	for _, f := range dayFormats {
		if t, err := time.Parse(f, v); err == nil {
			return domain.PartialDate{Value: t.UTC(), Precision: domain.PrecisionDay}
		}
	}
	if t, err := time.Parse("2006-01", v); err == nil {
		return domain.PartialDate{Value: t.UTC(), Precision: domain.PrecisionMonth}
	}
	if t, err := time.Parse("2006", v); err == nil {
		return domain.PartialDate{Value: t.UTC(), Precision: domain.PrecisionYear}
	}
	return domain.PartialDate{Precision: domain.PrecisionUnknown}
}

// NormalizeKind folds the open upstream stage vocabulary (Polish labels,
// inconsistent across terms) into the enumerated kind set. Unrecognized
// labels map to KindOther; the raw label is always preserved on the stage.
func NormalizeKind(label string) domain.StageKind {
	l := strings.ToLower(unidecode.Unidecode(label))

	switch {
	case strings.Contains(l, "wplyn") || strings.Contains(l, "wniesiono") || strings.Contains(l, "submission"):
		return domain.KindSubmission
	case strings.Contains(l, "iii czytanie") || strings.Contains(l, "3. czytanie") || strings.Contains(l, "third reading"):
		return domain.KindThirdReading
	case strings.Contains(l, "ii czytanie") || strings.Contains(l, "2. czytanie") || strings.Contains(l, "second reading"):
		return domain.KindSecondReading
	case strings.Contains(l, "i czytanie") || strings.Contains(l, "1. czytanie") || strings.Contains(l, "first reading"):
		return domain.KindFirstReading
	case strings.Contains(l, "komisj") || strings.Contains(l, "committee"):
		return domain.KindCommittee
	case strings.Contains(l, "glosowanie") || strings.Contains(l, "vote"):
		return domain.KindVote
	case strings.Contains(l, "senat"):
		return domain.KindSenate
	case strings.Contains(l, "podpis") || strings.Contains(l, "prezydent") || strings.Contains(l, "signature"):
		return domain.KindSignature
	case strings.Contains(l, "publikacj") || strings.Contains(l, "oglosz") || strings.Contains(l, "publication"):
		return domain.KindPublication
	case strings.Contains(l, "wycofan") || strings.Contains(l, "withdraw"):
		return domain.KindWithdrawal
	default:
		return domain.KindOther
	}
}
