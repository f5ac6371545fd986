package risk

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mozillazg/go-unidecode"

	"SejmAudit/internal/config"
	"SejmAudit/internal/domain"
)

// Engine evaluates independent weighted indicators over a normalized process
// and its extracted documents. Indicators never interact beyond summation,
// and the sum is clamped to the declared score range, which keeps every
// score explainable from its indicator list alone.
type Engine struct {
	cfg config.RiskConfig
}

// NewEngine builds an engine; all weights and thresholds come from config.
func NewEngine(cfg config.RiskConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Assess scores one process. Documents without extracted text degrade the
// textual indicators to not-evaluated; absence of evidence never raises the
// score.
func (e *Engine) Assess(p domain.Process, snapshotAt time.Time) domain.RiskAssessment {
	var indicators []domain.Indicator

	indicators = append(indicators, e.velocity(p)...)
	indicators = append(indicators, e.proceduralGaps(p)...)
	indicators = append(indicators, e.anomalies(p)...)
	indicators = append(indicators, e.keywords(p)...)
	indicators = append(indicators, e.sponsorMismatch(p)...)

	sum := 0
	for _, ind := range indicators {
		sum += ind.Weight
	}

	return domain.RiskAssessment{
		ProcessID:  p.ID,
		Score:      domain.ClampScore(sum),
		Indicators: indicators,
		SnapshotAt: snapshotAt,
	}
}

// velocity flags passage faster than the configured threshold between the
// first and last dated stage.
func (e *Engine) velocity(p domain.Process) []domain.Indicator {
	first, last, ok := p.KnownDateSpan()
	if !ok {
		return nil
	}
	dated := 0
	for _, s := range p.Stages {
		if s.Date.Known() {
			dated++
		}
	}
	if dated < 2 {
		return nil
	}

	span := last.Sub(first)
	threshold := time.Duration(e.cfg.VelocityDays) * 24 * time.Hour
	if span > threshold {
		return nil
	}

	return []domain.Indicator{{
		Code:   "fast_passage",
		Weight: e.cfg.Weights["fast_passage"],
		Justification: fmt.Sprintf("%d dated stages span only %.0f days (%s to %s), below the %d-day threshold",
			dated, span.Hours()/24, first.Format("2006-01-02"), last.Format("2006-01-02"), e.cfg.VelocityDays),
	}}
}

// proceduralGaps flags mandated stage kinds that are absent even though the
// process reached a vote.
func (e *Engine) proceduralGaps(p domain.Process) []domain.Indicator {
	var voteStage *domain.Stage
	hasCommittee, hasFirstReading := false, false
	for i := range p.Stages {
		switch p.Stages[i].Kind {
		case domain.KindVote:
			if voteStage == nil {
				voteStage = &p.Stages[i]
			}
		case domain.KindCommittee:
			hasCommittee = true
		case domain.KindFirstReading:
			hasFirstReading = true
		}
	}
	if voteStage == nil {
		// Not evaluated: the process has not progressed far enough for the
		// mandated stages to be expected.
		return nil
	}

	var out []domain.Indicator
	if !hasCommittee {
		out = append(out, domain.Indicator{
			Code:   "missing_committee",
			Weight: e.cfg.Weights["missing_committee"],
			Justification: fmt.Sprintf("vote stage %q present but no committee stage appears anywhere in the process",
				voteStage.RawLabel),
		})
	}
	if !hasFirstReading {
		out = append(out, domain.Indicator{
			Code:   "missing_first_reading",
			Weight: e.cfg.Weights["missing_first_reading"],
			Justification: fmt.Sprintf("vote stage %q present but no first-reading stage appears in the process",
				voteStage.RawLabel),
		})
	}
	return out
}

// anomalies converts recorded structural anomalies into indicators, one per
// occurrence, reusing the builder's per-stage detail as justification.
func (e *Engine) anomalies(p domain.Process) []domain.Indicator {
	var out []domain.Indicator
	for _, a := range p.Anomalies {
		var code string
		switch a.Code {
		case domain.AnomalyStageGap:
			code = "stage_gap"
		case domain.AnomalyOrderConflict:
			code = "order_conflict"
		default:
			continue
		}
		out = append(out, domain.Indicator{
			Code:          code,
			Weight:        e.cfg.Weights[code],
			Justification: a.Detail,
		})
	}
	return out
}

// keywords scans extracted document text for configured trigger terms, with
// diacritics folded and a small edit-distance tolerance for OCR noise. Each
// matched category contributes weight per distinct matched term; a finance ×
// security co-occurrence adds the correlation bonus.
func (e *Engine) keywords(p domain.Process) []domain.Indicator {
	type hit struct {
		terms []string
		docs  map[string]struct{}
	}
	hitsByCategory := map[string]*hit{}

	for _, doc := range p.AllDocuments() {
		if !doc.HasText() {
			continue
		}
		folded := foldText(doc.Text)
		tokens := strings.Fields(folded)

		for category, terms := range e.cfg.Keywords {
			var matched []string
			for _, term := range terms {
				if matchTerm(foldText(term), folded, tokens) {
					matched = append(matched, term)
				}
			}
			if len(matched) == 0 {
				continue
			}
			h := hitsByCategory[category]
			if h == nil {
				h = &hit{docs: map[string]struct{}{}}
				hitsByCategory[category] = h
			}
			h.terms = mergeTerms(h.terms, matched)
			h.docs[doc.Filename] = struct{}{}
		}
	}

	categories := make([]string, 0, len(hitsByCategory))
	for c := range hitsByCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var out []domain.Indicator
	for _, category := range categories {
		h := hitsByCategory[category]
		out = append(out, domain.Indicator{
			Code:   "keyword_" + category,
			Weight: e.cfg.KeywordWeight * len(h.terms),
			Justification: fmt.Sprintf("terms [%s] found in %s",
				strings.Join(h.terms, ", "), joinSortedKeys(h.docs)),
		})
	}

	if _, fin := hitsByCategory["finance"]; fin {
		if _, sec := hitsByCategory["security"]; sec {
			out = append(out, domain.Indicator{
				Code:   "keyword_correlation",
				Weight: e.cfg.CorrelationWeight,
				Justification: fmt.Sprintf("finance terms co-occur with security-service terms (finance in %s; security in %s)",
					joinSortedKeys(hitsByCategory["finance"].docs), joinSortedKeys(hitsByCategory["security"].docs)),
			})
		}
	}

	return out
}

func (e *Engine) sponsorMismatch(p domain.Process) []domain.Indicator {
	if p.Sponsors <= 0 || len(p.Signatories) == 0 {
		return nil
	}
	if p.Sponsors == len(p.Signatories) {
		return nil
	}
	return []domain.Indicator{{
		Code:   "sponsor_mismatch",
		Weight: e.cfg.Weights["sponsor_mismatch"],
		Justification: fmt.Sprintf("declared sponsor count %d does not match %d referenced signatories",
			p.Sponsors, len(p.Signatories)),
	}}
}

// foldText lowercases, strips diacritics, and drops punctuation so matching
// survives OCR and inflection noise.
func foldText(s string) string {
	folded := strings.ToLower(unidecode.Unidecode(s))
	var sb strings.Builder
	sb.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			sb.WriteRune(r)
		default:
			sb.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(sb.String()), " ")
}

// matchTerm accepts an exact folded substring, or, for single-word terms
// long enough to be distinctive, a token within edit distance 1.
func matchTerm(term, folded string, tokens []string) bool {
	if term == "" {
		return false
	}
	if strings.Contains(folded, term) {
		return true
	}
	if strings.ContainsRune(term, ' ') || len(term) < 5 {
		return false
	}
	for _, tok := range tokens {
		if diff := len(tok) - len(term); diff < -1 || diff > 1 {
			continue
		}
		if fuzzy.LevenshteinDistance(term, tok) <= 1 {
			return true
		}
	}
	return false
}

func mergeTerms(existing, add []string) []string {
	seen := map[string]struct{}{}
	for _, t := range existing {
		seen[t] = struct{}{}
	}
	for _, t := range add {
		if _, ok := seen[t]; !ok {
			seen[t] = struct{}{}
			existing = append(existing, t)
		}
	}
	sort.Strings(existing)
	return existing
}

func joinSortedKeys(set map[string]struct{}) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
