package domain

import (
	"fmt"
	"sort"
	"time"
)

// ProcessID identifies a legislative process within a parliamentary term.
type ProcessID struct {
	Term   int    `json:"term"`
	Number string `json:"number"`
}

// String renders the canonical form used for cache keys and reports.
func (id ProcessID) String() string {
	return fmt.Sprintf("term%d/%s", id.Term, id.Number)
}

// StageKind enumerates recognized procedural event kinds. The upstream
// vocabulary is open; unknown labels map to KindOther with RawLabel kept.
type StageKind string

const (
	KindSubmission    StageKind = "submission"
	KindFirstReading  StageKind = "first_reading"
	KindSecondReading StageKind = "second_reading"
	KindThirdReading  StageKind = "third_reading"
	KindCommittee     StageKind = "committee"
	KindVote          StageKind = "vote"
	KindSenate        StageKind = "senate"
	KindSignature     StageKind = "signature"
	KindPublication   StageKind = "publication"
	KindWithdrawal    StageKind = "withdrawal"
	KindOther         StageKind = "other"
)

// DatePrecision ranks how much of a stage date is actually known.
type DatePrecision int

const (
	PrecisionDay DatePrecision = iota
	PrecisionMonth
	PrecisionYear
	PrecisionUnknown
)

// String names the precision for reports and JSON output.
func (p DatePrecision) String() string {
	switch p {
	case PrecisionDay:
		return "day"
	case PrecisionMonth:
		return "month"
	case PrecisionYear:
		return "year"
	default:
		return "unknown"
	}
}

// PartialDate is a timestamp that may be known only down to month or year,
// or not at all.
type PartialDate struct {
	Value     time.Time     `json:"value,omitempty"`
	Precision DatePrecision `json:"precision"`
}

// Known reports whether any part of the date was recoverable.
func (d PartialDate) Known() bool {
	return d.Precision != PrecisionUnknown
}

// ProcessLink references another tracked process (amendment, companion
// bill). Links are references, never inlined subtrees, so circular
// relations cannot create cyclic ownership.
type ProcessLink struct {
	ID    ProcessID `json:"id"`
	Label string    `json:"label,omitempty"`
}

// Stage is one procedural event within a process.
type Stage struct {
	Kind            StageKind     `json:"kind"`
	RawLabel        string        `json:"rawLabel"`
	Date            PartialDate   `json:"date"`
	Description     string        `json:"description,omitempty"`
	Documents       []*Document   `json:"documents,omitempty"`
	Links           []ProcessLink `json:"links,omitempty"`
	StructuralIndex int           `json:"structuralIndex"`
}

// DateUncertain flags stages that sort to the end of the timeline because
// their date could not be recovered.
func (s Stage) DateUncertain() bool {
	return !s.Date.Known()
}

// AnomalyCode names one structural irregularity recorded by the tree builder.
type AnomalyCode string

const (
	AnomalyVoteWithoutCommittee AnomalyCode = "vote_without_committee"
	AnomalyStageGap             AnomalyCode = "stage_gap"
	AnomalyOrderConflict        AnomalyCode = "order_conflict"
)

// Anomaly is recorded as data on the process, never surfaced as an error.
type Anomaly struct {
	Code       AnomalyCode `json:"code"`
	StageIndex int         `json:"stageIndex"`
	Detail     string      `json:"detail"`
}

// Process is one legislative process. Immutable once built; a refresh
// produces a new value instead of mutating in place.
type Process struct {
	ID          ProcessID     `json:"id"`
	Title       string        `json:"title"`
	Status      string        `json:"status,omitempty"`
	Description string        `json:"description,omitempty"`
	Sponsors    int           `json:"sponsors,omitempty"`
	Signatories []string      `json:"signatories,omitempty"`
	Stages      []Stage       `json:"stages"`
	Links       []ProcessLink `json:"links,omitempty"`
	Anomalies   []Anomaly     `json:"anomalies,omitempty"`
}

// ChronologicalStages returns the stages sorted by best-known date. The sort
// is stable on (precision known-before-unknown, date, structural index), so
// equal-precision ties keep source order and unknown-date stages land last.
// The structural order in p.Stages is left untouched.
func (p Process) ChronologicalStages() []Stage {
	out := make([]Stage, len(p.Stages))
	copy(out, p.Stages)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Date.Known() != b.Date.Known() {
			return a.Date.Known()
		}
		if !a.Date.Known() {
			return a.StructuralIndex < b.StructuralIndex
		}
		if !a.Date.Value.Equal(b.Date.Value) {
			return a.Date.Value.Before(b.Date.Value)
		}
		return a.StructuralIndex < b.StructuralIndex
	})
	return out
}

// KnownDateSpan returns the earliest and latest known stage dates; ok is
// false when no stage carries a usable date.
func (p Process) KnownDateSpan() (first, last time.Time, ok bool) {
	for _, s := range p.Stages {
		if !s.Date.Known() {
			continue
		}
		if !ok || s.Date.Value.Before(first) {
			first = s.Date.Value
		}
		if !ok || s.Date.Value.After(last) {
			last = s.Date.Value
		}
		ok = true
	}
	return first, last, ok
}

// AllDocuments flattens document references across stages in structural order.
func (p Process) AllDocuments() []*Document {
	var docs []*Document
	for _, s := range p.Stages {
		docs = append(docs, s.Documents...)
	}
	return docs
}
