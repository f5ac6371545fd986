package domain

import "time"

// ProcessState tracks one process through the orchestrator state machine.
type ProcessState string

const (
	StatePending          ProcessState = "PENDING"
	StateFetchingMetadata ProcessState = "FETCHING_METADATA"
	StateBuildingTree     ProcessState = "BUILDING_TREE"
	StateFetchingDocs     ProcessState = "FETCHING_DOCUMENTS"
	StateExtracting       ProcessState = "EXTRACTING"
	StateScoring          ProcessState = "SCORING"
	StateDone             ProcessState = "DONE"
	StateFailed           ProcessState = "FAILED"
)

// OutcomeStatus classifies how far one process got within a run.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomePartial OutcomeStatus = "partial"
	OutcomeFailed  OutcomeStatus = "failed"
)

// ProcessOutcome is the per-process entry accumulated on an AuditRun.
// Partial means the tree and assessment exist but some documents stayed
// unfetched or unextracted; failed means no assessment was produced.
type ProcessOutcome struct {
	ID     ProcessID     `json:"id"`
	Status OutcomeStatus `json:"status"`
	Reason string        `json:"reason,omitempty"`
	Score  int           `json:"score"`
}

// RunScope describes what one invocation audits: a single process number, or
// every process of a term when Number is empty.
type RunScope struct {
	Term   int    `json:"term"`
	Number string `json:"number,omitempty"`
}

// SingleProcess reports whether the scope targets one process.
func (s RunScope) SingleProcess() bool {
	return s.Number != ""
}

// AuditRun is the explicit, passed-around state of one invocation. No global
// state exists beyond it.
type AuditRun struct {
	Scope    RunScope         `json:"scope"`
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
	Outcomes []ProcessOutcome `json:"outcomes"`
}

// Counts tallies outcomes by status for the run summary.
func (r *AuditRun) Counts() (succeeded, partial, failed int) {
	for _, o := range r.Outcomes {
		switch o.Status {
		case OutcomeSuccess:
			succeeded++
		case OutcomePartial:
			partial++
		case OutcomeFailed:
			failed++
		}
	}
	return succeeded, partial, failed
}
