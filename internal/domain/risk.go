package domain

import "time"

// Score bounds for a RiskAssessment.
const (
	MinScore = 0
	MaxScore = 100
)

// Indicator is one independently evaluated risk signal. Justification must
// name the stage or document that triggered it so a reviewer can audit the
// score by hand.
type Indicator struct {
	Code          string `json:"code"`
	Weight        int    `json:"weight"`
	Justification string `json:"justification"`
}

// RiskAssessment is the scoring result for one process. Created once per
// audit run, never mutated; a later run supersedes it with a new value.
type RiskAssessment struct {
	ProcessID  ProcessID   `json:"processId"`
	Score      int         `json:"score"`
	Indicators []Indicator `json:"indicators"`
	SnapshotAt time.Time   `json:"snapshotAt"`
}

// ClampScore folds an indicator sum into the declared score range.
func ClampScore(sum int) int {
	if sum < MinScore {
		return MinScore
	}
	if sum > MaxScore {
		return MaxScore
	}
	return sum
}
