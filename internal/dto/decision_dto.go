package dto

// DecisionRequest is the reviewer payload for approving or rejecting a submission.
type DecisionRequest struct {
	DecisionID     string `json:"decision_id" validate:"omitempty,max=128"`
	Action         string `json:"action" validate:"required,oneof=approve reject"`
	Score          *int   `json:"score"`
	Feedback       string `json:"feedback" validate:"max=5000"`
	ExpectedStatus string `json:"expected_status" validate:"omitempty,oneof=SUBMITTED APPROVED"`
}

// DecisionResponse reports the outcome of an applied decision.
type DecisionResponse struct {
	DecisionID   string `json:"decision_id"`
	SubmissionID uint   `json:"submission_id"`
	Status       string `json:"status"`
	TotalScore   int64  `json:"total_score"`
	Level        string `json:"level"`
	Replayed     bool   `json:"replayed"`
}

// ReconcileResponse reports the result of recomputing a learner's standing.
type ReconcileResponse struct {
	LearnerID     uint   `json:"learner_id"`
	PreviousTotal int64  `json:"previous_total"`
	PreviousLevel string `json:"previous_level"`
	TotalScore    int64  `json:"total_score"`
	Level         string `json:"level"`
	Drift         bool   `json:"drift"`
}
