package domain

// ProblemCreated is emitted when a problem is inserted.
type ProblemCreated struct {
	ProblemID ProblemId
	CreatedBy ActorId
	FYI       bool
	CreatedAt Timestamp
}

// Href returns the link broadcast notifications point at.
func (e ProblemCreated) Href() string {
	return e.ProblemID.Href()
}

// ProblemClaimed is emitted when a claim is won.
type ProblemClaimed struct {
	ProblemID ProblemId
	Claimer   ActorId
	Estimate  int
	ClaimedAt Timestamp
}

// ProblemReopened is emitted when a closed problem is reopened.
type ProblemReopened struct {
	ProblemID  ProblemId
	ReopenedBy ActorId
	Archived   bool
	ReopenedAt Timestamp
}
