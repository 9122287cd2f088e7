package findings

// Filter selects findings in the store. All fields match by equality.
type Filter struct {
	Product string
	Account string
	Region  string
	State   State
}

// FailedFinding is one rejected record from a submission.
type FailedFinding struct {
	ID           string
	ErrorCode    string
	ErrorMessage string
}

// SubmitResult is the outcome of submitting one batch.
type SubmitResult struct {
	FailedCount int
	Failed      []FailedFinding
}

// Accepted is how many records of a batch of n were accepted.
func (r SubmitResult) Accepted(n int) int {
	if r.FailedCount > n {
		return 0
	}
	return n - r.FailedCount
}
