package core

import "fmt"

// Submission status values. Step statuses are "step_N_completed".
const (
	StatusCompleted = "completed"
	StatusError     = "error"
)

// StepStatus returns the status string recorded after step n completes.
func StepStatus(n int) string {
	return fmt.Sprintf("step_%d_completed", n)
}
