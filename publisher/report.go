package publisher

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// RecordPublishFailure is a non-fatal, per-record failure.
type RecordPublishFailure struct {
	Index int
	Label string
	Err   error
}

func (f RecordPublishFailure) Error() string {
	if f.Label != "" {
		return fmt.Sprintf("record %d (%s): %v", f.Index, f.Label, f.Err)
	}
	return fmt.Sprintf("record %d: %v", f.Index, f.Err)
}

func (f RecordPublishFailure) Unwrap() error {
	return f.Err
}

// Report tallies one Publish call. Succeeded + len(Failed) == Attempted.
type Report struct {
	Attempted int
	Succeeded int
	Failed    []RecordPublishFailure
}

func (r *Report) FailedIndices() []int {
	if r == nil {
		return nil
	}
	out := make([]int, 0, len(r.Failed))
	for _, f := range r.Failed {
		out = append(out, f.Index)
	}
	return out
}

// Err folds all record failures into one error, or nil when every record succeeded.
func (r *Report) Err() error {
	if r == nil || len(r.Failed) == 0 {
		return nil
	}
	var result *multierror.Error
	for _, f := range r.Failed {
		result = multierror.Append(result, f)
	}
	return result.ErrorOrNil()
}
