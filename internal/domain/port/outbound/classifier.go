package outbound

import (
	"context"

	"github.com/rafaeldc/triagebot/internal/domain/model"
)

// TriageClassifier produces a Verdict for a submission. Implementations must
// degrade to model.FallbackVerdict on upstream or parse failures instead of
// returning an error: a non-nil error here means the request could not even
// be composed, and is the caller's problem.
type TriageClassifier interface {
	Classify(ctx context.Context, sub model.Submission) (model.Verdict, error)
}
