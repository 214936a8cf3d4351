package intel

import (
	"context"
)

// CategoryUncategorized is used whenever no category could be assigned.
const CategoryUncategorized = "Uncategorized"

// Analysis is the outcome of summarizing and classifying a report description.
type Analysis struct {
	Summary  string
	Category string
	// Relevant is false only when the classifier positively judged the text
	// not to be a compliance matter.
	Relevant bool
}

// Service is the text intelligence the intake engine consults. Both calls are
// best-effort; callers decide the fallback.
type Service interface {
	Correct(ctx context.Context, text string) (string, error)
	SummarizeAndClassify(ctx context.Context, text string) (Analysis, error)
}

// Noop returns the input unchanged. It is used when intelligence is disabled.
type Noop struct{}

func (Noop) Correct(_ context.Context, text string) (string, error) {
	return text, nil
}

func (Noop) SummarizeAndClassify(_ context.Context, text string) (Analysis, error) {
	return Analysis{Summary: text, Category: CategoryUncategorized, Relevant: true}, nil
}
