package intake

import (
	"context"
	"log/slog"
	"strings"
	"time"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/intel"
	"github.com/harunnryd/ouvidoria/internal/logger"
)

const (
	opCorrect = "correct"
	opAnalyze = "analyze"
)

// withTimeout runs fn in its own goroutine and gives up after d, so a
// service that ignores ctx cannot hold the sender's lock.
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ouvErrors.WrapWithCategory(ctx.Err(), "intelligence call timed out", ouvErrors.ErrTransient)
	}
}

// correct returns the corrected text, or the original on any failure.
func (e *Engine) correct(ctx context.Context, text string) string {
	if !e.cfg.CorrectText {
		return text
	}
	out, err := withTimeout(ctx, e.cfg.IntelligenceTimeout, func(ctx context.Context) (string, error) {
		return e.intel.Correct(ctx, text)
	})
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		e.fallback(ctx, opCorrect, err)
		return text
	}
	return out
}

// analyze summarizes and classifies the description. On failure the summary
// is the description itself and the category is Uncategorized.
func (e *Engine) analyze(ctx context.Context, description string) intel.Analysis {
	fallback := intel.Analysis{Summary: description, Category: intel.CategoryUncategorized, Relevant: true}
	if !e.cfg.Analyze {
		return fallback
	}
	a, err := withTimeout(ctx, e.cfg.IntelligenceTimeout, func(ctx context.Context) (intel.Analysis, error) {
		return e.intel.SummarizeAndClassify(ctx, description)
	})
	if err != nil {
		e.fallback(ctx, opAnalyze, err)
		return fallback
	}
	if strings.TrimSpace(a.Summary) == "" {
		a.Summary = description
	}
	if strings.TrimSpace(a.Category) == "" {
		a.Category = intel.CategoryUncategorized
	}
	return a
}

func (e *Engine) fallback(ctx context.Context, op string, err error) {
	e.metrics.Fallback(op)
	slog.Warn("Text intelligence unavailable, using fallback",
		"operation", op,
		"error", err,
		"category", ouvErrors.Category(ouvErrors.MapError(err)),
		"sender", logger.MaskSender(logger.GetSenderID(ctx)),
		"trace_id", logger.GetTraceID(ctx))
}
