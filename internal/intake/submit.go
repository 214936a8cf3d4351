package intake

import (
	"context"
	"log/slog"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/logger"
	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
)

// submit persists the collected report. The session is destroyed only once
// the insert succeeded; on failure it stays at CONFIRM for a retry.
func (e *Engine) submit(ctx context.Context, t *turn) {
	log := slog.With("sender", logger.MaskSender(t.sess.SenderID), "trace_id", logger.GetTraceID(ctx))
	now := e.cfg.Now()

	rec := report.FromSession(t.sess, t.in.Source, now)
	protocol, err := report.NewProtocol(now, nil)
	if err != nil {
		e.submitFailed(t, log, ouvErrors.Wrap(err, "generate protocol"))
		return
	}
	rec.Protocol = protocol
	if err := rec.Validate(); err != nil {
		// identified without a name, or an empty description
		log.Warn("Report incomplete at confirm", "error", err)
		e.metrics.SubmissionFailure()
		t.say(msgEmptyAnswer)
		if rec.Description == "" {
			e.ask(t, session.StageAwaitDescription)
		} else {
			e.ask(t, session.StageAwaitName)
		}
		return
	}

	var credential string
	if e.cfg.IssueCredentials {
		c, err := report.NewCredential()
		if err == nil {
			rec.CredentialHash, err = report.HashCredential(c, e.cfg.CredentialCost)
		}
		if err != nil {
			e.submitFailed(t, log, ouvErrors.Wrap(err, "issue credential"))
			return
		}
		credential = c
	}

	var lastErr error
	for attempt := 1; attempt <= e.cfg.MaxProtocolAttempts; attempt++ {
		if attempt > 1 {
			if rec.Protocol, err = report.NewProtocol(now, nil); err != nil {
				lastErr = ouvErrors.Wrap(err, "generate protocol")
				break
			}
			rec.ID = ""
		}

		if _, err := e.reports.Insert(ctx, rec); err != nil {
			lastErr = ouvErrors.MapError(err)
			if ouvErrors.IsCategory(lastErr, ouvErrors.ErrConflict) {
				log.Warn("Protocol collision, retrying", "attempt", attempt)
				continue
			}
			break
		}
		lastErr = nil
		break
	}
	if lastErr != nil {
		e.submitFailed(t, log, lastErr)
		return
	}

	e.metrics.Submission()
	log.Info("Report submitted", "protocol", rec.Protocol, "type", rec.ReportType, "category", rec.Category)
	e.notify(ctx, rec)
	t.end(OutcomeSubmitted, submittedText(rec.Protocol, credential))
}

func (e *Engine) submitFailed(t *turn, log *slog.Logger, err error) {
	e.metrics.SubmissionFailure()
	log.Error("Failed to submit report", "error", err, "category", ouvErrors.Category(err))
	t.goTo(session.StageConfirm)
	t.say(msgTryAgain)
}

func (e *Engine) notify(ctx context.Context, rec *report.Record) {
	if e.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, e.cfg.NotifyTimeout)
	defer cancel()
	if err := e.notifier.NotifyReport(ctx, rec); err != nil {
		slog.Warn("Failed to notify new report", "protocol", rec.Protocol, "error", err)
	}
}
