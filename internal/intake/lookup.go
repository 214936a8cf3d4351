package intake

import (
	"context"
	"log/slog"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/logger"
	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
)

// Lookup returns the redacted view of a report when credential proves
// access to protocol. Unknown protocols and wrong credentials are both
// reported as ErrNotFound.
//
// With credentials disabled the lookup is scoped to the sender instead: only
// identified reports filed from senderID are visible.
func (e *Engine) Lookup(ctx context.Context, protocol, credential, senderID string) (report.View, error) {
	protocol = normalizeToken(protocol)
	credential = normalizeToken(credential)

	view, err := e.lookup(ctx, protocol, credential, senderID)
	switch {
	case err == nil:
		e.metrics.Lookup("found")
	case ouvErrors.IsCategory(err, ouvErrors.ErrNotFound):
		e.metrics.Lookup("not_found")
	default:
		e.metrics.Lookup("error")
	}
	return view, err
}

func (e *Engine) lookup(ctx context.Context, protocol, credential, senderID string) (report.View, error) {
	notFound := ouvErrors.NotFound("report")
	if protocol == "" {
		return report.View{}, notFound
	}

	rec, err := e.reports.FindByProtocol(ctx, protocol)
	if err != nil {
		return report.View{}, ouvErrors.MapError(err)
	}

	if e.cfg.IssueCredentials {
		if !report.VerifyCredential(rec.CredentialHash, credential) {
			return report.View{}, notFound
		}
		return rec.View(), nil
	}

	if senderID == "" || rec.ReportType != session.ReportIdentified || rec.Phone != senderID {
		return report.View{}, notFound
	}
	return rec.View(), nil
}

// replyLookup answers the chat lookup sub-flow and returns to MENU.
func (e *Engine) replyLookup(ctx context.Context, t *turn, protocol, credential string) {
	t.sess.LookupProtocol = ""
	view, err := e.Lookup(ctx, protocol, credential, t.sess.SenderID)
	switch {
	case err == nil:
		t.say(viewText(view))
	case ouvErrors.IsCategory(err, ouvErrors.ErrNotFound):
		t.say(msgNotFound)
	default:
		slog.Error("Lookup failed", "error", err, "category", ouvErrors.Category(err),
			"sender", logger.MaskSender(t.sess.SenderID))
		t.say(msgTemporary)
	}
	e.ask(t, session.StageMenu)
}
