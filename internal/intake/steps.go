package intake

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/harunnryd/ouvidoria/internal/session"
)

type stepFunc func(ctx context.Context, t *turn)

// collectStage describes a free-text stage: where the answer goes and
// whether it is passed through grammar correction.
type collectStage struct {
	field   session.Field
	correct bool
	prompt  string
}

var collectStages = map[session.Stage]collectStage{
	session.StageAwaitName:        {field: session.FieldName, prompt: msgAskName},
	session.StageAwaitEmail:       {field: session.FieldEmail, prompt: msgAskEmail},
	session.StageAwaitDescription: {field: session.FieldDescription, correct: true, prompt: msgAskDescription},
	session.StageAwaitDate:        {field: session.FieldIncidentDate, prompt: msgAskDate},
	session.StageAwaitLocation:    {field: session.FieldLocation, correct: true, prompt: msgAskLocation},
	session.StageAwaitInvolved:    {field: session.FieldInvolved, correct: true, prompt: msgAskInvolved},
	session.StageAwaitWitnesses:   {field: session.FieldWitnesses, correct: true, prompt: msgAskWitnesses},
	session.StageAwaitEvidence:    {field: session.FieldEvidence, correct: true, prompt: msgAskEvidence},
	session.StageAwaitRecurrence:  {field: session.FieldRecurrence, correct: true, prompt: msgAskRecurrence},
}

// stageForField is the inverse used by EDIT_FIELD.
var stageForField = map[session.Field]session.Stage{
	session.FieldName:         session.StageAwaitName,
	session.FieldEmail:        session.StageAwaitEmail,
	session.FieldDescription:  session.StageAwaitDescription,
	session.FieldIncidentDate: session.StageAwaitDate,
	session.FieldLocation:     session.StageAwaitLocation,
	session.FieldInvolved:     session.StageAwaitInvolved,
	session.FieldWitnesses:    session.StageAwaitWitnesses,
	session.FieldEvidence:     session.StageAwaitEvidence,
	session.FieldRecurrence:   session.StageAwaitRecurrence,
	session.FieldSeverity:     session.StageAwaitSeverity,
}

// collectionOrder lists the stages after the identity questions.
func collectionOrder(flow Flow) []session.Stage {
	if flow == FlowShort {
		return []session.Stage{session.StageAwaitDescription}
	}
	return []session.Stage{
		session.StageAwaitDescription,
		session.StageAwaitDate,
		session.StageAwaitLocation,
		session.StageAwaitInvolved,
		session.StageAwaitWitnesses,
		session.StageAwaitEvidence,
		session.StageAwaitRecurrence,
		session.StageAwaitSeverity,
	}
}

func (e *Engine) stepTable() map[session.Stage]stepFunc {
	steps := map[session.Stage]stepFunc{
		session.StageMenu:             e.stepMenu,
		session.StageAwaitSeverity:    e.stepSeverity,
		session.StageClassifyOverride: e.stepOverride,
		session.StageConfirm:          e.stepConfirm,
		session.StageEditField:        e.stepEditField,
		session.StageLookupProtocol:   e.stepLookupProtocol,
		session.StageLookupCredential: e.stepLookupCredential,
	}
	for stage := range collectStages {
		steps[stage] = e.stepCollect
	}
	return steps
}

// nextStage returns the stage after cur, or false when cur is the last one.
func (e *Engine) nextStage(cur session.Stage) (session.Stage, bool) {
	switch cur {
	case session.StageAwaitName:
		return session.StageAwaitEmail, true
	case session.StageAwaitEmail:
		return e.order[0], true
	}
	for i, s := range e.order {
		if s == cur && i+1 < len(e.order) {
			return e.order[i+1], true
		}
	}
	return 0, false
}

// editableFields is what the summary shows and EDIT_FIELD offers, in order.
func (e *Engine) editableFields(s *session.Session) []session.Field {
	var fields []session.Field
	if s.Fields.ReportType == session.ReportIdentified {
		fields = append(fields, session.FieldName, session.FieldEmail)
	}
	for _, stage := range e.order {
		if stage == session.StageAwaitSeverity {
			fields = append(fields, session.FieldSeverity)
			continue
		}
		fields = append(fields, collectStages[stage].field)
	}
	return fields
}

// prompt is the question for the stage a session is waiting on.
func (e *Engine) prompt(s *session.Session, stage session.Stage) string {
	if c, ok := collectStages[stage]; ok {
		return c.prompt
	}
	switch stage {
	case session.StageAwaitSeverity:
		return msgAskSeverity
	case session.StageClassifyOverride:
		return msgOverride
	case session.StageConfirm:
		return summaryText(s, e.editableFields(s))
	case session.StageEditField:
		return editMenuText(e.editableFields(s))
	case session.StageLookupProtocol:
		return msgAskProtocol
	case session.StageLookupCredential:
		return msgAskCredential
	default:
		return msgMenu
	}
}

func (e *Engine) ask(t *turn, stage session.Stage) {
	t.goTo(stage)
	t.say(e.prompt(t.sess, stage))
}

func (e *Engine) reprompt(t *turn, notice string) {
	t.say(notice + "\n\n" + e.prompt(t.sess, t.sess.Stage))
}

func (e *Engine) stepMenu(ctx context.Context, t *turn) {
	switch t.text {
	case "1":
		t.sess.Reset()
		t.sess.Fields.ReportType = session.ReportAnonymous
		t.say(msgAnonymousNote)
		e.ask(t, session.StageAwaitDescription)
	case "2":
		t.sess.Reset()
		t.sess.Fields.ReportType = session.ReportIdentified
		e.ask(t, session.StageAwaitName)
	case "3":
		t.sess.LookupProtocol = ""
		e.ask(t, session.StageLookupProtocol)
	case "4":
		t.end(OutcomeClosed, msgGoodbye)
	default:
		e.reprompt(t, msgInvalidChoice)
	}
}

func (e *Engine) stepCollect(ctx context.Context, t *turn) {
	stage := t.sess.Stage
	c := collectStages[stage]

	appendMedia(t.sess, t.in.Media)
	text := t.text
	if text == "" && stage == session.StageAwaitEvidence && len(t.in.Media) > 0 {
		text = fmt.Sprintf(evidencePlaceholder, len(t.in.Media))
	} else if text != "" && c.correct {
		text = e.correct(ctx, text)
	}
	if text == "" {
		e.reprompt(t, msgEmptyAnswer)
		return
	}

	t.sess.Fields.Set(c.field, text)
	e.advance(ctx, t, stage)
}

func (e *Engine) stepSeverity(ctx context.Context, t *turn) {
	label, ok := severityLabels[t.text]
	if !ok {
		for _, l := range severityLabels {
			if strings.EqualFold(t.text, l) {
				label, ok = l, true
			}
		}
	}
	if !ok {
		e.reprompt(t, msgInvalidChoice)
		return
	}
	t.sess.Fields.Severity = label
	e.advance(ctx, t, session.StageAwaitSeverity)
}

// advance moves past a stage that was just answered.
func (e *Engine) advance(ctx context.Context, t *turn, answered session.Stage) {
	if t.sess.Editing {
		t.sess.Editing = false
		if answered == session.StageAwaitDescription {
			e.analyzeAndConfirm(ctx, t)
			return
		}
		e.ask(t, session.StageConfirm)
		return
	}

	if next, ok := e.nextStage(answered); ok {
		e.ask(t, next)
		return
	}
	e.analyzeAndConfirm(ctx, t)
}

// analyzeAndConfirm runs the single summarize/classify call and moves to
// CONFIRM, or to CLASSIFY_OVERRIDE when the text looks off-topic.
func (e *Engine) analyzeAndConfirm(ctx context.Context, t *turn) {
	a := e.analyze(ctx, t.sess.Fields.Description)
	t.sess.Fields.AISummary = a.Summary
	t.sess.Fields.Category = a.Category

	if !a.Relevant {
		e.ask(t, session.StageClassifyOverride)
		return
	}
	e.ask(t, session.StageConfirm)
}

func (e *Engine) stepOverride(ctx context.Context, t *turn) {
	switch t.text {
	case "1":
		e.ask(t, session.StageConfirm)
	case "2":
		t.end(OutcomeCancelled, msgCancelled)
	default:
		e.reprompt(t, msgInvalidChoice)
	}
}

func (e *Engine) stepConfirm(ctx context.Context, t *turn) {
	switch t.text {
	case "1":
		e.submit(ctx, t)
	case "2":
		e.ask(t, session.StageEditField)
	case "3":
		t.end(OutcomeCancelled, msgCancelled)
	default:
		e.reprompt(t, msgInvalidChoice)
	}
}

func (e *Engine) stepEditField(ctx context.Context, t *turn) {
	if t.text == "0" {
		e.ask(t, session.StageConfirm)
		return
	}

	fields := e.editableFields(t.sess)
	n, err := strconv.Atoi(t.text)
	if err != nil || n < 1 || n > len(fields) {
		e.reprompt(t, msgInvalidChoice)
		return
	}

	t.sess.Editing = true
	e.ask(t, stageForField[fields[n-1]])
}

func (e *Engine) stepLookupProtocol(ctx context.Context, t *turn) {
	protocol := normalizeToken(t.text)
	if protocol == "" {
		e.reprompt(t, msgEmptyAnswer)
		return
	}

	if !e.cfg.IssueCredentials {
		e.replyLookup(ctx, t, protocol, "")
		return
	}
	t.sess.LookupProtocol = protocol
	e.ask(t, session.StageLookupCredential)
}

func (e *Engine) stepLookupCredential(ctx context.Context, t *turn) {
	credential := normalizeToken(t.text)
	if credential == "" {
		e.reprompt(t, msgEmptyAnswer)
		return
	}
	protocol := t.sess.LookupProtocol
	if protocol == "" {
		e.ask(t, session.StageLookupProtocol)
		return
	}
	e.replyLookup(ctx, t, protocol, credential)
}

func appendMedia(s *session.Session, media []session.MediaRef) {
	for _, m := range media {
		if m.URL == "" {
			continue
		}
		dup := false
		for _, existing := range s.Fields.MediaRefs {
			if existing.URL == m.URL {
				dup = true
				break
			}
		}
		if !dup {
			s.Fields.MediaRefs = append(s.Fields.MediaRefs, m)
		}
	}
}

func normalizeToken(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
