package intake

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/shlex"

	"github.com/harunnryd/ouvidoria/internal/logger"
	"github.com/harunnryd/ouvidoria/internal/session"
)

const (
	cmdMenu     = "/menu"
	cmdCancel   = "/cancelar"
	cmdLookup   = "/consulta"
	cmdHelp     = "/ajuda"
	cmdMenuBare = "menu"
)

const msgHelp = "Comandos disponíveis:\n" +
	"/menu - voltar ao menu inicial\n" +
	"/cancelar - descartar a denúncia em andamento\n" +
	"/consulta <protocolo> <senha> - consultar uma denúncia\n" +
	"/ajuda - mostrar esta mensagem"

// runCommand handles chat shortcuts that work from any stage. It reports
// whether the message was consumed.
func (e *Engine) runCommand(ctx context.Context, t *turn) bool {
	if strings.EqualFold(t.text, cmdMenuBare) {
		e.resetToMenu(t)
		return true
	}
	if !strings.HasPrefix(t.text, "/") {
		return false
	}

	parts, err := shlex.Split(t.text)
	if err != nil {
		parts = strings.Fields(t.text)
	}
	if len(parts) == 0 {
		return false
	}
	cmd, args := strings.ToLower(parts[0]), parts[1:]

	slog.Debug("Chat command", "cmd", cmd, "sender", logger.MaskSender(t.sess.SenderID))

	switch cmd {
	case cmdMenu:
		e.resetToMenu(t)
	case cmdCancel:
		t.end(OutcomeCancelled, msgCancelled)
	case cmdHelp:
		t.say(msgHelp)
		e.resume(t)
	case cmdLookup:
		e.lookupCommand(ctx, t, args)
	default:
		return false
	}
	return true
}

func (e *Engine) resetToMenu(t *turn) {
	t.sess.Reset()
	e.ask(t, session.StageMenu)
}

func (e *Engine) lookupCommand(ctx context.Context, t *turn, args []string) {
	if len(args) == 0 || (e.cfg.IssueCredentials && len(args) < 2) {
		t.say("Uso: /consulta <protocolo> <senha>")
		e.resume(t)
		return
	}

	var credential string
	if len(args) > 1 {
		credential = args[1]
	}
	view, err := e.Lookup(ctx, args[0], credential, t.sess.SenderID)
	if err != nil {
		t.say(msgNotFound)
	} else {
		t.say(viewText(view))
	}
	e.resume(t)
}

// resume repeats the question the session is waiting on after an
// out-of-band reply.
func (e *Engine) resume(t *turn) {
	stage := t.next
	if stage == session.StageMenu {
		t.say(msgMenu)
		return
	}
	t.say(msgResume + "\n\n" + e.prompt(t.sess, stage))
}
