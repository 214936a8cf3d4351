package intake

import (
	"fmt"
	"strings"

	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
)

const (
	msgWelcome = "Olá! Este é o canal de denúncias do Compliance. Seu relato é tratado com sigilo."
	msgMenu    = "Escolha uma opção:\n" +
		"1 - Fazer denúncia anônima\n" +
		"2 - Fazer denúncia identificada\n" +
		"3 - Consultar uma denúncia\n" +
		"4 - Encerrar"
	msgInvalidChoice = "Opção inválida."
	msgEmptyAnswer   = "Não recebi nenhuma resposta."
	msgGoodbye       = "Atendimento encerrado. Se precisar, é só enviar uma nova mensagem."
	msgCancelled     = "Denúncia cancelada. Nenhuma informação foi registrada."
	msgTryAgain      = "Tivemos uma falha temporária ao registrar sua denúncia. Seus dados foram mantidos. Envie 1 para tentar novamente."
	msgTemporary     = "Tivemos uma falha temporária. Por favor, tente novamente em instantes."
	msgResume        = "Continuando de onde paramos:"

	msgAnonymousNote = "Sua denúncia será anônima: não registraremos seu nome, e-mail ou telefone."

	msgAskName        = "Informe seu nome completo:"
	msgAskEmail       = "Informe seu e-mail para contato:"
	msgAskDescription = "Descreva o ocorrido com o máximo de detalhes possível:"
	msgAskDate        = "Quando aconteceu? (data aproximada)"
	msgAskLocation    = "Onde aconteceu? (unidade, setor ou local)"
	msgAskInvolved    = "Quem são as pessoas envolvidas?"
	msgAskWitnesses   = "Houve testemunhas? Quem?"
	msgAskEvidence    = "Possui evidências? Descreva ou envie fotos e documentos."
	msgAskRecurrence  = "Isso já aconteceu antes ou continua acontecendo?"
	msgAskSeverity    = "Qual a gravidade do ocorrido?\n1 - Baixa\n2 - Média\n3 - Alta"

	msgOverride = "Nossa análise automática indicou que este relato talvez não seja um caso de compliance.\n" +
		"1 - Registrar mesmo assim\n" +
		"2 - Cancelar"

	msgConfirmOptions = "1 - Confirmar e enviar\n2 - Corrigir uma informação\n3 - Cancelar"

	msgAskProtocol   = "Informe o número do protocolo:"
	msgAskCredential = "Informe a senha recebida no registro da denúncia:"
	msgNotFound      = "Protocolo ou senha inválidos."

	evidencePlaceholder = "[%d anexo(s) enviado(s)]"
)

var severityLabels = map[string]string{
	"1": "baixa",
	"2": "média",
	"3": "alta",
}

var fieldLabels = map[session.Field]string{
	session.FieldName:         "Nome",
	session.FieldEmail:        "E-mail",
	session.FieldDescription:  "Relato",
	session.FieldIncidentDate: "Data",
	session.FieldLocation:     "Local",
	session.FieldInvolved:     "Envolvidos",
	session.FieldWitnesses:    "Testemunhas",
	session.FieldEvidence:     "Evidências",
	session.FieldRecurrence:   "Recorrência",
	session.FieldSeverity:     "Gravidade",
}

func reportTypeLabel(t session.ReportType) string {
	if t == session.ReportIdentified {
		return "Identificada"
	}
	return "Anônima"
}

// summaryText renders every collected field for confirmation.
func summaryText(s *session.Session, fields []session.Field) string {
	var b strings.Builder
	b.WriteString("Confira os dados da sua denúncia:\n\n")
	fmt.Fprintf(&b, "Tipo: %s\n", reportTypeLabel(s.Fields.ReportType))
	for _, f := range fields {
		v := s.Fields.Get(f)
		if v == "" {
			v = "-"
		}
		fmt.Fprintf(&b, "%s: %s\n", fieldLabels[f], v)
	}
	if n := len(s.Fields.MediaRefs); n > 0 {
		fmt.Fprintf(&b, "Anexos: %d\n", n)
	}
	if s.Fields.Category != "" {
		fmt.Fprintf(&b, "Categoria: %s\n", s.Fields.Category)
	}
	if s.Fields.AISummary != "" && s.Fields.AISummary != s.Fields.Description {
		fmt.Fprintf(&b, "Resumo: %s\n", s.Fields.AISummary)
	}
	b.WriteString("\n")
	b.WriteString(msgConfirmOptions)
	return b.String()
}

func editMenuText(fields []session.Field) string {
	var b strings.Builder
	b.WriteString("Qual informação deseja corrigir?\n")
	for i, f := range fields {
		fmt.Fprintf(&b, "%d - %s\n", i+1, fieldLabels[f])
	}
	b.WriteString("0 - Voltar")
	return b.String()
}

func submittedText(protocol, credential string) string {
	var b strings.Builder
	b.WriteString("Denúncia registrada com sucesso.\n")
	fmt.Fprintf(&b, "Protocolo: %s\n", protocol)
	if credential != "" {
		fmt.Fprintf(&b, "Senha: %s\n", credential)
		b.WriteString("Guarde o protocolo e a senha: a senha é exibida apenas uma vez e será necessária para consultar o andamento.")
	} else {
		b.WriteString("Guarde o protocolo para consultar o andamento.")
	}
	return b.String()
}

func viewText(v report.View) string {
	var b strings.Builder
	b.WriteString("Denúncia encontrada:\n")
	fmt.Fprintf(&b, "Protocolo: %s\n", v.Protocol)
	fmt.Fprintf(&b, "Status: %s\n", statusLabel(v.Status))
	fmt.Fprintf(&b, "Categoria: %s\n", v.Category)
	if v.Severity != "" {
		fmt.Fprintf(&b, "Gravidade: %s\n", v.Severity)
	}
	fmt.Fprintf(&b, "Registrada em: %s", v.CreatedAt.Format("02/01/2006"))
	if v.Summary != "" {
		fmt.Fprintf(&b, "\nResumo: %s", v.Summary)
	}
	return b.String()
}

func statusLabel(status string) string {
	switch status {
	case report.StatusReceived:
		return "recebida"
	case "under_review":
		return "em análise"
	case "closed":
		return "encerrada"
	default:
		return status
	}
}
