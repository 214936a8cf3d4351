package formatter

import (
	"strings"

	"github.com/harunnryd/ouvidoria/internal/report"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

const dateLayout = "2006-01-02 15:04"

type TableFormatter struct {
	headerStyle  lipgloss.Style
	cellStyle    lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		cellStyle: lipgloss.NewStyle().
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) FormatRecords(records []*report.Record) (string, error) {
	if len(records) == 0 {
		return "Nenhuma denúncia encontrada", nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers("Protocolo", "Tipo", "Categoria", "Gravidade", "Status", "Criada em")

	for _, r := range records {
		if r == nil {
			continue
		}
		t.Row(
			r.Protocol,
			string(r.ReportType),
			truncateString(r.Category, 25),
			r.Severity,
			r.Status,
			r.CreatedAt.Local().Format(dateLayout),
		)
	}

	return t.String(), nil
}

func (f *TableFormatter) FormatRecord(r *report.Record) (string, error) {
	if r == nil {
		return "Nenhuma denúncia encontrada", nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return f.headerStyle
			}
			return f.cellStyle
		})

	t.Row("Protocolo", r.Protocol)
	t.Row("Tipo", string(r.ReportType))
	if r.Name != "" {
		t.Row("Nome", r.Name)
	}
	if r.Email != "" {
		t.Row("E-mail", r.Email)
	}
	if r.Phone != "" {
		t.Row("Telefone", r.Phone)
	}
	t.Row("Status", r.Status)
	t.Row("Categoria", r.Category)
	t.Row("Gravidade", r.Severity)
	t.Row("Criada em", r.CreatedAt.Local().Format(dateLayout))
	t.Row("Canal", r.Source)
	t.Row("Resumo", truncateString(r.AISummary, 80))
	t.Row("Relato", truncateString(r.Description, 80))
	optional := [][2]string{
		{"Data do fato", r.IncidentDate},
		{"Local", r.Location},
		{"Envolvidos", r.Involved},
		{"Testemunhas", r.Witnesses},
		{"Evidências", r.EvidenceNote},
		{"Recorrência", r.Recurrence},
	}
	for _, row := range optional {
		if row[1] != "" {
			t.Row(row[0], truncateString(row[1], 80))
		}
	}
	if len(r.MediaRefs) > 0 {
		urls := make([]string, len(r.MediaRefs))
		for i, m := range r.MediaRefs {
			urls[i] = m.URL
		}
		t.Row("Anexos", strings.Join(urls, "\n"))
	}

	return t.String(), nil
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
