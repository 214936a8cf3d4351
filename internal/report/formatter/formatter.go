package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
)

type OutputFormat string

const (
	OutputFormatTable OutputFormat = "table"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
)

// RecordFormatter renders records for the back-office CLI. The credential
// hash is never rendered.
type RecordFormatter interface {
	FormatRecords([]*report.Record) (string, error)
	FormatRecord(*report.Record) (string, error)
}

type FormatterFactory struct{}

func NewFormatterFactory() *FormatterFactory {
	return &FormatterFactory{}
}

func (f *FormatterFactory) Create(format OutputFormat) (RecordFormatter, error) {
	switch format {
	case OutputFormatTable:
		return NewTableFormatter(), nil
	case OutputFormatJSON:
		return NewJSONFormatter(), nil
	case OutputFormatYAML:
		return NewYAMLFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s (supported: table, json, yaml)", format)
	}
}

func ParseOutputFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(s))
	switch format {
	case OutputFormatTable, OutputFormatJSON, OutputFormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("invalid output format: %s (supported: table, json, yaml)", s)
	}
}

// detail is the serialized shape of a record.
type detail struct {
	ID           string             `json:"id" yaml:"id"`
	Protocol     string             `json:"protocol" yaml:"protocol"`
	ReportType   session.ReportType `json:"report_type" yaml:"report_type"`
	Name         string             `json:"name,omitempty" yaml:"name,omitempty"`
	Email        string             `json:"email,omitempty" yaml:"email,omitempty"`
	Phone        string             `json:"phone,omitempty" yaml:"phone,omitempty"`
	Description  string             `json:"description" yaml:"description"`
	AISummary    string             `json:"ai_summary,omitempty" yaml:"ai_summary,omitempty"`
	Category     string             `json:"category,omitempty" yaml:"category,omitempty"`
	IncidentDate string             `json:"incident_date,omitempty" yaml:"incident_date,omitempty"`
	Location     string             `json:"location,omitempty" yaml:"location,omitempty"`
	Involved     string             `json:"people_involved,omitempty" yaml:"people_involved,omitempty"`
	Witnesses    string             `json:"witnesses,omitempty" yaml:"witnesses,omitempty"`
	EvidenceNote string             `json:"evidence_note,omitempty" yaml:"evidence_note,omitempty"`
	Recurrence   string             `json:"recurrence,omitempty" yaml:"recurrence,omitempty"`
	Severity     string             `json:"severity,omitempty" yaml:"severity,omitempty"`
	MediaRefs    []string           `json:"media_refs,omitempty" yaml:"media_refs,omitempty"`
	Status       string             `json:"status" yaml:"status"`
	Source       string             `json:"source" yaml:"source"`
	CreatedAt    time.Time          `json:"created_at" yaml:"created_at"`
}

func toDetail(r *report.Record) detail {
	d := detail{
		ID:           r.ID,
		Protocol:     r.Protocol,
		ReportType:   r.ReportType,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Description:  r.Description,
		AISummary:    r.AISummary,
		Category:     r.Category,
		IncidentDate: r.IncidentDate,
		Location:     r.Location,
		Involved:     r.Involved,
		Witnesses:    r.Witnesses,
		EvidenceNote: r.EvidenceNote,
		Recurrence:   r.Recurrence,
		Severity:     r.Severity,
		Status:       r.Status,
		Source:       r.Source,
		CreatedAt:    r.CreatedAt,
	}
	for _, m := range r.MediaRefs {
		d.MediaRefs = append(d.MediaRefs, m.URL)
	}
	return d
}

func toDetails(records []*report.Record) []detail {
	out := make([]detail, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, toDetail(r))
		}
	}
	return out
}
