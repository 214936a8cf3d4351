package report

import (
	"strings"
	"time"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/session"
)

const StatusReceived = "received"

// Record is a finalized submission as persisted.
type Record struct {
	ID             string
	Protocol       string
	CredentialHash string
	ReportType     session.ReportType

	// Identity, only for identified reports.
	Name  string
	Email string
	Phone string

	Description  string
	AISummary    string
	Category     string
	IncidentDate string
	Location     string
	Involved     string
	Witnesses    string
	EvidenceNote string
	Recurrence   string
	Severity     string
	MediaRefs    []session.MediaRef

	Status    string
	Source    string
	CreatedAt time.Time
}

// FromSession assembles a record from collected fields. It does not mint a
// protocol or credential and does not validate.
func FromSession(s *session.Session, source string, now time.Time) *Record {
	f := s.Fields
	r := &Record{
		ReportType:   f.ReportType,
		Name:         strings.TrimSpace(f.Name),
		Email:        strings.TrimSpace(f.Email),
		Phone:        s.SenderID,
		Description:  f.Description,
		AISummary:    f.AISummary,
		Category:     f.Category,
		IncidentDate: f.IncidentDate,
		Location:     f.Location,
		Involved:     f.Involved,
		Witnesses:    f.Witnesses,
		EvidenceNote: f.EvidenceNote,
		Recurrence:   f.Recurrence,
		Severity:     f.Severity,
		MediaRefs:    append([]session.MediaRef(nil), f.MediaRefs...),
		Status:       StatusReceived,
		Source:       source,
		CreatedAt:    now.UTC(),
	}
	r.Sanitize()
	return r
}

// Sanitize clears identity fields on anonymous reports. Anything that is not
// explicitly identified is treated as anonymous.
func (r *Record) Sanitize() {
	if r.ReportType != session.ReportIdentified {
		r.ReportType = session.ReportAnonymous
		r.Name = ""
		r.Email = ""
		r.Phone = ""
	}
}

// Validate checks the fields required before a record may be written.
func (r *Record) Validate() error {
	if strings.TrimSpace(r.Description) == "" {
		return ouvErrors.InvalidInput("description is required")
	}
	if r.ReportType == session.ReportIdentified && strings.TrimSpace(r.Name) == "" {
		return ouvErrors.InvalidInput("name is required for identified reports")
	}
	if r.ReportType == session.ReportAnonymous && (r.Name != "" || r.Email != "" || r.Phone != "") {
		return ouvErrors.InvalidInput("anonymous report carries identity fields")
	}
	if r.Protocol == "" {
		return ouvErrors.InvalidInput("protocol is required")
	}
	return nil
}

// View is what a requester proving protocol and credential may see.
type View struct {
	Protocol  string    `json:"protocolo" yaml:"protocolo"`
	Status    string    `json:"status" yaml:"status"`
	Category  string    `json:"categoria" yaml:"categoria"`
	Severity  string    `json:"gravidade,omitempty" yaml:"gravidade,omitempty"`
	Summary   string    `json:"resumo" yaml:"resumo"`
	CreatedAt time.Time `json:"data_criacao" yaml:"data_criacao"`
}

func (r *Record) View() View {
	return View{
		Protocol:  r.Protocol,
		Status:    r.Status,
		Category:  r.Category,
		Severity:  r.Severity,
		Summary:   r.AISummary,
		CreatedAt: r.CreatedAt,
	}
}
