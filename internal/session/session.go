package session

import (
	"time"
)

type ReportType string

const (
	ReportAnonymous  ReportType = "anonymous"
	ReportIdentified ReportType = "identified"
)

// Field names a collected value. The string form is also the persisted column name.
type Field string

const (
	FieldName         Field = "name"
	FieldEmail        Field = "email"
	FieldDescription  Field = "description"
	FieldIncidentDate Field = "incident_date"
	FieldLocation     Field = "location"
	FieldInvolved     Field = "people_involved"
	FieldWitnesses    Field = "witnesses"
	FieldEvidence     Field = "evidence_note"
	FieldRecurrence   Field = "recurrence"
	FieldSeverity     Field = "severity"
)

// MediaRef is an attachment reference as received from the gateway.
// Only the URL is kept; the media itself is never downloaded.
type MediaRef struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type,omitempty"`
}

// Fields holds everything collected so far. Empty string means unset.
type Fields struct {
	ReportType   ReportType `json:"report_type,omitempty"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email,omitempty"`
	Description  string     `json:"description,omitempty"`
	AISummary    string     `json:"ai_summary,omitempty"`
	Category     string     `json:"category,omitempty"`
	IncidentDate string     `json:"incident_date,omitempty"`
	Location     string     `json:"location,omitempty"`
	Involved     string     `json:"people_involved,omitempty"`
	Witnesses    string     `json:"witnesses,omitempty"`
	EvidenceNote string     `json:"evidence_note,omitempty"`
	Recurrence   string     `json:"recurrence,omitempty"`
	Severity     string     `json:"severity,omitempty"`
	MediaRefs    []MediaRef `json:"media_refs,omitempty"`
}

func (f *Fields) ptr(field Field) *string {
	switch field {
	case FieldName:
		return &f.Name
	case FieldEmail:
		return &f.Email
	case FieldDescription:
		return &f.Description
	case FieldIncidentDate:
		return &f.IncidentDate
	case FieldLocation:
		return &f.Location
	case FieldInvolved:
		return &f.Involved
	case FieldWitnesses:
		return &f.Witnesses
	case FieldEvidence:
		return &f.EvidenceNote
	case FieldRecurrence:
		return &f.Recurrence
	case FieldSeverity:
		return &f.Severity
	}
	return nil
}

func (f *Fields) Get(field Field) string {
	if p := f.ptr(field); p != nil {
		return *p
	}
	return ""
}

// Set stores value under field. Unknown fields are ignored.
func (f *Fields) Set(field Field, value string) {
	if p := f.ptr(field); p != nil {
		*p = value
	}
}

// Session is one sender's in-flight conversation.
type Session struct {
	SenderID string `json:"sender_id"`
	Stage    Stage  `json:"stage"`
	Fields   Fields `json:"fields"`

	// Editing is set while a single field is re-collected from CONFIRM.
	Editing bool `json:"editing,omitempty"`
	// LookupProtocol carries the protocol between the two lookup prompts.
	LookupProtocol string `json:"lookup_protocol,omitempty"`

	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func New(senderID string, now time.Time) *Session {
	return &Session{
		SenderID:     senderID,
		Stage:        StageMenu,
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Expired reports whether the session sat idle longer than timeout.
// A non-positive timeout disables expiry.
func (s *Session) Expired(now time.Time, timeout time.Duration) bool {
	if timeout <= 0 {
		return false
	}
	return now.Sub(s.LastActiveAt) > timeout
}

func (s *Session) Touch(now time.Time) {
	s.LastActiveAt = now
}

// Reset drops collected data and returns the session to MENU.
func (s *Session) Reset() {
	s.Stage = StageMenu
	s.Fields = Fields{}
	s.Editing = false
	s.LookupProtocol = ""
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.Fields.MediaRefs != nil {
		c.Fields.MediaRefs = append([]MediaRef(nil), s.Fields.MediaRefs...)
	}
	return &c
}
