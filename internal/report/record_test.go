package report

import (
	"testing"
	"time"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSession_AnonymousDropsIdentity(t *testing.T) {
	s := session.New("whatsapp:+5511999990000", time.Now())
	s.Fields.ReportType = session.ReportAnonymous
	// a session that switched branch mid-way may still carry a name
	s.Fields.Name = "Maria"
	s.Fields.Email = "maria@example.com"
	s.Fields.Description = "relato"

	r := FromSession(s, "twilio", time.Now())

	assert.Equal(t, session.ReportAnonymous, r.ReportType)
	assert.Empty(t, r.Name)
	assert.Empty(t, r.Email)
	assert.Empty(t, r.Phone)
	assert.Equal(t, StatusReceived, r.Status)
}

func TestFromSession_IdentifiedKeepsIdentity(t *testing.T) {
	s := session.New("whatsapp:+5511999990000", time.Now())
	s.Fields.ReportType = session.ReportIdentified
	s.Fields.Name = " Maria "
	s.Fields.Description = "relato"

	r := FromSession(s, "twilio", time.Now())

	assert.Equal(t, "Maria", r.Name)
	assert.Equal(t, "whatsapp:+5511999990000", r.Phone)
}

func TestRecord_Validate(t *testing.T) {
	base := func() *Record {
		return &Record{ReportType: session.ReportIdentified, Name: "Maria", Description: "relato", Protocol: "20240101-ABCDEFGH"}
	}

	require.NoError(t, base().Validate())

	r := base()
	r.Description = "  "
	assert.True(t, ouvErrors.IsCategory(r.Validate(), ouvErrors.ErrInvalidInput))

	r = base()
	r.Name = ""
	assert.True(t, ouvErrors.IsCategory(r.Validate(), ouvErrors.ErrInvalidInput))

	r = base()
	r.ReportType = session.ReportAnonymous
	assert.Error(t, r.Validate(), "unsanitized anonymous record must be rejected")
	r.Sanitize()
	assert.NoError(t, r.Validate())
}

func TestRecord_ViewHasNoIdentity(t *testing.T) {
	r := &Record{
		Protocol: "20240101-ABCDEFGH", Status: StatusReceived, Category: "Fraude",
		Severity: "alta", AISummary: "resumo", Name: "Maria", Email: "m@example.com", Phone: "+55",
	}
	v := r.View()
	assert.Equal(t, "20240101-ABCDEFGH", v.Protocol)
	assert.Equal(t, "Fraude", v.Category)
	assert.Equal(t, "resumo", v.Summary)
}
