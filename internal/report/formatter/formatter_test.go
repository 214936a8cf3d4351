package formatter

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/harunnryd/ouvidoria/internal/report"
	"github.com/harunnryd/ouvidoria/internal/session"
)

func sampleRecords() []*report.Record {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	return []*report.Record{
		{
			ID:             "01HZX0000000000000000000AA",
			Protocol:       "20260314-7K2M9QXA",
			CredentialHash: "$2a$10$abcdefghijklmnopqrstuv",
			ReportType:     session.ReportAnonymous,
			Description:    "Notas fiscais alteradas pelo gestor",
			AISummary:      "Possível fraude documental.",
			Category:       "Fraude",
			Severity:       "alta",
			Status:         report.StatusReceived,
			Source:         "twilio",
			CreatedAt:      created,
			MediaRefs:      []session.MediaRef{{URL: "https://api.twilio.com/media/ME1", ContentType: "image/jpeg"}},
		},
		{
			ID:             "01HZX0000000000000000000BB",
			Protocol:       "20260314-PQ4R8STB",
			CredentialHash: "$2a$10$zyxwvutsrqponmlkjihgfe",
			ReportType:     session.ReportIdentified,
			Name:           "Maria Souza",
			Email:          "maria@example.com",
			Phone:          "whatsapp:+5511999990000",
			Description:    "Assédio moral na equipe de vendas",
			Category:       "Assédio moral",
			Status:         report.StatusReceived,
			Source:         "telegram",
			CreatedAt:      created.Add(time.Hour),
		},
	}
}

func TestFormatterFactory_Create(t *testing.T) {
	factory := NewFormatterFactory()

	tests := []struct {
		name    string
		format  OutputFormat
		wantErr bool
	}{
		{name: "table format", format: OutputFormatTable},
		{name: "json format", format: OutputFormatJSON},
		{name: "yaml format", format: OutputFormatYAML},
		{name: "invalid format", format: OutputFormat("invalid"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter, err := factory.Create(tt.format)
			if (err != nil) != tt.wantErr {
				t.Errorf("Create() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && formatter == nil {
				t.Error("Create() returned nil formatter for valid format")
			}
		})
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    OutputFormat
		wantErr bool
	}{
		{input: "TABLE", want: OutputFormatTable},
		{input: "table", want: OutputFormatTable},
		{input: "Json", want: OutputFormatJSON},
		{input: "yaml", want: OutputFormatYAML},
		{input: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseOutputFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseOutputFormat() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("ParseOutputFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatters_NeverRenderCredentialHash(t *testing.T) {
	factory := NewFormatterFactory()
	for _, format := range []OutputFormat{OutputFormatTable, OutputFormatJSON, OutputFormatYAML} {
		f, err := factory.Create(format)
		if err != nil {
			t.Fatalf("Create(%s) error = %v", format, err)
		}
		list, err := f.FormatRecords(sampleRecords())
		if err != nil {
			t.Fatalf("%s FormatRecords() error = %v", format, err)
		}
		single, err := f.FormatRecord(sampleRecords()[0])
		if err != nil {
			t.Fatalf("%s FormatRecord() error = %v", format, err)
		}
		for _, out := range []string{list, single} {
			if strings.Contains(out, "$2a$") {
				t.Errorf("%s output contains a credential hash:\n%s", format, out)
			}
			if !strings.Contains(out, "20260314-7K2M9QXA") {
				t.Errorf("%s output missing protocol:\n%s", format, out)
			}
		}
	}
}

func TestTableFormatter_FormatRecords(t *testing.T) {
	out, err := NewTableFormatter().FormatRecords(sampleRecords())
	if err != nil {
		t.Fatalf("FormatRecords() error = %v", err)
	}
	for _, want := range []string{"20260314-7K2M9QXA", "20260314-PQ4R8STB", "Fraude", "identified"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatRecords() output missing %q:\n%s", want, out)
		}
	}
	// The listing is for triage and leaves identity out.
	if strings.Contains(out, "Maria Souza") {
		t.Errorf("FormatRecords() output should not list names:\n%s", out)
	}
}

func TestTableFormatter_Empty(t *testing.T) {
	f := NewTableFormatter()

	out, err := f.FormatRecords(nil)
	if err != nil {
		t.Fatalf("FormatRecords() error = %v", err)
	}
	if out != "Nenhuma denúncia encontrada" {
		t.Errorf("FormatRecords() = %q", out)
	}

	out, err = f.FormatRecord(nil)
	if err != nil {
		t.Fatalf("FormatRecord() error = %v", err)
	}
	if out != "Nenhuma denúncia encontrada" {
		t.Errorf("FormatRecord() = %q", out)
	}
}

func TestTableFormatter_FormatRecord(t *testing.T) {
	records := sampleRecords()
	f := NewTableFormatter()

	anon, err := f.FormatRecord(records[0])
	if err != nil {
		t.Fatalf("FormatRecord() error = %v", err)
	}
	if strings.Contains(anon, "Nome") || strings.Contains(anon, "Telefone") {
		t.Errorf("anonymous record should have no identity rows:\n%s", anon)
	}
	if !strings.Contains(anon, "https://api.twilio.com/media/ME1") {
		t.Errorf("media reference missing:\n%s", anon)
	}

	ident, err := f.FormatRecord(records[1])
	if err != nil {
		t.Fatalf("FormatRecord() error = %v", err)
	}
	if !strings.Contains(ident, "Maria Souza") || !strings.Contains(ident, "maria@example.com") {
		t.Errorf("identified record should show contact fields:\n%s", ident)
	}
}

func TestJSONFormatter_FormatRecords(t *testing.T) {
	out, err := NewJSONFormatter().FormatRecords(sampleRecords())
	if err != nil {
		t.Fatalf("FormatRecords() error = %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded %d records, want 2", len(decoded))
	}
	if _, ok := decoded[0]["name"]; ok {
		t.Error("empty identity fields should be omitted")
	}
	if decoded[1]["name"] != "Maria Souza" {
		t.Errorf("name = %v", decoded[1]["name"])
	}
}

func TestFormatRecord_Nil(t *testing.T) {
	for _, f := range []RecordFormatter{NewJSONFormatter(), NewYAMLFormatter()} {
		out, err := f.FormatRecord(nil)
		if err != nil {
			t.Fatalf("FormatRecord(nil) error = %v", err)
		}
		if out != "null" {
			t.Errorf("FormatRecord(nil) = %q, want null", out)
		}
	}
}

func TestYAMLFormatter_FormatRecord(t *testing.T) {
	out, err := NewYAMLFormatter().FormatRecord(sampleRecords()[1])
	if err != nil {
		t.Fatalf("FormatRecord() error = %v", err)
	}
	for _, want := range []string{"protocol: 20260314-PQ4R8STB", "report_type: identified", "source: telegram"} {
		if !strings.Contains(out, want) {
			t.Errorf("YAML output missing %q:\n%s", want, out)
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{name: "short string", input: "hello", maxLen: 20, expected: "hello"},
		{name: "exact length", input: "hello world", maxLen: 11, expected: "hello world"},
		{name: "too long", input: "hello world test", maxLen: 10, expected: "hello w..."},
		{name: "multibyte", input: "ameaça à equipe de produção", maxLen: 10, expected: "ameaça ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateString(tt.input, tt.maxLen); got != tt.expected {
				t.Errorf("truncateString() = %q, want %q", got, tt.expected)
			}
		})
	}
}
