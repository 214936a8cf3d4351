package formatter

import (
	"encoding/json"

	"github.com/harunnryd/ouvidoria/internal/report"
)

type JSONFormatter struct{}

func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

func (f *JSONFormatter) FormatRecords(records []*report.Record) (string, error) {
	data, err := json.MarshalIndent(toDetails(records), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (f *JSONFormatter) FormatRecord(r *report.Record) (string, error) {
	if r == nil {
		return "null", nil
	}
	data, err := json.MarshalIndent(toDetail(r), "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
