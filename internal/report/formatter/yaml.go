package formatter

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/harunnryd/ouvidoria/internal/report"
)

type YAMLFormatter struct{}

func NewYAMLFormatter() *YAMLFormatter {
	return &YAMLFormatter{}
}

func (f *YAMLFormatter) FormatRecords(records []*report.Record) (string, error) {
	data, err := yaml.Marshal(toDetails(records))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (f *YAMLFormatter) FormatRecord(r *report.Record) (string, error) {
	if r == nil {
		return "null", nil
	}
	data, err := yaml.Marshal(toDetail(r))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
