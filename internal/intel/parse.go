package intel

import (
	"encoding/json"
	"strings"

	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
)

type analysisParseMode string

const (
	analysisParseModeJSON      analysisParseMode = "json_object"
	analysisParseModeExtracted analysisParseMode = "json_extracted"
)

type analysisPayload struct {
	Summary      string `json:"summary"`
	Resumo       string `json:"resumo"`
	Category     string `json:"category"`
	Categoria    string `json:"categoria"`
	IsCompliance *bool  `json:"is_compliance"`
}

func parseAnalysis(raw string, categories []string) (Analysis, analysisParseMode, error) {
	normalized := cleanModelJSON(raw)

	if a, ok := decodeAnalysis(normalized, categories); ok {
		return a, analysisParseModeJSON, nil
	}
	if extracted := extractFirstBalancedJSON(normalized, '{', '}'); extracted != "" {
		if a, ok := decodeAnalysis(extracted, categories); ok {
			return a, analysisParseModeExtracted, nil
		}
	}
	return Analysis{}, "", ouvErrors.InvalidModelOutput("analysis is not a JSON object")
}

func decodeAnalysis(raw string, categories []string) (Analysis, bool) {
	if strings.TrimSpace(raw) == "" {
		return Analysis{}, false
	}
	var p analysisPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Analysis{}, false
	}

	summary := firstNonEmpty(p.Summary, p.Resumo)
	if summary == "" {
		return Analysis{}, false
	}

	relevant := true
	if p.IsCompliance != nil {
		relevant = *p.IsCompliance
	}

	return Analysis{
		Summary:  summary,
		Category: matchCategory(firstNonEmpty(p.Category, p.Categoria), categories),
		Relevant: relevant,
	}, true
}

// matchCategory maps the model's answer onto the configured list, ignoring case.
func matchCategory(candidate string, categories []string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return CategoryUncategorized
	}
	for _, c := range categories {
		if strings.EqualFold(c, candidate) {
			return c
		}
	}
	return CategoryUncategorized
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func cleanModelJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func extractFirstBalancedJSON(input string, open, close byte) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(input); i++ {
		ch := input[i]
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case open:
			if depth == 0 {
				start = i
			}
			depth++
		case close:
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				return strings.TrimSpace(input[start : i+1])
			}
		}
	}
	return ""
}
