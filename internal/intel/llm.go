package intel

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harunnryd/ouvidoria/internal/config"
	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/logger"
	"github.com/harunnryd/ouvidoria/internal/model"
	"github.com/harunnryd/ouvidoria/internal/model/contract"
)

var (
	correctTemperature float32 = 0.2
	analyzeTemperature float32 = 0
)

// LLMService implements Service over the model router.
type LLMService struct {
	router     model.ModelRouter
	model      string
	correct    config.CorrectPromptConfig
	analyze    config.AnalyzePromptConfig
	categories []string
}

func NewLLMService(router model.ModelRouter, modelName string, prompts config.PromptsConfig) *LLMService {
	if prompts.Correct.System == "" {
		prompts.Correct.System = config.DefaultCorrectSystemPrompt
	}
	if prompts.Analyze.System == "" {
		prompts.Analyze.System = config.DefaultAnalyzeSystemPrompt
	}
	categories := prompts.Analyze.Categories
	if len(categories) == 0 {
		categories = config.DefaultAnalyzeCategories
	}

	return &LLMService{
		router:     router,
		model:      modelName,
		correct:    prompts.Correct,
		analyze:    prompts.Analyze,
		categories: categories,
	}
}

func (s *LLMService) Correct(ctx context.Context, text string) (string, error) {
	resp, err := s.router.Route(ctx, s.model, contract.CompletionRequest{
		Messages: []contract.Message{
			{Role: contract.RoleSystem, Content: s.correct.System},
			{Role: contract.RoleUser, Content: text},
		},
		Temperature: &correctTemperature,
	})
	if err != nil {
		return "", err
	}

	out := strings.TrimSpace(resp.Content)
	if out == "" {
		return "", ouvErrors.InvalidModelOutput("empty correction")
	}
	return out, nil
}

func (s *LLMService) SummarizeAndClassify(ctx context.Context, text string) (Analysis, error) {
	system := fmt.Sprintf("%s\n\nCategorias permitidas: %s.", s.analyze.System, strings.Join(s.categories, "; "))

	resp, err := s.router.Route(ctx, s.model, contract.CompletionRequest{
		Messages: []contract.Message{
			{Role: contract.RoleSystem, Content: system},
			{Role: contract.RoleUser, Content: text},
		},
		Temperature: &analyzeTemperature,
		JSON:        true,
	})
	if err != nil {
		return Analysis{}, err
	}

	analysis, mode, err := parseAnalysis(resp.Content, s.categories)
	if err != nil {
		return Analysis{}, err
	}
	slog.Debug("Analysis parsed", "mode", mode, "category", analysis.Category, "trace_id", logger.GetTraceID(ctx))
	return analysis, nil
}

// FromConfig builds the service the intake engine uses: the LLM service over
// the configured model registry, or Noop when no intelligence call is enabled.
func FromConfig(cfg *config.Config) (Service, error) {
	if cfg == nil || (!cfg.Intake.CorrectText && !cfg.Intake.Analyze) {
		return Noop{}, nil
	}
	router, err := model.NewModelRouter(cfg.Models)
	if err != nil {
		return nil, ouvErrors.Wrap(err, "build model router")
	}
	return NewLLMService(router, cfg.Models.Default, cfg.Prompts), nil
}
