package intel

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/ouvidoria/internal/config"
	"github.com/harunnryd/ouvidoria/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRouter struct {
	reply string
	err   error
	last  contract.CompletionRequest
}

func (f *fakeRouter) Route(ctx context.Context, model string, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &contract.CompletionResponse{Content: f.reply}, nil
}
func (f *fakeRouter) ListModels() []string             { return nil }
func (f *fakeRouter) Health(ctx context.Context) error { return nil }

func TestLLMService_Correct(t *testing.T) {
	r := &fakeRouter{reply: "  Fui discriminado no setor X.  "}
	svc := NewLLMService(r, "gpt-4o-mini", config.PromptsConfig{})

	out, err := svc.Correct(context.Background(), "fui discriminado no setor x")
	require.NoError(t, err)
	assert.Equal(t, "Fui discriminado no setor X.", out)
	require.Len(t, r.last.Messages, 2)
	assert.Equal(t, config.DefaultCorrectSystemPrompt, r.last.Messages[0].Content)
	assert.Equal(t, "fui discriminado no setor x", r.last.Messages[1].Content)
}

func TestLLMService_CorrectEmptyIsError(t *testing.T) {
	svc := NewLLMService(&fakeRouter{reply: " "}, "m", config.PromptsConfig{})
	_, err := svc.Correct(context.Background(), "texto")
	assert.Error(t, err)
}

func TestLLMService_SummarizeAndClassify(t *testing.T) {
	r := &fakeRouter{reply: `{"summary":"Resumo","category":"Fraude","is_compliance":true}`}
	svc := NewLLMService(r, "m", config.PromptsConfig{})

	a, err := svc.SummarizeAndClassify(context.Background(), "desvio de verba")
	require.NoError(t, err)
	assert.Equal(t, Analysis{Summary: "Resumo", Category: "Fraude", Relevant: true}, a)
	assert.True(t, r.last.JSON)
	assert.Contains(t, r.last.Messages[0].Content, "Conflito de interesses")
}

func TestLLMService_PropagatesRouterError(t *testing.T) {
	svc := NewLLMService(&fakeRouter{err: errors.New("down")}, "m", config.PromptsConfig{})

	_, err := svc.Correct(context.Background(), "x")
	assert.Error(t, err)
	_, err = svc.SummarizeAndClassify(context.Background(), "x")
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	out, err := Noop{}.Correct(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", out)

	a, err := Noop{}.SummarizeAndClassify(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, Analysis{Summary: "abc", Category: CategoryUncategorized, Relevant: true}, a)
}

func TestFromConfig_DisabledIsNoop(t *testing.T) {
	cfg := &config.Config{}
	svc, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, svc)

	svc, err = FromConfig(nil)
	require.NoError(t, err)
	assert.IsType(t, Noop{}, svc)
}

func TestFromConfig_BuildsLLMService(t *testing.T) {
	cfg := &config.Config{
		Intake: config.IntakeConfig{Analyze: true},
		Models: config.ModelsConfig{
			Default:  "local",
			Registry: []config.ModelRegistry{{Name: "local", Provider: "ollama", BaseURL: "http://localhost:11434/v1"}},
		},
	}
	svc, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.IsType(t, &LLMService{}, svc)
}
