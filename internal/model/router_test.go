package model

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/ouvidoria/internal/config"
	ouvErrors "github.com/harunnryd/ouvidoria/internal/errors"
	"github.com/harunnryd/ouvidoria/internal/model/contract"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name   string
	reply  string
	err    error
	calls  int
	models []string
}

func (s *stubProvider) Generate(ctx context.Context, req contract.CompletionRequest) (*contract.CompletionResponse, error) {
	s.calls++
	s.models = append(s.models, req.Model)
	if s.err != nil {
		return nil, s.err
	}
	return &contract.CompletionResponse{Content: s.reply}, nil
}
func (s *stubProvider) Name() string                     { return s.name }
func (s *stubProvider) Type() string                     { return "stub" }
func (s *stubProvider) Health(ctx context.Context) error { return nil }

func TestRouter_RoutesToNamedModel(t *testing.T) {
	primary := &stubProvider{name: "primary", reply: "ok"}
	r := NewRouterWithProviders(config.ModelsConfig{}, map[string]Provider{"gpt-4o-mini": primary})

	resp, err := r.Route(context.Background(), "gpt-4o-mini", contract.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, []string{"gpt-4o-mini"}, primary.models)
}

func TestRouter_FallsBackAfterFailure(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("connection refused")}
	backup := &stubProvider{name: "backup", reply: "from backup"}
	r := NewRouterWithProviders(
		config.ModelsConfig{Fallback: "claude", MaxFallbackAttempts: 2},
		map[string]Provider{"gpt": primary, "claude": backup},
	)

	resp, err := r.Route(context.Background(), "gpt", contract.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Content)
	assert.Equal(t, 1, primary.calls)
	assert.Equal(t, []string{"claude"}, backup.models)
}

func TestRouter_FailureWithoutFallbackIsCategorized(t *testing.T) {
	primary := &stubProvider{name: "primary", err: errors.New("429 too many requests")}
	r := NewRouterWithProviders(config.ModelsConfig{}, map[string]Provider{"gpt": primary})

	_, err := r.Route(context.Background(), "gpt", contract.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, ouvErrors.IsCategory(err, ouvErrors.ErrTransient), "got %v", err)
}

func TestRouter_UnknownModel(t *testing.T) {
	r := NewRouterWithProviders(config.ModelsConfig{}, nil)

	_, err := r.Route(context.Background(), "missing", contract.CompletionRequest{})
	assert.True(t, ouvErrors.IsCategory(err, ouvErrors.ErrNotFound))
}

func TestNewModelRouter_SkipsEntriesWithoutKeys(t *testing.T) {
	_, err := NewModelRouter(config.ModelsConfig{
		Registry: []config.ModelRegistry{{Name: "gpt-4o-mini", Provider: "openai"}},
	})
	assert.True(t, ouvErrors.IsCategory(err, ouvErrors.ErrConfig))

	r, err := NewModelRouter(config.ModelsConfig{
		Registry: []config.ModelRegistry{
			{Name: "gpt-4o-mini", Provider: "openai"},
			{Name: "llama3", Provider: "ollama"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3"}, r.ListModels())
}

func TestSplitSystem(t *testing.T) {
	system, rest := contract.SplitSystem([]contract.Message{
		{Role: contract.RoleSystem, Content: "a"},
		{Role: contract.RoleUser, Content: "hi"},
		{Role: contract.RoleSystem, Content: "b"},
	})
	assert.Equal(t, "a\n\nb", system)
	assert.Equal(t, []contract.Message{{Role: contract.RoleUser, Content: "hi"}}, rest)
}
