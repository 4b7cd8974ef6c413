package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/investscope/pkg/config"
	"github.com/wonny/investscope/pkg/logger"
)

func TestChatCompletionsAnalyze(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`))
	}))
	defer srv.Close()

	p := NewMistral(config.ProviderConfig{APIKey: "secret", Model: "mistral-small-latest", BaseURL: srv.URL})
	text, err := p.Analyze(context.Background(), "Analyse la France", 9000)
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, text)
	assert.Equal(t, "mistral-small-latest", got.Model)
	assert.Equal(t, chatMaxTokens, got.MaxTokens)
	assert.Equal(t, chatTemperature, got.Temperature)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Analyse la France", got.Messages[1].Content)
}

func TestChatCompletionsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewDeepSeek(config.ProviderConfig{APIKey: "k", Model: "deepseek-chat", BaseURL: srv.URL})
	_, err := p.Analyze(context.Background(), "prompt", 100)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, "deepseek", p.Name())
}

func TestChatCompletionsNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewMistral(config.ProviderConfig{APIKey: "k", BaseURL: srv.URL})
	text, err := p.Analyze(context.Background(), "prompt", 100)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestMissingCredentials(t *testing.T) {
	providers := []Provider{
		NewClaude(config.ProviderConfig{}),
		NewGemini(config.ProviderConfig{}),
		NewMistral(config.ProviderConfig{BaseURL: "http://127.0.0.1:1"}),
	}
	for _, p := range providers {
		t.Run(p.Name(), func(t *testing.T) {
			_, err := p.Analyze(context.Background(), "prompt", 100)
			assert.ErrorIs(t, err, ErrMissingCredentials)
		})
	}
}

type fakeMessages struct {
	params anthropic.MessageNewParams
	resp   *anthropic.Message
	err    error
}

func (f *fakeMessages) New(_ context.Context, body anthropic.MessageNewParams, _ ...option.RequestOption) (*anthropic.Message, error) {
	f.params = body
	return f.resp, f.err
}

func TestClaudeJoinsTextBlocks(t *testing.T) {
	var msg anthropic.Message
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "msg_1", "type": "message", "role": "assistant", "model": "claude",
		"content": [
			{"type": "text", "text": "première"},
			{"type": "text", "text": "seconde"}
		]
	}`), &msg))

	fake := &fakeMessages{resp: &msg}
	c := &Claude{model: "claude-sonnet-4-20250514", messages: fake}

	text, err := c.Analyze(context.Background(), "prompt", 50)
	require.NoError(t, err)
	assert.Equal(t, "première\nseconde", text)
	assert.Equal(t, int64(claudeMinTokens), fake.params.MaxTokens)
}

func TestClaudeTransportError(t *testing.T) {
	c := &Claude{model: "m", messages: &fakeMessages{err: errors.New("dial tcp: refused")}}
	_, err := c.Analyze(context.Background(), "prompt", 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claude messages")
}

func TestFromConfig(t *testing.T) {
	cfg := &config.Config{Providers: config.ProvidersConfig{
		Order: []string{"deepseek", "claude"},
	}}
	o, err := FromConfig(cfg, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, []string{"deepseek", "claude"}, o.Names())
	assert.Equal(t, DefaultTimeout, o.timeout)

	cfg.Providers.Order = []string{"openai"}
	_, err = FromConfig(cfg, logger.Nop())
	assert.Error(t, err)
}
