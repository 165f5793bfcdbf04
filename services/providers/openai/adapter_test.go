package openai

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-cascade/services/providers"
)

var testDescriptor = providers.ProviderDescriptor{
	Name:     "cerebras",
	BaseURL:  "https://api.cerebras.ai/v1",
	Endpoint: "/chat/completions",
	Model:    "llama-3.1-70b-chat",
	Protocol: providers.ProtocolOpenAICompatible,
}

func TestAdapter_BuildRequest(t *testing.T) {
	adapter := NewAdapter()
	messages := []providers.ChatMessage{
		{Role: providers.RoleSystem, Content: "be brief"},
		{Role: providers.RoleUser, Content: "Hello"},
		{Role: providers.RoleAssistant, Content: "Hi"},
	}

	req, err := adapter.BuildRequest(testDescriptor, "sk-test", messages, providers.GenerationParams{MaxTokens: 100, Temperature: 0.5})
	require.NoError(t, err)

	assert.Equal(t, "https://api.cerebras.ai/v1/chat/completions", req.URL)
	assert.Equal(t, "Bearer sk-test", req.Headers["Authorization"])
	assert.Equal(t, "application/json", req.Headers["Content-Type"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, "llama-3.1-70b-chat", body["model"])
	assert.Equal(t, float64(100), body["max_tokens"])
	assert.Equal(t, 0.5, body["temperature"])

	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		got := m.(map[string]interface{})
		assert.Equal(t, string(messages[i].Role), got["role"])
		assert.Equal(t, messages[i].Content, got["content"])
	}
}

func TestAdapter_ParseResponse(t *testing.T) {
	adapter := NewAdapter()

	tests := []struct {
		name      string
		body      string
		want      string
		wantParse bool
	}{
		{
			name: "first choice content",
			body: `{"choices":[{"message":{"role":"assistant","content":"Response from Cerebras"}},{"message":{"content":"second"}}]}`,
			want: "Response from Cerebras",
		},
		{
			name: "empty choices is empty content",
			body: `{"choices":[]}`,
			want: "",
		},
		{
			name: "choice without message is empty content",
			body: `{"choices":[{"index":0}]}`,
			want: "",
		},
		{
			name:      "missing choices",
			body:      `{"id":"x"}`,
			wantParse: true,
		},
		{
			name:      "null choices",
			body:      `{"choices":null}`,
			wantParse: true,
		},
		{
			name:      "wrong type",
			body:      `{"choices":"nope"}`,
			wantParse: true,
		},
		{
			name:      "not json",
			body:      `<html>`,
			wantParse: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := adapter.ParseResponse(testDescriptor, []byte(tt.body))
			if tt.wantParse {
				require.Error(t, err)
				assert.Equal(t, providers.FailureParse, providers.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdapter_Kind(t *testing.T) {
	assert.Equal(t, providers.ProtocolOpenAICompatible, NewAdapter().Kind())
}
