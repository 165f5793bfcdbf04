package cloudflare

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-cascade/services/providers"
)

var testDescriptor = providers.ProviderDescriptor{
	Name:     "cloudflare",
	BaseURL:  "https://api.cloudflare.com/client/v4/accounts/{account_id}/ai/run",
	Endpoint: "/@cf/meta/llama-3.1-8b-instruct",
	Model:    "@cf/meta/llama-3.1-8b-instruct",
	Protocol: providers.ProtocolCloudflareNative,
}

func TestParseCredential(t *testing.T) {
	tests := []struct {
		name       string
		credential string
		wantAcct   string
		wantToken  string
		wantErr    bool
	}{
		{name: "valid", credential: "acct123/tok456", wantAcct: "acct123", wantToken: "tok456"},
		{name: "no slash", credential: "acct123", wantErr: true},
		{name: "three parts", credential: "a/b/c", wantErr: true},
		{name: "empty account", credential: "/tok", wantErr: true},
		{name: "empty token", credential: "acct/", wantErr: true},
		{name: "empty", credential: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acct, token, err := ParseCredential(tt.credential)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedCredential)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAcct, acct)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestAdapter_BuildRequest(t *testing.T) {
	messages := []providers.ChatMessage{
		{Role: providers.RoleSystem, Content: "be brief"},
		{Role: providers.RoleUser, Content: "Hello"},
	}

	req, err := NewAdapter().BuildRequest(testDescriptor, "acct123/tok456", messages, providers.DefaultGenerationParams())
	require.NoError(t, err)

	assert.Equal(t, "https://api.cloudflare.com/client/v4/accounts/acct123/ai/run/@cf/meta/llama-3.1-8b-instruct", req.URL)
	assert.Equal(t, "Bearer tok456", req.Headers["Authorization"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.NotContains(t, body, "model")
	assert.Len(t, body["messages"], 2)
}

func TestAdapter_BuildRequest_MalformedCredential(t *testing.T) {
	req, err := NewAdapter().BuildRequest(testDescriptor, "just-a-token", nil, providers.DefaultGenerationParams())

	assert.Nil(t, req)
	assert.Equal(t, providers.FailureConfiguration, providers.KindOf(err))
	assert.ErrorIs(t, err, ErrMalformedCredential)
}

func TestAdapter_ParseResponse(t *testing.T) {
	adapter := NewAdapter()

	got, err := adapter.ParseResponse(testDescriptor, []byte(`{"result":{"response":"Response from Workers AI"},"success":true}`))
	require.NoError(t, err)
	assert.Equal(t, "Response from Workers AI", got)

	got, err = adapter.ParseResponse(testDescriptor, []byte(`{"result":{},"success":true}`))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = adapter.ParseResponse(testDescriptor, []byte(`{"success":false,"errors":[{"message":"x"}]}`))
	assert.Equal(t, providers.FailureParse, providers.KindOf(err))

	_, err = adapter.ParseResponse(testDescriptor, []byte(`{"result":"text"}`))
	assert.Equal(t, providers.FailureParse, providers.KindOf(err))
}
