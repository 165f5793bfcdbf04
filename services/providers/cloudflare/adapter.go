package cloudflare

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/upb/llm-cascade/services/providers"
)

var (
	// ErrMalformedCredential is returned when the credential is not "accountId/apiToken"
	ErrMalformedCredential = errors.New("cloudflare credential must be in the form accountId/apiToken")

	errMissingResult = errors.New("response has no result")
)

// Adapter implements providers.Protocol for Workers AI
type Adapter struct{}

// NewAdapter creates a new cloudflare-native adapter
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Kind returns the protocol kind
func (a *Adapter) Kind() providers.ProtocolKind {
	return providers.ProtocolCloudflareNative
}

// ParseCredential splits a composite "accountId/apiToken" credential
func ParseCredential(credential string) (accountID, token string, err error) {
	parts := strings.Split(credential, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrMalformedCredential
	}
	return parts[0], parts[1], nil
}

// BuildRequest substitutes the account id into the URL and sends the token as bearer.
// The model is implied by the endpoint path, so the body carries only messages.
func (a *Adapter) BuildRequest(desc providers.ProviderDescriptor, credential string, messages []providers.ChatMessage, _ providers.GenerationParams) (*providers.HTTPRequest, error) {
	accountID, token, err := ParseCredential(credential)
	if err != nil {
		return nil, providers.NewConfigurationError(desc.Name, err)
	}

	req := runRequest{Messages: make([]message, len(messages))}
	for i, msg := range messages {
		req.Messages[i] = message{Role: string(msg.Role), Content: msg.Content}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, providers.NewConfigurationError(desc.Name, err)
	}

	return &providers.HTTPRequest{
		URL: strings.ReplaceAll(desc.URL(), providers.AccountIDPlaceholder, accountID),
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + token,
		},
		Body: body,
	}, nil
}

// ParseResponse returns result.response
func (a *Adapter) ParseResponse(desc providers.ProviderDescriptor, body []byte) (string, error) {
	var resp runResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.NewParseError(desc.Name, err)
	}
	if resp.Result == nil {
		return "", providers.NewParseError(desc.Name, fmt.Errorf("%w (success=%t)", errMissingResult, resp.Success))
	}
	return resp.Result.Response, nil
}

type runRequest struct {
	Messages []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runResponse struct {
	Result  *runResult `json:"result"`
	Success bool       `json:"success"`
}

type runResult struct {
	Response string `json:"response"`
}
