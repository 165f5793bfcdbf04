// Package gemini implements providers.Protocol for the Gemini generateContent API.
//
// Differences from the OpenAI-compatible shape:
//   - the API key travels as the "key" query parameter, there is no auth header
//   - messages become "contents" with a "parts" list, one text part per message
//   - the "assistant" role is called "model"
//   - sampling settings nest under "generationConfig"
package gemini

import (
	"encoding/json"
	"errors"
	"net/url"

	"github.com/upb/llm-cascade/services/providers"
)

var (
	errMissingCandidates = errors.New("response has no candidates")
	errMissingParts      = errors.New("candidate content has no parts")
)

// Adapter implements providers.Protocol for gemini-native providers
type Adapter struct{}

// NewAdapter creates a new Gemini adapter
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Kind returns the protocol kind
func (a *Adapter) Kind() providers.ProtocolKind {
	return providers.ProtocolGeminiNative
}

// BuildRequest appends the credential as ?key= and remaps messages to contents
func (a *Adapter) BuildRequest(desc providers.ProviderDescriptor, credential string, messages []providers.ChatMessage, params providers.GenerationParams) (*providers.HTTPRequest, error) {
	u, err := url.Parse(desc.URL())
	if err != nil {
		return nil, providers.NewConfigurationError(desc.Name, err)
	}
	q := u.Query()
	q.Set("key", credential)
	u.RawQuery = q.Encode()

	body, err := json.Marshal(buildRequest(messages, params))
	if err != nil {
		return nil, providers.NewConfigurationError(desc.Name, err)
	}

	return &providers.HTTPRequest{
		URL: u.String(),
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: body,
	}, nil
}

// ParseResponse returns candidates[0].content.parts[0].text
func (a *Adapter) ParseResponse(desc providers.ProviderDescriptor, body []byte) (string, error) {
	var resp generateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.NewParseError(desc.Name, err)
	}

	if resp.Candidates == nil {
		return "", providers.NewParseError(desc.Name, errMissingCandidates)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil
	}

	parts := resp.Candidates[0].Content.Parts
	if parts == nil {
		return "", providers.NewParseError(desc.Name, errMissingParts)
	}
	if len(parts) == 0 {
		return "", nil
	}

	return parts[0].Text, nil
}

func buildRequest(messages []providers.ChatMessage, params providers.GenerationParams) *generateContentRequest {
	// Every message keeps its position in contents, system turns included.
	// Lifting them into systemInstruction would reorder the conversation.
	contents := make([]content, len(messages))
	for i, msg := range messages {
		role := string(msg.Role)
		if msg.Role == providers.RoleAssistant {
			role = "model"
		}
		contents[i] = content{
			Role:  role,
			Parts: []part{{Text: msg.Content}},
		}
	}

	return &generateContentRequest{
		Contents: contents,
		GenerationConfig: generationConfig{
			MaxOutputTokens: params.MaxTokens,
			Temperature:     params.Temperature,
		},
	}
}

// generateContentRequest is the body for POST .../models/{model}:generateContent
type generateContentRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// content is a single turn. Only "user", "model" and "system" roles are sent.
type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type generateContentResponse struct {
	Candidates []candidate `json:"candidates"`
}

// candidate is one possible completion, usually the only one
type candidate struct {
	Content      *content `json:"content"`
	FinishReason string   `json:"finishReason"`
}
