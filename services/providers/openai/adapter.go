package openai

import (
	"encoding/json"
	"errors"

	"github.com/upb/llm-cascade/services/providers"
)

// errMissingChoices is returned when the response has no choices array
var errMissingChoices = errors.New("response has no choices")

// Adapter implements providers.Protocol for OpenAI-compatible chat completions
type Adapter struct{}

// NewAdapter creates a new OpenAI-compatible adapter
func NewAdapter() *Adapter {
	return &Adapter{}
}

// Kind returns the protocol kind
func (a *Adapter) Kind() providers.ProtocolKind {
	return providers.ProtocolOpenAICompatible
}

// BuildRequest builds a bearer-authenticated /chat/completions call
func (a *Adapter) BuildRequest(desc providers.ProviderDescriptor, credential string, messages []providers.ChatMessage, params providers.GenerationParams) (*providers.HTTPRequest, error) {
	body, err := json.Marshal(a.buildChatRequest(desc, messages, params))
	if err != nil {
		return nil, providers.NewConfigurationError(desc.Name, err)
	}

	return &providers.HTTPRequest{
		URL: desc.URL(),
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": "Bearer " + credential,
		},
		Body: body,
	}, nil
}

// ParseResponse returns the first choice's message content
func (a *Adapter) ParseResponse(desc providers.ProviderDescriptor, body []byte) (string, error) {
	var resp ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", providers.NewParseError(desc.Name, err)
	}

	if resp.Choices == nil {
		return "", providers.NewParseError(desc.Name, errMissingChoices)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}

// buildChatRequest passes messages through unchanged
func (a *Adapter) buildChatRequest(desc providers.ProviderDescriptor, messages []providers.ChatMessage, params providers.GenerationParams) *ChatRequest {
	req := &ChatRequest{
		Model:       desc.Model,
		Messages:    make([]Message, len(messages)),
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	}

	for i, msg := range messages {
		req.Messages[i] = Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	return req
}

// OpenAI-compatible request/response types

type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
}

type Choice struct {
	Index        int      `json:"index"`
	Message      *Message `json:"message"`
	FinishReason string   `json:"finish_reason"`
}
