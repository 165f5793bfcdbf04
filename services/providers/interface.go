package providers

import (
	"fmt"
	"strings"
)

// ProtocolKind identifies which request/response shape a provider speaks
type ProtocolKind string

const (
	// ProtocolOpenAICompatible is the /chat/completions shape shared by most vendors
	ProtocolOpenAICompatible ProtocolKind = "openai-compatible"

	// ProtocolGeminiNative is Google's generateContent shape
	ProtocolGeminiNative ProtocolKind = "gemini-native"

	// ProtocolCloudflareNative is the Workers AI run shape
	ProtocolCloudflareNative ProtocolKind = "cloudflare-native"
)

// Valid reports whether k is one of the known protocol kinds
func (k ProtocolKind) Valid() bool {
	switch k {
	case ProtocolOpenAICompatible, ProtocolGeminiNative, ProtocolCloudflareNative:
		return true
	}
	return false
}

// Role is the author of a chat message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ProviderDescriptor describes one provider in the catalog
type ProviderDescriptor struct {
	// Name is the provider identity (e.g., "cerebras", "gemini")
	Name string `json:"name" yaml:"name"`

	// BaseURL is the API root, may contain {account_id} for cloudflare
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Endpoint is appended to BaseURL
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Model identifier sent to (or implied by) the provider
	Model string `json:"model" yaml:"model"`

	// Protocol selects the wire format
	Protocol ProtocolKind `json:"protocol" yaml:"protocol"`
}

// URL returns the base URL joined with the endpoint path
func (d ProviderDescriptor) URL() string {
	return strings.TrimRight(d.BaseURL, "/") + d.Endpoint
}

// ChatMessage is a single message in a conversation
type ChatMessage struct {
	// Role can be "system", "user", or "assistant"
	Role Role `json:"role" validate:"required,oneof=system user assistant"`

	// Content is the message text
	Content string `json:"content"`
}

// CredentialSet maps provider names to opaque credential strings.
// The cascade only reads it.
type CredentialSet map[string]string

// Lookup returns the trimmed credential for a provider and whether it is usable
func (c CredentialSet) Lookup(provider string) (string, bool) {
	cred := strings.TrimSpace(c[provider])
	return cred, cred != ""
}

// Merge returns a new set with override values taking precedence over c
func (c CredentialSet) Merge(override CredentialSet) CredentialSet {
	merged := make(CredentialSet, len(c)+len(override))
	for k, v := range c {
		merged[k] = v
	}
	for k, v := range override {
		if strings.TrimSpace(v) != "" {
			merged[k] = v
		}
	}
	return merged
}

// GenerationParams are the sampling settings sent to every provider
type GenerationParams struct {
	// MaxTokens limits the response length
	MaxTokens int

	// Temperature controls randomness
	Temperature float64
}

// DefaultGenerationParams returns the settings used when none are configured
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		MaxTokens:   32768,
		Temperature: 0.7,
	}
}

// HTTPRequest is a fully built provider call: method is always POST
type HTTPRequest struct {
	URL     string
	Headers map[string]string
	Body    []byte
}

// Protocol translates the uniform message list to one wire format and back
type Protocol interface {
	// Kind returns the protocol this adapter implements
	Kind() ProtocolKind

	// BuildRequest constructs URL, headers and body. It performs no I/O.
	BuildRequest(desc ProviderDescriptor, credential string, messages []ChatMessage, params GenerationParams) (*HTTPRequest, error)

	// ParseResponse extracts the generated text from a raw response body
	ParseResponse(desc ProviderDescriptor, body []byte) (string, error)
}

// ValidateMessages checks that every role is one of the enumerated values
func ValidateMessages(messages []ChatMessage) error {
	for i, msg := range messages {
		switch msg.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("message %d: unknown role %q", i, msg.Role)
		}
	}
	return nil
}
