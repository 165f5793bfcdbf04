package cascade

import (
	"fmt"

	"github.com/upb/llm-cascade/services/providers"
	"github.com/upb/llm-cascade/services/providers/cloudflare"
	"github.com/upb/llm-cascade/services/providers/gemini"
	"github.com/upb/llm-cascade/services/providers/openai"
)

// protocolFor returns the adapter for a protocol kind.
// Adding a protocol kind means adding a case here.
func protocolFor(desc providers.ProviderDescriptor) (providers.Protocol, error) {
	switch desc.Protocol {
	case providers.ProtocolOpenAICompatible:
		return openai.NewAdapter(), nil
	case providers.ProtocolGeminiNative:
		return gemini.NewAdapter(), nil
	case providers.ProtocolCloudflareNative:
		return cloudflare.NewAdapter(), nil
	default:
		return nil, providers.NewConfigurationError(desc.Name, fmt.Errorf("unsupported protocol %q", desc.Protocol))
	}
}

// BuildRequest builds the provider-specific URL, headers and body
func BuildRequest(desc providers.ProviderDescriptor, credential string, messages []providers.ChatMessage, params providers.GenerationParams) (*providers.HTTPRequest, error) {
	protocol, err := protocolFor(desc)
	if err != nil {
		return nil, err
	}
	return protocol.BuildRequest(desc, credential, messages, params)
}

// ExtractContent pulls the generated text out of a raw response body
func ExtractContent(desc providers.ProviderDescriptor, body []byte) (string, error) {
	protocol, err := protocolFor(desc)
	if err != nil {
		return "", err
	}
	return protocol.ParseResponse(desc, body)
}
