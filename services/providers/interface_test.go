package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCredentialSet_Lookup(t *testing.T) {
	creds := CredentialSet{"a": "key-a", "b": "   ", "c": ""}

	got, ok := creds.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, "key-a", got)

	for _, name := range []string{"b", "c", "missing"} {
		_, ok := creds.Lookup(name)
		assert.False(t, ok, name)
	}
}

func TestCredentialSet_Merge(t *testing.T) {
	base := CredentialSet{"a": "server-a", "b": "server-b"}
	merged := base.Merge(CredentialSet{"a": "user-a", "b": "", "c": "user-c"})

	assert.Equal(t, CredentialSet{"a": "user-a", "b": "server-b", "c": "user-c"}, merged)
	assert.Equal(t, "server-a", base["a"], "receiver must not be mutated")
}

func TestValidateMessages(t *testing.T) {
	assert.NoError(t, ValidateMessages([]ChatMessage{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello"},
	}))
	assert.Error(t, ValidateMessages([]ChatMessage{{Role: "tool", Content: "x"}}))
}

func TestProtocolKind_Valid(t *testing.T) {
	assert.True(t, ProtocolOpenAICompatible.Valid())
	assert.True(t, ProtocolGeminiNative.Valid())
	assert.True(t, ProtocolCloudflareNative.Valid())
	assert.False(t, ProtocolKind("anthropic").Valid())
}
