package attempts

import (
	"regexp"
	"strings"
)

// SecretType represents the kind of credential found in provider output
type SecretType string

const (
	SecretTypeGCPKey     SecretType = "gcp_key"
	SecretTypeOpenAIKey  SecretType = "openai_key"
	SecretTypeGroqKey    SecretType = "groq_key"
	SecretTypeJWT        SecretType = "jwt"
	SecretTypeToken      SecretType = "token"
	SecretTypeQueryParam SecretType = "query_param"
)

// maxErrorDetail bounds the provider body kept in a persisted error message
const maxErrorDetail = 512

type secretPattern struct {
	kind    SecretType
	pattern *regexp.Regexp
	// group is the submatch that holds the secret, 0 for the whole match
	group int
}

// Order matters: specific key formats run before the generic token rules.
var secretPatterns = []secretPattern{
	{SecretTypeGCPKey, regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`), 0},
	{SecretTypeOpenAIKey, regexp.MustCompile(`sk-[A-Za-z0-9_\-*]{16,}`), 0},
	{SecretTypeGroqKey, regexp.MustCompile(`gsk_[A-Za-z0-9]{20,}`), 0},
	{SecretTypeJWT, regexp.MustCompile(`eyJ[A-Za-z0-9_\-]+\.eyJ[A-Za-z0-9_\-]+\.[A-Za-z0-9_\-]+`), 0},
	{SecretTypeToken, regexp.MustCompile(`(?i)bearer\s+([A-Za-z0-9_\-\.=]{8,})`), 1},
	{SecretTypeQueryParam, regexp.MustCompile(`(?i)[?&](?:key|api_key|apikey|token|access_token)=([^&\s"']+)`), 1},
}

// RedactSecrets masks credential-shaped substrings. Provider error bodies
// sometimes echo the key that was rejected.
func RedactSecrets(text string) string {
	for _, sp := range secretPatterns {
		replacement := redactionString(sp.kind)
		if sp.group == 0 {
			text = sp.pattern.ReplaceAllString(text, replacement)
			continue
		}
		text = sp.pattern.ReplaceAllStringFunc(text, func(match string) string {
			sub := sp.pattern.FindStringSubmatchIndex(match)
			if len(sub) < 2*(sp.group+1) || sub[2*sp.group] < 0 {
				return match
			}
			secret := match[sub[2*sp.group]:sub[2*sp.group+1]]
			if strings.HasSuffix(secret, "_REDACTED]") {
				return match
			}
			return match[:sub[2*sp.group]] + replacement + match[sub[2*sp.group+1]:]
		})
	}
	return text
}

// redactionString returns an appropriate redaction string for the secret type
func redactionString(kind SecretType) string {
	switch kind {
	case SecretTypeGCPKey:
		return "[GCP_KEY_REDACTED]"
	case SecretTypeOpenAIKey:
		return "[API_KEY_REDACTED]"
	case SecretTypeGroqKey:
		return "[API_KEY_REDACTED]"
	case SecretTypeJWT:
		return "[JWT_REDACTED]"
	case SecretTypeToken, SecretTypeQueryParam:
		return "[TOKEN_REDACTED]"
	default:
		return "[SECRET_REDACTED]"
	}
}

// errorDetail condenses a provider error body into a single redacted line
func errorDetail(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > maxErrorDetail {
		body = body[:maxErrorDetail] + "..."
	}
	return RedactSecrets(body)
}
