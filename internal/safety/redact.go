package safety

import (
	"regexp"
)

type namedRegex struct {
	name string
	re   *regexp.Regexp
}

// Secret shapes that must never leave the backend in agent text.
var secretDetectors = []namedRegex{
	{"api_key", regexp.MustCompile(`\b(?:sk-[A-Za-z0-9]{20,}|pk_[A-Za-z0-9]{20,}|AKIA[A-Z0-9]{16}|ghp_[A-Za-z0-9]{36}|glpat-[A-Za-z0-9\-]{20,})\b`)},
	{"bearer_token", regexp.MustCompile(`Bearer\s+[A-Za-z0-9\-._~+/]+=*`)},
	{"private_key", regexp.MustCompile(`-----BEGIN\s+[A-Z\s]*PRIVATE\s+KEY-----`)},
	{"password_literal", regexp.MustCompile(`(?i)(?:password|passwd|pwd)\s*[:=]\s*\S+`)},
}

// Redact masks any detected secrets in outbound text.
func Redact(text string) string {
	out := text
	for _, d := range secretDetectors {
		out = d.re.ReplaceAllStringFunc(out, MaskSecret)
	}
	return out
}

// MaskSecret keeps the first and last four characters of a secret and
// replaces the middle.
func MaskSecret(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
