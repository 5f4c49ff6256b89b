package contextstore

import (
	"encoding/json"
	"regexp"

	"github.com/taskctl/taskctl/internal/taskerr"
)

// secretPattern is one named regular expression used to scan payloads for
// accidentally embedded credentials before they are written to disk.
type secretPattern struct {
	Name string
	Re   *regexp.Regexp
}

var secretPatterns = []secretPattern{
	{"aws_access_key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`)},
	{"stripe_live_key", regexp.MustCompile(`sk_live_[a-zA-Z0-9]{24,}`)},
	{"jwt", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.`)},
	{"github_token", regexp.MustCompile(`gh[pousr]_[a-zA-Z0-9]{36,}`)},
	{"gitlab_token", regexp.MustCompile(`glpat-[a-zA-Z0-9_-]{20,}`)},
	{"pem_private_key", regexp.MustCompile(`-----BEGIN (RSA|DSA|EC|OPENSSH|) ?PRIVATE KEY-----`)},
}

// SecretFinding is one pattern match against a scanned payload.
type SecretFinding struct {
	Pattern string
	Excerpt string
}

// scanForSecrets walks any JSON-serializable value and checks every string
// leaf against every pattern. force=true suppresses a returned error, but
// callers should still surface findings as a warning.
func scanForSecrets(payload any, force bool) ([]SecretFinding, error) {
	var findings []SecretFinding
	walkStrings(payload, func(s string) {
		for _, p := range secretPatterns {
			if loc := p.Re.FindStringIndex(s); loc != nil {
				excerpt := s[loc[0]:loc[1]]
				if len(excerpt) > 40 {
					excerpt = excerpt[:40] + "…"
				}
				findings = append(findings, SecretFinding{Pattern: p.Name, Excerpt: excerpt})
			}
		}
	})

	if len(findings) > 0 && !force {
		return findings, taskerr.Newf(taskerr.KindValidation, "possible secret detected (%s); pass force to override", findings[0].Pattern).
			WithDetails(map[string]any{"findings": findings})
	}
	return findings, nil
}

func walkStrings(v any, visit func(string)) {
	switch val := v.(type) {
	case string:
		visit(val)
	case map[string]any:
		for _, child := range val {
			walkStrings(child, visit)
		}
	case []any:
		for _, child := range val {
			walkStrings(child, visit)
		}
	default:
		// Struct values are scanned by round-tripping through JSON into a
		// generic any, which keeps this scanner agnostic of the caller's
		// concrete payload type (Immutable, map[string]any updates, ...).
		data, err := json.Marshal(val)
		if err != nil {
			return
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			return
		}
		switch generic.(type) {
		case map[string]any, []any, string:
			walkStrings(generic, visit)
		}
	}
}
