package secrets

// DefaultRules returns the built-in regex rules. Broader coverage comes from
// the gitleaks rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "aws-access-key-id",
			Description: "AWS Access Key ID",
			Pattern:     `(?:A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`,
			Severity:    "high",
		},
		{
			ID:          "private-key",
			Description: "Private Key",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
			Severity:    "high",
		},
		{
			ID:          "github-token",
			Description: "GitHub Token",
			Pattern:     `gh[pousr]_[A-Za-z0-9]{36}`,
			Severity:    "high",
		},
		{
			ID:          "vendor-api-key",
			Description: "Vendor API key with sk- prefix (OpenAI, Anthropic, Stripe)",
			Pattern:     `sk-(?:ant-|proj-)?[A-Za-z0-9_\-]{20,}`,
			Severity:    "high",
		},
		{
			ID:          "generic-api-key",
			Description: "Generic API Key assignment",
			Pattern:     `(?i)(?:api[_-]?key|apikey)\s*[:=]\s*['"]?[A-Za-z0-9_\-]{16,64}['"]?`,
			Keywords:    []string{"api"},
			Severity:    "high",
		},
		{
			ID:          "generic-password",
			Description: "Password or secret assignment",
			Pattern:     `(?i)(?:secret|password|passwd|pwd)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`,
			Keywords:    []string{"secret", "password", "passwd", "pwd"},
			Severity:    "high",
		},
		{
			ID:          "database-url",
			Description: "Connection URL with credentials",
			Pattern:     `(?i)(?:postgres(?:ql)?|mysql|mongodb(?:\+srv)?|redis|amqp)://[^:\s]+:[^@\s]+@[^\s]+`,
			Severity:    "high",
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*`,
			Severity:    "medium",
		},
		{
			ID:          "bearer-token",
			Description: "Bearer token",
			Pattern:     `(?i)bearer\s+[A-Za-z0-9_\-\.=]{20,}`,
			Severity:    "medium",
		},
	}
}
