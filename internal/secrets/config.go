package secrets

import (
	"fmt"
	"regexp"
)

// Config configures the scrubber.
type Config struct {
	// Enabled controls whether scrubbing is active.
	Enabled bool

	// Gitleaks adds the gitleaks default rule set to Rules.
	Gitleaks bool

	// Rules are the regex detection rules.
	Rules []Rule

	// RedactionString replaces every detected secret. Default "[REDACTED]".
	RedactionString string

	// AllowList holds patterns; a match that satisfies any of them is kept.
	AllowList []string
}

// Rule defines a regex secret detection rule.
type Rule struct {
	ID          string
	Description string
	Pattern     string
	// Keywords gate the rule: at least one must appear (case-insensitive)
	// for the pattern to be evaluated.
	Keywords []string
	Severity string
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig returns an enabled configuration with both detectors.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		Gitleaks:        true,
		Rules:           DefaultRules(),
		RedactionString: "[REDACTED]",
	}
}

func (c *Config) compile() ([]*compiledRule, []*regexp.Regexp, error) {
	rules := make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return nil, nil, fmt.Errorf("rule %d: ID is required", i)
		}
		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}
		cr := &compiledRule{Rule: rule, pattern: pattern}
		for _, kw := range rule.Keywords {
			cr.keywords = append(cr.keywords, regexp.MustCompile("(?i)"+regexp.QuoteMeta(kw)))
		}
		rules = append(rules, cr)
	}

	allow := make([]*regexp.Regexp, 0, len(c.AllowList))
	for i, pattern := range c.AllowList {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, nil, fmt.Errorf("allow_list %d: invalid pattern: %w", i, err)
		}
		allow = append(allow, re)
	}
	return rules, allow, nil
}
