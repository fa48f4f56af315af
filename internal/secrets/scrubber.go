package secrets

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	gitleaksconfig "github.com/zricethezav/gitleaks/v8/config"
	"github.com/zricethezav/gitleaks/v8/detect"
	"go.uber.org/zap"
)

// Scrubber detects and redacts secrets from content.
type Scrubber interface {
	// Scrub returns content with every detected secret replaced.
	Scrub(content string) *Result

	// IsEnabled returns whether scrubbing is active.
	IsEnabled() bool
}

type scrubber struct {
	enabled     bool
	redaction   string
	rules       []*compiledRule
	allow       []*regexp.Regexp
	gitleaks    bool
	gitleaksCfg gitleaksconfig.Config
	logger      *zap.Logger
}

type span struct {
	start, end int
}

// New creates a Scrubber. A nil cfg means DefaultConfig().
func New(cfg *Config, logger *zap.Logger) (Scrubber, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		return NoopScrubber{}, nil
	}

	rules, allow, err := cfg.compile()
	if err != nil {
		return nil, err
	}
	s := &scrubber{
		enabled:   true,
		redaction: cfg.RedactionString,
		rules:     rules,
		allow:     allow,
		gitleaks:  cfg.Gitleaks,
		logger:    logger,
	}
	if s.redaction == "" {
		s.redaction = "[REDACTED]"
	}

	if cfg.Gitleaks {
		// Parsing the embedded gitleaks config is the expensive part; do it
		// once and build a fresh detector per call, since a detector
		// accumulates findings across scans.
		d, err := detect.NewDetectorDefaultConfig()
		if err != nil {
			return nil, fmt.Errorf("loading gitleaks rules: %w", err)
		}
		s.gitleaksCfg = d.Config
	}
	return s, nil
}

// Scrub implements Scrubber.
func (s *scrubber) Scrub(content string) *Result {
	start := time.Now()
	result := &Result{Scrubbed: content, ByRule: map[string]int{}}

	var spans []span
	add := func(f Finding) {
		if s.isAllowed(content[f.StartIndex:f.EndIndex]) {
			return
		}
		result.Findings = append(result.Findings, f)
		result.ByRule[f.RuleID]++
		spans = append(spans, span{f.StartIndex, f.EndIndex})
	}

	for _, rule := range s.rules {
		if !rule.applies(content) {
			continue
		}
		for _, m := range rule.pattern.FindAllStringIndex(content, -1) {
			add(Finding{
				RuleID:      rule.ID,
				Description: rule.Description,
				Severity:    rule.Severity,
				Source:      "regex",
				StartIndex:  m[0],
				EndIndex:    m[1],
			})
		}
	}

	if s.gitleaks {
		detector := detect.NewDetector(s.gitleaksCfg)
		for _, f := range detector.DetectString(content) {
			if f.Secret == "" {
				continue
			}
			for _, idx := range indexAll(content, f.Secret) {
				add(Finding{
					RuleID:      f.RuleID,
					Description: f.Description,
					Severity:    "high",
					Source:      "gitleaks",
					StartIndex:  idx,
					EndIndex:    idx + len(f.Secret),
				})
			}
		}
	}

	if len(spans) > 0 {
		result.Scrubbed = s.redact(content, spans)
		s.logger.Debug("redacted secrets from content",
			zap.Int("findings", len(result.Findings)),
			zap.Any("by_rule", result.ByRule),
		)
	}
	result.Duration = time.Since(start)
	return result
}

// IsEnabled implements Scrubber.
func (s *scrubber) IsEnabled() bool {
	return s.enabled
}

func (r *compiledRule) applies(content string) bool {
	if len(r.keywords) == 0 {
		return true
	}
	for _, kw := range r.keywords {
		if kw.MatchString(content) {
			return true
		}
	}
	return false
}

func (s *scrubber) isAllowed(match string) bool {
	for _, re := range s.allow {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}

// redact merges overlapping spans and replaces each with the marker.
func (s *scrubber) redact(content string, spans []span) string {
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	merged := []span{spans[0]}
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.start <= last.end {
			if sp.end > last.end {
				last.end = sp.end
			}
			continue
		}
		merged = append(merged, sp)
	}

	var b strings.Builder
	prev := 0
	for _, sp := range merged {
		b.WriteString(content[prev:sp.start])
		b.WriteString(s.redaction)
		prev = sp.end
	}
	b.WriteString(content[prev:])
	return b.String()
}

func indexAll(s, sub string) []int {
	var out []int
	for off := 0; ; {
		i := strings.Index(s[off:], sub)
		if i < 0 {
			return out
		}
		out = append(out, off+i)
		off += i + len(sub)
	}
}

// NoopScrubber returns content unchanged.
type NoopScrubber struct{}

// Scrub implements Scrubber.
func (NoopScrubber) Scrub(content string) *Result {
	return &Result{Scrubbed: content, ByRule: map[string]int{}}
}

// IsEnabled implements Scrubber.
func (NoopScrubber) IsEnabled() bool {
	return false
}

var (
	_ Scrubber = (*scrubber)(nil)
	_ Scrubber = NoopScrubber{}
)
