package memory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bparpette/MistralHackathon/internal/config"
)

// DefaultBoostTerms are matched case-insensitively against new content when
// no terms are configured.
var DefaultBoostTerms = []string{
	"decision", "important", "critical", "urgent", "bug", "fix", "solution",
	"error", "risk", "outage", "incident", "security", "blocker",
	"décision", "critique",
}

// Options holds the tunables shared by the memory core. It is immutable
// once built; accessors return copies.
type Options struct {
	linkThreshold         float64
	linkNeighborCount     int
	boostTerms            []string
	verificationIncrement float64
	boostFloor            float64
	defaultConfidence     float64
	embedTimeout          time.Duration
	indexTimeout          time.Duration
	collectionPrefix      string
	searchOversample      int
	maxSearchLimit        int
}

// NewOptions builds Options from the memory section of the configuration.
func NewOptions(cfg config.MemoryConfig) (*Options, error) {
	terms := make([]string, 0, len(cfg.ConfidenceBoostTerms))
	for _, t := range cfg.ConfidenceBoostTerms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	if len(terms) == 0 {
		terms = append(terms, DefaultBoostTerms...)
	}

	o := &Options{
		linkThreshold:         cfg.LinkThreshold,
		linkNeighborCount:     cfg.LinkNeighborCount,
		boostTerms:            terms,
		verificationIncrement: cfg.VerificationIncrement,
		boostFloor:            cfg.BoostFloor,
		defaultConfidence:     cfg.DefaultConfidence,
		embedTimeout:          cfg.EmbedTimeout.Duration(),
		indexTimeout:          cfg.IndexTimeout.Duration(),
		collectionPrefix:      cfg.CollectionPrefix,
		searchOversample:      cfg.SearchOversample,
		maxSearchLimit:        cfg.MaxSearchLimit,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

// DefaultOptions returns the built-in tunables.
func DefaultOptions() *Options {
	o, err := NewOptions(config.Default().Memory)
	if err != nil {
		panic(fmt.Sprintf("memory: invalid default options: %v", err))
	}
	return o
}

// Validate checks every tunable is in range.
func (o *Options) Validate() error {
	var errs []error
	if o.linkThreshold < -1 || o.linkThreshold > 1 {
		errs = append(errs, fmt.Errorf("link threshold must be within [-1,1], got %v", o.linkThreshold))
	}
	if o.linkNeighborCount <= 0 {
		errs = append(errs, fmt.Errorf("link neighbor count must be > 0, got %d", o.linkNeighborCount))
	}
	for name, v := range map[string]float64{
		"verification increment": o.verificationIncrement,
		"boost floor":            o.boostFloor,
		"default confidence":     o.defaultConfidence,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, v))
		}
	}
	if o.embedTimeout <= 0 {
		errs = append(errs, errors.New("embed timeout must be > 0"))
	}
	if o.indexTimeout <= 0 {
		errs = append(errs, errors.New("index timeout must be > 0"))
	}
	if !categoryPattern.MatchString(o.collectionPrefix) {
		errs = append(errs, fmt.Errorf("collection prefix %q must match %s", o.collectionPrefix, categoryPattern))
	}
	if o.searchOversample <= 0 {
		errs = append(errs, fmt.Errorf("search oversample must be > 0, got %d", o.searchOversample))
	}
	if o.maxSearchLimit <= 0 {
		errs = append(errs, fmt.Errorf("max search limit must be > 0, got %d", o.maxSearchLimit))
	}
	return errors.Join(errs...)
}

func (o *Options) LinkThreshold() float64         { return o.linkThreshold }
func (o *Options) LinkNeighborCount() int         { return o.linkNeighborCount }
func (o *Options) VerificationIncrement() float64 { return o.verificationIncrement }
func (o *Options) BoostFloor() float64            { return o.boostFloor }
func (o *Options) DefaultConfidence() float64     { return o.defaultConfidence }
func (o *Options) EmbedTimeout() time.Duration    { return o.embedTimeout }
func (o *Options) IndexTimeout() time.Duration    { return o.indexTimeout }
func (o *Options) CollectionPrefix() string       { return o.collectionPrefix }
func (o *Options) SearchOversample() int          { return o.searchOversample }
func (o *Options) MaxSearchLimit() int            { return o.maxSearchLimit }

// ConfidenceBoostTerms returns a copy of the lowercased boost terms.
func (o *Options) ConfidenceBoostTerms() []string {
	return append([]string(nil), o.boostTerms...)
}
