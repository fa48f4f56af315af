// Package secrets redacts credentials from memory content before it is
// embedded or stored.
//
// Two detectors run over every input: a short list of regex rules for the
// credential shapes teams paste most often, and the gitleaks default rule
// set. Matches from both are merged and replaced with a redaction marker.
package secrets
