package vectorstore

import (
	"sort"
	"strings"
)

// Filter is a structured boolean predicate over point payloads.
//
// A filter holds when every Must condition holds and, if Should is
// non-empty, at least one Should condition holds. A nil filter matches
// everything.
type Filter struct {
	Must   []Condition
	Should []Condition
}

// Condition is either an equality test on a payload field or a nested
// filter. Exactly one of Field or Filter is set.
type Condition struct {
	Field  string
	Match  string
	Filter *Filter
}

// Eq builds an equality condition.
func Eq(field, value string) Condition {
	return Condition{Field: field, Match: value}
}

// Nested wraps a sub-filter as a condition.
func Nested(f *Filter) Condition {
	return Condition{Filter: f}
}

// And returns a copy of f with conds appended to Must.
func (f *Filter) And(conds ...Condition) *Filter {
	out := f.Clone()
	if out == nil {
		out = &Filter{}
	}
	out.Must = append(out.Must, conds...)
	return out
}

// Clone deep-copies f.
func (f *Filter) Clone() *Filter {
	if f == nil {
		return nil
	}
	return &Filter{
		Must:   cloneConditions(f.Must),
		Should: cloneConditions(f.Should),
	}
}

func cloneConditions(conds []Condition) []Condition {
	if conds == nil {
		return nil
	}
	out := make([]Condition, len(conds))
	for i, c := range conds {
		out[i] = Condition{Field: c.Field, Match: c.Match, Filter: c.Filter.Clone()}
	}
	return out
}

// Matches evaluates f against payload in process.
func (f *Filter) Matches(payload map[string]string) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		if !c.matches(payload) {
			return false
		}
	}
	if len(f.Should) == 0 {
		return true
	}
	for _, c := range f.Should {
		if c.matches(payload) {
			return true
		}
	}
	return false
}

func (c Condition) matches(payload map[string]string) bool {
	if c.Filter != nil {
		return c.Filter.Matches(payload)
	}
	v, ok := payload[c.Field]
	return ok && v == c.Match
}

// Branches expands f into disjunctive normal form: a list of equality
// conjunctions whose union is equivalent to f. Contradictory conjunctions
// (one field required to equal two values) are dropped, so an unsatisfiable
// filter yields no branches. A nil or empty filter yields a single empty
// branch.
func (f *Filter) Branches() []map[string]string {
	if f == nil {
		return []map[string]string{{}}
	}

	branches := []map[string]string{{}}
	for _, c := range f.Must {
		branches = product(branches, c.branches())
	}
	if len(f.Should) > 0 {
		var alts []map[string]string
		for _, c := range f.Should {
			alts = append(alts, c.branches()...)
		}
		branches = product(branches, alts)
	}
	return dedupeBranches(branches)
}

func (c Condition) branches() []map[string]string {
	if c.Filter != nil {
		return c.Filter.Branches()
	}
	return []map[string]string{{c.Field: c.Match}}
}

// product returns every consistent merge of one branch from a and one from b.
func product(a, b []map[string]string) []map[string]string {
	out := make([]map[string]string, 0, len(a)*len(b))
	for _, x := range a {
	next:
		for _, y := range b {
			merged := make(map[string]string, len(x)+len(y))
			for k, v := range x {
				merged[k] = v
			}
			for k, v := range y {
				if prev, ok := merged[k]; ok && prev != v {
					continue next
				}
				merged[k] = v
			}
			out = append(out, merged)
		}
	}
	return out
}

func dedupeBranches(branches []map[string]string) []map[string]string {
	seen := make(map[string]struct{}, len(branches))
	out := branches[:0]
	for _, b := range branches {
		key := branchKey(b)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, b)
	}
	return out
}

func branchKey(b map[string]string) string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(b[k])
		sb.WriteByte(0)
	}
	return sb.String()
}

// String renders f for logs, e.g. `workspace_id=acme AND (visibility=team OR ...)`.
func (f *Filter) String() string {
	if f == nil {
		return "*"
	}
	parts := make([]string, 0, len(f.Must)+1)
	for _, c := range f.Must {
		parts = append(parts, c.String())
	}
	if len(f.Should) > 0 {
		alts := make([]string, len(f.Should))
		for i, c := range f.Should {
			alts[i] = c.String()
		}
		parts = append(parts, "("+strings.Join(alts, " OR ")+")")
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " AND ")
}

func (c Condition) String() string {
	if c.Filter != nil {
		return "(" + c.Filter.String() + ")"
	}
	return c.Field + "=" + c.Match
}
