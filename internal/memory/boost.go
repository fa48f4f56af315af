package memory

import "strings"

// initialConfidence applies the keyword boost: content mentioning any boost
// term starts at no less than the boost floor.
func (o *Options) initialConfidence(content string, hint float64) float64 {
	lower := strings.ToLower(content)
	for _, term := range o.boostTerms {
		if strings.Contains(lower, term) {
			if hint < o.boostFloor {
				return o.boostFloor
			}
			return hint
		}
	}
	return hint
}
