package mitigate

import (
	"github.com/bastionai/bastion/pkg/detect"
	"github.com/bastionai/bastion/pkg/patterns"
)

// redactableCategories are the signal categories whose evidence is a
// removable span: the offending text can be cut out and the rest of the
// request still makes sense. Semantic-level findings (jailbreak framing,
// roleplay setups) are not span-shaped and fall through to CONTAIN instead.
var redactableCategories = map[string]bool{
	string(patterns.CategoryPromptInjection):  true,
	string(patterns.CategoryPromptExtraction): true,
	string(patterns.CategoryCredential):       true,
	string(patterns.CategoryPII):              true,
}

// Sanitizer redacts offending spans from request text using the shared
// pattern registry. It holds only pattern data, so the engine stays pure.
type Sanitizer struct {
	registry *patterns.Registry
}

// NewSanitizer creates a sanitizer over the given registry.
func NewSanitizer(registry *patterns.Registry) *Sanitizer {
	return &Sanitizer{registry: registry}
}

// CoversAll reports whether every signal's category has a registered
// redaction, i.e. whether SANITIZE can fully neutralize the finding set.
func (s *Sanitizer) CoversAll(signals []detect.Signal) bool {
	if len(signals) == 0 {
		return false
	}
	for _, sig := range signals {
		if !redactableCategories[sig.Category] {
			return false
		}
	}
	return true
}

// Sanitize replaces every redactable pattern match in text with a category
// placeholder and returns the result plus the number of redacted spans.
func (s *Sanitizer) Sanitize(text string) (string, int) {
	redactions := 0
	for _, p := range s.registry.Categories(
		patterns.CategoryCredential,
		patterns.CategoryPII,
		patterns.CategoryPromptInjection,
		patterns.CategoryPromptExtraction,
	) {
		if !p.Regex.MatchString(text) {
			continue
		}
		placeholder := "[REDACTED:" + string(p.Category) + "]"
		matches := len(p.Regex.FindAllStringIndex(text, -1))
		text = p.Regex.ReplaceAllString(text, placeholder)
		redactions += matches
	}
	return text, redactions
}
