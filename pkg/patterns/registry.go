// Package patterns provides the pattern data backing the DLP and heuristic
// detectors. Pattern sets are loaded from external YAML files when available
// and fall back to a built-in seed set; a file watcher swaps the active set
// atomically on change.
//
// Design principles:
// - COMPILE ONCE: patterns are compiled at load time, not per-request
// - DATA, NOT CODE: the gateway ships seeds, deployments override via files
// - CATEGORIZED: every pattern belongs to exactly one category
package patterns

import (
	"fmt"
	"regexp"
	"sync"
	"sync/atomic"
)

// Category identifies what a pattern detects.
type Category string

const (
	// DLP categories. Matches here are treated as hard evidence.
	CategoryCredential Category = "credential"
	CategoryPII        Category = "pii"

	// Heuristic categories. Matches feed the signal set but never
	// short-circuit on their own.
	CategoryJailbreak        Category = "jailbreak"
	CategoryPromptInjection  Category = "prompt_injection"
	CategoryPromptExtraction Category = "prompt_extraction"
	CategoryRoleplay         Category = "roleplay"
)

// DLPCategories returns the categories scanned by the DLP stage.
func DLPCategories() []Category {
	return []Category{CategoryCredential, CategoryPII}
}

// HeuristicCategories returns the categories scanned by the heuristic stage.
func HeuristicCategories() []Category {
	return []Category{CategoryJailbreak, CategoryPromptInjection, CategoryPromptExtraction, CategoryRoleplay}
}

// IsHard reports whether a category qualifies as fail-safe DLP evidence.
func IsHard(cat Category) bool {
	return cat == CategoryCredential || cat == CategoryPII
}

// Pattern holds a compiled regex with metadata.
type Pattern struct {
	Name        string         // Unique name for logging and audit
	Regex       *regexp.Regexp // Compiled regex, never nil
	Category    Category       // Detection category
	Severity    int            // Risk contribution (0-100)
	Description string         // What this pattern detects
}

// set is an immutable snapshot of compiled patterns. Registry swaps whole
// sets on reload so readers never observe a partially loaded state.
type set struct {
	byCategory map[Category][]*Pattern
	all        []*Pattern
	version    string
}

// Registry is the shared pattern store. Reads are lock-free via an atomic
// pointer; Reload builds a new set and swaps it in.
type Registry struct {
	current atomic.Pointer[set]
}

var (
	defaultRegistry *Registry
	initOnce        sync.Once
)

// Default returns the process-wide registry seeded with the built-in
// pattern set. Thread-safe and guaranteed to be initialized.
func Default() *Registry {
	initOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry populated with the built-in seed patterns.
func NewRegistry() *Registry {
	r := &Registry{}
	r.install(seedPatterns(), "builtin")
	return r
}

func (r *Registry) install(all []*Pattern, version string) {
	s := &set{
		byCategory: make(map[Category][]*Pattern),
		all:        all,
		version:    version,
	}
	for _, p := range all {
		s.byCategory[p.Category] = append(s.byCategory[p.Category], p)
	}
	r.current.Store(s)
}

// compile builds a Pattern from its raw parts, validating the regex.
func compile(name, expr string, cat Category, severity int, description string) (*Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("pattern %q: %w", name, err)
	}
	if severity < 0 {
		severity = 0
	}
	if severity > 100 {
		severity = 100
	}
	return &Pattern{
		Name:        name,
		Regex:       re,
		Category:    cat,
		Severity:    severity,
		Description: description,
	}, nil
}

// mustCompile is used for the built-in seed set only.
func mustCompile(name, expr string, cat Category, severity int, description string) *Pattern {
	p, err := compile(name, expr, cat, severity, description)
	if err != nil {
		panic(err)
	}
	return p
}

// ByCategory returns all patterns for a category. Never nil.
func (r *Registry) ByCategory(cat Category) []*Pattern {
	s := r.current.Load()
	if patterns, ok := s.byCategory[cat]; ok {
		return patterns
	}
	return []*Pattern{}
}

// Categories returns patterns from multiple categories in order.
func (r *Registry) Categories(cats ...Category) []*Pattern {
	s := r.current.Load()
	var result []*Pattern
	for _, cat := range cats {
		result = append(result, s.byCategory[cat]...)
	}
	return result
}

// MatchAll returns every pattern in the given categories that matches text.
// The DLP stage needs all matches, not just the first, so redaction can
// cover every offending span.
func (r *Registry) MatchAll(text string, cats ...Category) []*Pattern {
	var matches []*Pattern
	for _, p := range r.Categories(cats...) {
		if p.Regex.MatchString(text) {
			matches = append(matches, p)
		}
	}
	return matches
}

// MatchAny returns the first matching pattern or nil. Optimized for early
// exit when only presence matters.
func (r *Registry) MatchAny(text string, cats ...Category) *Pattern {
	for _, p := range r.Categories(cats...) {
		if p.Regex.MatchString(text) {
			return p
		}
	}
	return nil
}

// TotalPatterns returns the number of patterns in the active set.
func (r *Registry) TotalPatterns() int {
	return len(r.current.Load().all)
}

// CategoryCount returns the number of patterns in a category.
func (r *Registry) CategoryCount(cat Category) int {
	return len(r.current.Load().byCategory[cat])
}

// Version returns the identifier of the active pattern set ("builtin" or
// the version declared by the loaded YAML file).
func (r *Registry) Version() string {
	return r.current.Load().version
}
