package verification

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps task codes to their rule.
type Registry struct {
	mu    sync.RWMutex
	rules map[string]Rule
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string]Rule)}
}

// DefaultRegistry holds every vertical's rules.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(LinkedInRules()...)
	r.MustRegister(GitHubRules()...)
	r.MustRegister(CareerRules()...)
	r.MustRegister(JobHuntRules()...)
	return r
}

func (r *Registry) Register(rules ...Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rule := range rules {
		code := strings.TrimSpace(rule.Code())
		if code == "" {
			return fmt.Errorf("rule code must not be empty")
		}
		if _, exists := r.rules[code]; exists {
			return fmt.Errorf("rule %q already registered", code)
		}
		r.rules[code] = rule
	}
	return nil
}

func (r *Registry) MustRegister(rules ...Rule) {
	if err := r.Register(rules...); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(code string) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[code]
	return rule, ok
}

// Codes returns the registered task codes in order.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codes := make([]string, 0, len(r.rules))
	for code := range r.rules {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
