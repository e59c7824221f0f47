package patterns

// Registry is an ordered, read-only set of patterns. The order is fixed at
// construction and decides the order of findings reported for a line.
type Registry struct {
	patterns []Pattern
}

func NewRegistry(patterns ...Pattern) *Registry {
	return &Registry{patterns: append([]Pattern(nil), patterns...)}
}

func Default() *Registry {
	return NewRegistry(
		SyntaxError(),
		ReferenceError(),
		LogicalError(),
		WorkflowIssue(),
	)
}

// Patterns returns a copy of the registered patterns in registration order.
func (r *Registry) Patterns() []Pattern {
	if r == nil {
		return nil
	}
	return append([]Pattern(nil), r.patterns...)
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.patterns)
}

// Lookup returns the pattern registered under category.
func (r *Registry) Lookup(category string) (Pattern, bool) {
	if r == nil {
		return Pattern{}, false
	}
	for _, p := range r.patterns {
		if p.Category == category {
			return p, true
		}
	}
	return Pattern{}, false
}
