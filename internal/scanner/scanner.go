package scanner

import (
	"strings"
	"time"

	"github.com/example/bug-intake/internal/findings"
	"github.com/example/bug-intake/internal/patterns"
)

// Scanner applies every registered pattern to every line of a text. It holds
// no mutable state and is safe for concurrent use.
type Scanner struct {
	registry *patterns.Registry
	now      func() time.Time
}

func New(registry *patterns.Registry) *Scanner {
	if registry == nil {
		registry = patterns.Default()
	}
	return &Scanner{registry: registry, now: time.Now}
}

// WithClock returns a copy of the scanner that stamps findings using now.
func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	clone := *s
	clone.now = now
	return &clone
}

// Scan returns one finding per (line, pattern) match, ordered by line and
// then by registration order. The finding message is the pattern category.
func (s *Scanner) Scan(text string, file findings.FileRef) findings.ScanResult {
	if text == "" {
		return nil
	}

	registered := s.registry.Patterns()
	var result findings.ScanResult
	for i, line := range strings.Split(text, "\n") {
		for _, p := range registered {
			if !p.Predicate.Matches(line) {
				continue
			}
			result = append(result, findings.New(file, i+1, p.Category, s.now()).WithSuggestion(p.Hint))
		}
	}
	return result
}
