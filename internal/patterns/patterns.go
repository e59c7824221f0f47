package patterns

import (
	"regexp"
	"strings"
)

// Predicate decides whether a single line of text triggers a pattern.
type Predicate interface {
	Matches(line string) bool
}

// Regexp is a case-insensitive regular expression predicate.
type Regexp struct {
	re *regexp.Regexp
}

// MustRegexp compiles expr case-insensitively and panics on invalid input.
// It is meant for patterns fixed at compile time.
func MustRegexp(expr string) Regexp {
	return Regexp{re: regexp.MustCompile("(?i)" + expr)}
}

func NewRegexp(expr string) (Regexp, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Regexp{}, err
	}
	return Regexp{re: re}, nil
}

func (r Regexp) Matches(line string) bool {
	return r.re != nil && r.re.MatchString(line)
}

// PredicateFunc adapts a plain function into a Predicate.
type PredicateFunc func(line string) bool

func (f PredicateFunc) Matches(line string) bool { return f(line) }

// AnyOf matches when at least one of preds matches.
func AnyOf(preds ...Predicate) Predicate {
	return PredicateFunc(func(line string) bool {
		for _, pred := range preds {
			if pred.Matches(line) {
				return true
			}
		}
		return false
	})
}

type Pattern struct {
	Category  string
	Predicate Predicate
	Hint      string
}

const (
	CategorySyntax    = "Syntax Error"
	CategoryReference = "Reference Error"
	CategoryLogical   = "Logical Error"
	CategoryWorkflow  = "Workflow Issue"
)

func SyntaxError() Pattern {
	return Pattern{
		Category:  CategorySyntax,
		Predicate: MustRegexp(`syntax\s*error|unexpected\s+(token|end|identifier)|missing\s*[;)\]}]|unterminated`),
		Hint:      "Check syntax and missing characters.",
	}
}

func ReferenceError() Pattern {
	return Pattern{
		Category:  CategoryReference,
		Predicate: MustRegexp(`\bundefined\b|is\s+not\s+defined|undeclared|reference\s*error`),
		Hint:      "Ensure variables and functions are defined before use.",
	}
}

func LogicalError() Pattern {
	return Pattern{
		Category:  CategoryLogical,
		Predicate: AnyOf(divisionByZero, MustRegexp(`while\s*\(\s*(true|1)\s*\)|for\s*\(\s*;\s*;\s*\)`)),
		Hint:      "Fix incorrect logic and loop conditions.",
	}
}

func WorkflowIssue() Pattern {
	return Pattern{
		Category:  CategoryWorkflow,
		Predicate: AnyOf(
			MustRegexp(`deprecated|unhandled\s*promise\s*rejection|unhandledrejection`),
			PredicateFunc(unhandledThen),
		),
		Hint: "Update deprecated methods and handle promises properly.",
	}
}

// divisionByZero needs an operand before the slash and whitespace around it,
// so URL segments like /items/0 and comments like //0 stay quiet. x/0 without
// spaces is missed.
var divisionByZero = MustRegexp(`[\w)\]](\s+/=?\s*|\s*/=\s*|\s*/\s+)0+(\.0+)?([^\d.x/]|$)`)

// unhandledThen flags a promise chain that continues with .then( but never
// attaches a .catch( on the same line.
func unhandledThen(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, ".then(") && !strings.Contains(lower, ".catch(")
}
