package linter

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"

	"github.com/example/bug-intake/internal/findings"
	linescanner "github.com/example/bug-intake/internal/scanner"
)

const maxFuncLines = 50

// Message is one lint result. Line is 0 when the message applies to the
// whole file. Hint is empty when there is no suggested fix.
type Message struct {
	Line int
	Text string
	Hint string
}

type Linter interface {
	Lint(name string, text string) []Message
}

// Engine lints Go sources through their syntax tree and every other file
// through the line scanner.
type Engine struct {
	lines *linescanner.Scanner
}

func New(lines *linescanner.Scanner) *Engine {
	return &Engine{lines: lines}
}

func (e *Engine) Lint(name string, text string) []Message {
	if DetectLanguage(name) == LanguageGo {
		return lintGo(name, text)
	}
	if e.lines == nil {
		return nil
	}

	var messages []Message
	for _, f := range e.lines.Scan(text, findings.FileRef{Name: name}) {
		messages = append(messages, Message{
			Line: f.LineNumber,
			Text: f.ErrorMessage,
			Hint: findings.Deref(f.Suggestion),
		})
	}
	return messages
}

// goCheck inspects one syntax node and reports at most one message for it.
type goCheck func(fset *token.FileSet, node ast.Node) (Message, bool)

var goChecks = []goCheck{
	checkFuncLength,
	checkEmptyErrBlock,
	checkPanic,
}

func lintGo(path string, source string) []Message {
	fset := token.NewFileSet()
	parsed, err := parser.ParseFile(fset, path, source, parser.ParseComments)
	if err != nil {
		return []Message{parseFailure(err)}
	}

	var messages []Message
	ast.Inspect(parsed, func(node ast.Node) bool {
		if node == nil {
			return false
		}
		for _, check := range goChecks {
			if msg, ok := check(fset, node); ok {
				messages = append(messages, msg)
			}
		}
		return true
	})
	return messages
}

func checkFuncLength(fset *token.FileSet, node ast.Node) (Message, bool) {
	decl, ok := node.(*ast.FuncDecl)
	if !ok {
		return Message{}, false
	}
	first := fset.Position(decl.Pos()).Line
	if fset.Position(decl.End()).Line-first < maxFuncLines {
		return Message{}, false
	}
	return Message{
		Line: first,
		Text: fmt.Sprintf("Function %s exceeds %d lines; consider refactoring.", decl.Name.Name, maxFuncLines),
		Hint: "Split the function into smaller helpers.",
	}, true
}

func checkEmptyErrBlock(fset *token.FileSet, node ast.Node) (Message, bool) {
	stmt, ok := node.(*ast.IfStmt)
	if !ok || len(stmt.Body.List) > 0 || !comparesToNil(stmt.Cond, "err") {
		return Message{}, false
	}
	return Message{
		Line: fset.Position(stmt.Pos()).Line,
		Text: "Empty error handling block detected.",
		Hint: "Return, wrap or log the error.",
	}, true
}

func checkPanic(fset *token.FileSet, node ast.Node) (Message, bool) {
	call, ok := node.(*ast.CallExpr)
	if !ok || !isIdent(call.Fun, "panic") {
		return Message{}, false
	}
	return Message{
		Line: fset.Position(call.Pos()).Line,
		Text: "panic call detected; consider returning an error instead.",
		Hint: "Return an error to the caller.",
	}, true
}

func parseFailure(err error) Message {
	var list scanner.ErrorList
	if errors.As(err, &list) && len(list) > 0 {
		return Message{Line: list[0].Pos.Line, Text: "Syntax error: " + list[0].Msg}
	}
	return Message{Text: "Failed to parse Go file for static analysis."}
}

// comparesToNil matches `name != nil` written either way round.
func comparesToNil(expr ast.Expr, name string) bool {
	cmp, ok := expr.(*ast.BinaryExpr)
	if !ok || cmp.Op != token.NEQ {
		return false
	}
	return (isIdent(cmp.X, name) && isIdent(cmp.Y, "nil")) ||
		(isIdent(cmp.X, "nil") && isIdent(cmp.Y, name))
}

func isIdent(expr ast.Expr, name string) bool {
	ident, ok := expr.(*ast.Ident)
	return ok && ident.Name == name
}
