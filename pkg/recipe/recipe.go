// Package recipe evaluates batch conversion recipes. A recipe is a small
// Lisp program run in a sandboxed zygomys environment; its builtins
// collect conversion jobs instead of doing any work themselves.
//
//	; convert the drawer
//	(ref-tile "refs/tile_21_1x1.stl")
//	(defaults :pitch-src 42 :pitch-dst 21 :verify true)
//	(convert "bins/a.stl" :out "out/a_21mm.stl" :modules "2x1")
package recipe

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/regrid/pkg/regrid"
)

// EvalError is a parse or runtime error in recipe source.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// Errors joins evaluation errors into one error value.
type Errors []EvalError

func (es Errors) Error() string {
	msgs := make([]string, len(es))
	for i, e := range es {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Job is one conversion collected from a recipe.
type Job struct {
	Line        int // source line of the convert call
	Input       string
	Output      string // empty means the pipeline default
	RefTile     string
	Options     regrid.Options
	Verify      bool
	Checks      regrid.VerifyConfig
	ExportDebug bool
	DebugDir    string
}

// Recipe is the evaluated form of a recipe source.
type Recipe struct {
	Jobs []Job
}

// Evaluator runs recipe sources. Every evaluation gets a fresh sandbox;
// when evaluations overlap only the latest one returns a result.
type Evaluator struct {
	Timeout time.Duration // zero means EvalTimeout

	mu         sync.Mutex
	generation uint64
}

// NewEvaluator returns an Evaluator with the default timeout.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate runs source and returns the collected jobs.
//
// Return semantics:
//   - On success: recipe + nil errors + nil error
//   - On parse/eval failure: nil recipe + eval errors + nil error
//   - On fatal failure (timeout, panic): nil + nil + error
func (e *Evaluator) Evaluate(source string) (*Recipe, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		rec, evalErrs := evaluate(source)
		ch <- evalResult{recipe: rec, errors: evalErrs}
	}()

	timeout := e.Timeout
	if timeout == 0 {
		timeout = EvalTimeout
	}
	return waitWithTimeout(ch, gen, &e.mu, &e.generation, timeout)
}

// LoadFile reads and evaluates a recipe file. Evaluation errors are
// returned as Errors.
func LoadFile(path string) (*Recipe, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe: %w", err)
	}
	rec, evalErrs, err := NewEvaluator().Evaluate(string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		return nil, fmt.Errorf("%s: %w", path, Errors(evalErrs))
	}
	return rec, nil
}

// evaluate runs each top-level form in turn in one sandbox, so errors can
// be attributed to the form's starting line.
func evaluate(source string) (*Recipe, []EvalError) {
	forms, err := splitForms(source)
	if err != nil {
		var ee EvalError
		if errors.As(err, &ee) {
			return nil, []EvalError{ee}
		}
		return nil, []EvalError{{Message: err.Error()}}
	}

	env := zygo.NewZlispSandbox()
	defer env.Stop()

	st := newState()
	registerBuiltins(env, st)

	for _, f := range forms {
		st.line = f.line
		if err := env.LoadString(preprocessSource(f.text)); err != nil {
			return nil, locate(parseZygomysError(err), f.line)
		}
		if _, err := env.Run(); err != nil {
			return nil, locate(parseZygomysError(err), f.line)
		}
	}
	return &Recipe{Jobs: st.jobs}, nil
}

// locate converts form-relative line numbers to source lines.
func locate(errs []EvalError, start int) []EvalError {
	for i := range errs {
		if errs[i].Line > 0 {
			errs[i].Line += start - 1
		} else {
			errs[i].Line = start
		}
	}
	return errs
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?is)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting a line number when the message has one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, p := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := p.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}

// form is one top-level expression and the line it starts on.
type form struct {
	text string
	line int
}

// splitForms cuts source into top-level expressions, skipping strings
// and ; or // comments when matching brackets.
func splitForms(source string) ([]form, error) {
	var (
		forms []form
		depth int
		start = -1
		sline int
		line  = 1
	)
	b := []byte(source)
	emit := func(end int) {
		forms = append(forms, form{text: string(b[start:end]), line: sline})
		start = -1
	}
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == '\n':
			line++
			if start >= 0 && depth == 0 {
				emit(i)
			}
			continue
		case c == ';' || (c == '/' && i+1 < len(b) && b[i+1] == '/'):
			if start >= 0 && depth == 0 {
				emit(i)
			}
			for i+1 < len(b) && b[i+1] != '\n' {
				i++
			}
			continue
		case c == ' ' || c == '\t' || c == '\r':
			if start >= 0 && depth == 0 {
				emit(i)
			}
			continue
		}

		if start < 0 {
			start, sline = i, line
		}
		switch c {
		case '"', '`':
			j := i + 1
			for j < len(b) && b[j] != c {
				if c == '"' && b[j] == '\\' {
					j++
				} else if b[j] == '\n' {
					line++
				}
				j++
			}
			if j >= len(b) {
				return nil, EvalError{Line: sline, Message: "unterminated string"}
			}
			i = j
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, EvalError{Line: line, Message: fmt.Sprintf("unexpected %q", c)}
			}
			if depth == 0 {
				emit(i + 1)
			}
		}
	}
	if depth > 0 {
		return nil, EvalError{Line: sline, Message: "unbalanced parentheses: form is never closed"}
	}
	if start >= 0 {
		emit(len(b))
	}
	return forms, nil
}
