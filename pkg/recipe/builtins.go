package recipe

import (
	"fmt"
	"sort"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/chazu/regrid/pkg/regrid"
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites recipe source for zygomys:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no global symbols.
//  2. kebab-case identifiers become snake_case (ref-tile -> ref_tile),
//     since zygomys reads a hyphen as the minus operator.
//  3. ; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		if b[i] == '"' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == '`' {
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '`' {
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ';' {
			result = append(result, '/', '/')
			i++
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}
			continue
		}
		if b[i] == ':' && i+1 < len(b) {
			if b[i+1] == '=' {
				result = append(result, b[i], b[i+1])
				i += 2
				continue
			}
			if isLetter(b[i+1]) {
				j := i + 1
				for j < len(b) && isKWChar(b[j]) {
					j++
				}
				result = append(result, '"')
				result = append(result, kwPrefix...)
				result = append(result, b[i+1:j]...)
				result = append(result, '"')
				i = j
				continue
			}
		}
		// only a hyphen between identifier characters, never a minus sign
		if b[i] == '-' && i > 0 && i+1 < len(b) &&
			isIdentChar(b[i-1]) && isLetter(b[i+1]) {
			result = append(result, '_')
			i++
			continue
		}
		result = append(result, b[i])
		i++
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Keyword arguments
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	order      []string
	positional []zygo.Sexp
}

// parseArgs separates keyword and positional arguments. A keyword at the
// end of the list is a bare flag.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		val := zygo.Sexp(zygo.SexpNull)
		if i+1 < len(args) {
			val = args[i+1]
			i++
		}
		if _, dup := result.kw[name]; !dup {
			result.order = append(result.order, name)
		}
		result.kw[name] = val
	}
	return result
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %s", describe(s))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %s", describe(s))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %s", describe(s))
}

// toBool accepts booleans; a bare flag counts as true.
func toBool(s zygo.Sexp) (bool, error) {
	if s == zygo.SexpNull {
		return true, nil
	}
	if v, ok := s.(*zygo.SexpBool); ok {
		return v.Val, nil
	}
	return false, fmt.Errorf("expected true or false, got %s", describe(s))
}

func describe(s zygo.Sexp) string {
	if s == nil {
		return "nothing"
	}
	return fmt.Sprintf("%T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Job settings
// ---------------------------------------------------------------------------

// setting applies one keyword value to a job.
type setting func(j *Job, v zygo.Sexp) error

func floatSetting(dst func(*Job) *float64) setting {
	return func(j *Job, v zygo.Sexp) error {
		f, err := toFloat64(v)
		if err != nil {
			return err
		}
		*dst(j) = f
		return nil
	}
}

func intSetting(dst func(*Job) *int) setting {
	return func(j *Job, v zygo.Sexp) error {
		n, err := toInt(v)
		if err != nil {
			return err
		}
		*dst(j) = n
		return nil
	}
}

func boolSetting(dst func(*Job) *bool) setting {
	return func(j *Job, v zygo.Sexp) error {
		b, err := toBool(v)
		if err != nil {
			return err
		}
		*dst(j) = b
		return nil
	}
}

func stringSetting(dst func(*Job) *string) setting {
	return func(j *Job, v zygo.Sexp) error {
		s, err := toString(v)
		if err != nil {
			return err
		}
		*dst(j) = s
		return nil
	}
}

// settings maps recipe keywords to job fields. Names follow the convert
// command's flags.
var settings = map[string]setting{
	"modules": func(j *Job, v zygo.Sexp) error {
		s, err := toString(v)
		if err != nil {
			return err
		}
		m, err := regrid.ParseModules(s)
		if err != nil {
			return err
		}
		j.Options.Modules = m
		return nil
	},
	"crop": func(j *Job, v zygo.Sexp) error {
		s, ok := isKW(v)
		if !ok {
			var err error
			if s, err = toString(v); err != nil {
				return err
			}
		}
		j.Options.Crop = regrid.CropMode(s)
		return nil
	},
	"no-preserve-floor": func(j *Job, v zygo.Sexp) error {
		b, err := toBool(v)
		if err != nil {
			return err
		}
		j.Options.PreserveFloor = !b
		return nil
	},
	"out":                 stringSetting(func(j *Job) *string { return &j.Output }),
	"ref":                 stringSetting(func(j *Job) *string { return &j.RefTile }),
	"preserve-floor":      boolSetting(func(j *Job) *bool { return &j.Options.PreserveFloor }),
	"replace-height-mm":   floatSetting(func(j *Job) *float64 { return &j.Options.ReplaceHeight }),
	"floor-epsilon-mm":    floatSetting(func(j *Job) *float64 { return &j.Options.FloorEpsilon }),
	"overlap-mm":          floatSetting(func(j *Job) *float64 { return &j.Options.Overlap }),
	"ref-height-mm":       floatSetting(func(j *Job) *float64 { return &j.Options.RefHeight }),
	"floor-cap-mm":        floatSetting(func(j *Job) *float64 { return &j.Options.FloorCap }),
	"bottom-extension-mm": floatSetting(func(j *Job) *float64 { return &j.Options.BottomExtension }),
	"pitch-src":           floatSetting(func(j *Job) *float64 { return &j.Options.PitchSrc }),
	"pitch-dst":           floatSetting(func(j *Job) *float64 { return &j.Options.PitchDst }),
	"rotate":              intSetting(func(j *Job) *int { return &j.Options.Rotate }),
	"tile-rotate":         intSetting(func(j *Job) *int { return &j.Options.TileRotate }),
	"dry-run":             boolSetting(func(j *Job) *bool { return &j.Options.DryRun }),
	"verify":              boolSetting(func(j *Job) *bool { return &j.Verify }),
	"verify-tol-mm":       floatSetting(func(j *Job) *float64 { return &j.Checks.Tolerance }),
	"verify-samples":      intSetting(func(j *Job) *int { return &j.Checks.Samples }),
	"export-debug":        boolSetting(func(j *Job) *bool { return &j.ExportDebug }),
	"debug-dir":           stringSetting(func(j *Job) *string { return &j.DebugDir }),
}

// perJob keywords make no sense in defaults.
var perJob = map[string]bool{"out": true}

func keywordNames() string {
	names := make([]string, 0, len(settings))
	for k := range settings {
		names = append(names, ":"+k)
	}
	sort.Strings(names)
	return strings.Join(names, " ")
}

// apply sets every keyword of pa on j, in source order.
func apply(fn string, j *Job, pa kwArgs, allowPerJob bool) error {
	for _, name := range pa.order {
		set, ok := settings[name]
		if !ok {
			return fmt.Errorf("%s: unknown keyword :%s (known: %s)", fn, name, keywordNames())
		}
		if perJob[name] && !allowPerJob {
			return fmt.Errorf("%s: :%s only applies to a single convert", fn, name)
		}
		if err := set(j, pa.kw[name]); err != nil {
			return fmt.Errorf("%s: %s: %w", fn, name, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Builtins
// ---------------------------------------------------------------------------

// state accumulates jobs during one evaluation.
type state struct {
	base Job
	jobs []Job
	line int // starting line of the form being evaluated
}

func newState() *state {
	return &state{base: Job{
		Options: regrid.DefaultOptions(),
		Checks:  regrid.DefaultVerifyConfig(),
	}}
}

// sexpJob is returned by convert so recipes can print or collect it.
type sexpJob struct {
	index int
	input string
}

func (s *sexpJob) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(job %d %q)", s.index, s.input)
}
func (s *sexpJob) Type() *zygo.RegisteredType { return nil }

// registerBuiltins installs the recipe builtins into env. Source must be
// preprocessed with preprocessSource first.
func registerBuiltins(env *zygo.Zlisp, st *state) {

	// -----------------------------------------------------------------------
	// (ref-tile "refs/tile_21_1x1.stl")
	// -----------------------------------------------------------------------
	env.AddFunction("ref_tile", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 1 {
			return zygo.SexpNull, fmt.Errorf("ref-tile requires exactly one path argument")
		}
		path, err := toString(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("ref-tile: %w", err)
		}
		st.base.RefTile = path
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (defaults :pitch-src 42 :pitch-dst 21 :verify true)
	// -----------------------------------------------------------------------
	env.AddFunction("defaults", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) > 0 {
			return zygo.SexpNull, fmt.Errorf("defaults takes only keyword arguments, got %s", describe(pa.positional[0]))
		}
		if err := apply("defaults", &st.base, pa, false); err != nil {
			return zygo.SexpNull, err
		}
		return zygo.SexpNull, nil
	})

	// -----------------------------------------------------------------------
	// (convert "bins/a.stl" :out "out/a_21mm.stl" :modules "2x1")
	// -----------------------------------------------------------------------
	env.AddFunction("convert", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		if len(pa.positional) != 1 {
			return zygo.SexpNull, fmt.Errorf("convert requires exactly one input path, got %d", len(pa.positional))
		}
		input, err := toString(pa.positional[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("convert: input: %w", err)
		}

		job := st.base
		job.Line = st.line
		job.Input = input
		if err := apply("convert", &job, pa, true); err != nil {
			return zygo.SexpNull, err
		}
		if err := job.Options.Validate(); err != nil {
			return zygo.SexpNull, fmt.Errorf("convert %s: %w", input, err)
		}
		if job.Verify {
			if err := job.Checks.Validate(); err != nil {
				return zygo.SexpNull, fmt.Errorf("convert %s: %w", input, err)
			}
		}
		st.jobs = append(st.jobs, job)
		return &sexpJob{index: len(st.jobs) - 1, input: input}, nil
	})
}
