// ABOUTME: Declarative option binding shared by every feed command.
// ABOUTME: Maps raw argument vectors onto alias-aware specs via pflag.
package options

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
)

// ErrHelp reports that usage was requested; nothing should execute.
var ErrHelp = errors.New("help requested")

// Kind selects how a flag binds its values.
type Kind int

const (
	String Kind = iota
	StringList
	Bool
	Int
)

// Spec declares one logical option and every alias that binds to it.
type Spec struct {
	// Name is the canonical long name, without dashes.
	Name string
	// Aliases are extra names; a single letter is the short form.
	Aliases  []string
	Usage    string
	Kind     Kind
	Required bool
	// Default is applied only when the flag is absent.
	Default string
}

func (s Spec) shorthand() string {
	for _, alias := range s.Aliases {
		if len(alias) == 1 {
			return alias
		}
	}
	return ""
}

func (s Spec) takesValue() bool {
	return s.Kind != Bool
}

// Set is the option table of one command.
type Set struct {
	Command string
	Summary string
	Specs   []Spec
}

// ValidationError enumerates every problem found while binding.
type ValidationError struct {
	Command  string
	Problems []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Problems) == 0 {
		return "invalid options"
	}
	return fmt.Sprintf("%s: %s", e.Command, strings.Join(e.Problems, "; "))
}

// Values are the bound results of a successful parse.
type Values struct {
	present map[string]bool
	strs    map[string]string
	lists   map[string][]string
	bools   map[string]bool
	ints    map[string]int
}

// String returns the value of a string option, empty when absent.
func (v *Values) String(name string) string {
	return v.strs[name]
}

// Optional returns a string option as present or absent.
func (v *Values) Optional(name string) Optional[string] {
	if !v.present[name] {
		return None[string]()
	}
	return Some(v.strs[name])
}

// Strings returns a copy of a repeatable option's values in the order given.
func (v *Values) Strings(name string) []string {
	src := v.lists[name]
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Bool returns a flag's value.
func (v *Values) Bool(name string) bool {
	return v.bools[name]
}

// Int returns an integer option, or its default when absent.
func (v *Values) Int(name string) int {
	return v.ints[name]
}

// rawValue stores the text of an option for validation after parsing.
type rawValue struct {
	text string
	kind string
}

func (r *rawValue) String() string     { return r.text }
func (r *rawValue) Set(s string) error { r.text = s; return nil }
func (r *rawValue) Type() string       { return r.kind }

// Parse binds args against the set. It returns ErrHelp when usage was
// requested or no arguments were given, and a *ValidationError listing
// every problem otherwise.
func (s *Set) Parse(args []string) (*Values, error) {
	if len(args) == 0 {
		return nil, ErrHelp
	}

	args, help, problems := s.scan(args)
	if help {
		return nil, ErrHelp
	}

	fs := pflag.NewFlagSet(s.Command, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetNormalizeFunc(s.normalize)

	strs := map[string]*string{}
	lists := map[string]*[]string{}
	bools := map[string]*bool{}
	raws := map[string]*rawValue{}

	for _, spec := range s.Specs {
		short := spec.shorthand()
		switch spec.Kind {
		case String:
			strs[spec.Name] = fs.StringP(spec.Name, short, "", spec.Usage)
		case StringList:
			lists[spec.Name] = fs.StringArrayP(spec.Name, short, nil, spec.Usage)
		case Bool:
			bools[spec.Name] = fs.BoolP(spec.Name, short, false, spec.Usage)
		case Int:
			raw := &rawValue{kind: "int"}
			fs.VarP(raw, spec.Name, short, spec.Usage)
			raws[spec.Name] = raw
		}
	}

	if err := fs.Parse(args); err != nil {
		problems = append(problems, err.Error())
	}
	for _, extra := range fs.Args() {
		problems = append(problems, fmt.Sprintf("unexpected argument %q", extra))
	}

	vals := &Values{
		present: map[string]bool{},
		strs:    map[string]string{},
		lists:   map[string][]string{},
		bools:   map[string]bool{},
		ints:    map[string]int{},
	}

	for _, spec := range s.Specs {
		changed := fs.Changed(spec.Name)
		switch spec.Kind {
		case String:
			val := strings.TrimSpace(*strs[spec.Name])
			if !changed && spec.Default != "" {
				val = spec.Default
				changed = true
			}
			if changed && val == "" {
				if spec.Required {
					problems = append(problems, missingProblem(spec))
				} else {
					problems = append(problems, fmt.Sprintf("option --%s must not be empty", spec.Name))
				}
				continue
			}
			if !changed {
				if spec.Required {
					problems = append(problems, missingProblem(spec))
				}
				continue
			}
			vals.present[spec.Name] = true
			vals.strs[spec.Name] = val
		case StringList:
			var kept []string
			for _, item := range *lists[spec.Name] {
				if strings.TrimSpace(item) == "" {
					problems = append(problems, fmt.Sprintf("option --%s must not be empty", spec.Name))
					continue
				}
				kept = append(kept, item)
			}
			if len(*lists[spec.Name]) == 0 && spec.Required {
				problems = append(problems, missingProblem(spec))
				continue
			}
			vals.present[spec.Name] = len(kept) > 0
			vals.lists[spec.Name] = kept
		case Bool:
			vals.present[spec.Name] = changed
			vals.bools[spec.Name] = *bools[spec.Name]
		case Int:
			text := raws[spec.Name].text
			if !changed {
				if spec.Required {
					problems = append(problems, missingProblem(spec))
					continue
				}
				text = spec.Default
			}
			if text == "" {
				continue
			}
			n, err := strconv.Atoi(text)
			if err != nil || n <= 0 {
				problems = append(problems, fmt.Sprintf("option --%s expects a positive whole number, got %q", spec.Name, text))
				continue
			}
			vals.present[spec.Name] = changed
			vals.ints[spec.Name] = n
		}
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Command: s.Command, Problems: problems}
	}
	return vals, nil
}

// scan walks the raw tokens before pflag sees them. It detects help,
// collects every unknown flag, rewrites single-dash long names and drops
// a trailing flag that is missing its value.
func (s *Set) scan(args []string) ([]string, bool, []string) {
	var (
		out      []string
		problems []string
		help     bool
	)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		if len(arg) < 2 || arg[0] != '-' {
			out = append(out, arg)
			continue
		}

		body := strings.TrimLeft(arg, "-")
		flagText, _, _ := strings.Cut(arg, "=")
		if body == "" {
			problems = append(problems, fmt.Sprintf("unknown option %q", arg))
			continue
		}
		name, _, inline := strings.Cut(body, "=")
		doubleDash := strings.HasPrefix(arg, "--")

		if name == "help" || name == "h" {
			help = true
			continue
		}

		spec, ok := s.lookup(name)
		if !doubleDash && ok && len(name) > 1 {
			// -org=value spelled with a single dash
			arg = "-" + arg
		} else if !doubleDash && !ok {
			// -ovalue: short flag with an attached value
			spec, ok = s.lookup(body[:1])
			inline = len(body) > 1
		}

		if !ok {
			problems = append(problems, fmt.Sprintf("unknown option %q", flagText))
			if !inline && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
			continue
		}

		if spec.takesValue() && !inline {
			if i+1 >= len(args) {
				problems = append(problems, fmt.Sprintf("option --%s requires a value", spec.Name))
				continue
			}
			out = append(out, arg, args[i+1])
			i++
		} else {
			out = append(out, arg)
		}

		// -f a.nupkg b.nupkg: a list option takes every following value
		if spec.Kind == StringList {
			for i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				out = append(out, "--"+spec.Name, args[i+1])
				i++
			}
		}
	}

	return out, help, problems
}

func dashed(name string, doubleDash bool) string {
	if doubleDash || len(name) > 1 {
		return "--" + name
	}
	return "-" + name
}

func (s *Set) lookup(name string) (Spec, bool) {
	for _, spec := range s.Specs {
		if spec.Name == name {
			return spec, true
		}
		for _, alias := range spec.Aliases {
			if alias == name {
				return spec, true
			}
		}
	}
	return Spec{}, false
}

func (s *Set) normalize(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if spec, ok := s.lookup(name); ok {
		return pflag.NormalizedName(spec.Name)
	}
	return pflag.NormalizedName(name)
}

func missingProblem(spec Spec) string {
	return fmt.Sprintf("missing required option --%s", spec.Name)
}

// PrintUsage writes the command's usage line and alias table.
func (s *Set) PrintUsage(w io.Writer, program string) {
	_, _ = fmt.Fprintf(w, "Usage: %s %s [options]\n\n", program, s.Command)
	if s.Summary != "" {
		_, _ = fmt.Fprintf(w, "%s\n\n", s.Summary)
	}
	_, _ = fmt.Fprintln(w, "Options:")

	tw := tabwriter.NewWriter(w, 0, 4, 3, ' ', 0)
	for _, spec := range s.Specs {
		names := []string{"--" + spec.Name}
		for _, alias := range spec.Aliases {
			names = append(names, dashed(alias, false))
		}
		label := strings.Join(names, ", ")
		if spec.takesValue() {
			label += "=VALUE"
		}

		usage := spec.Usage
		switch {
		case spec.Required:
			usage += " (required)"
		case spec.Default != "":
			usage += fmt.Sprintf(" (default %s)", spec.Default)
		}
		if spec.Kind == StringList {
			usage += " [repeatable]"
		}
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", label, usage)
	}
	_, _ = fmt.Fprintf(tw, "  --help, -h\t%s\n", "Show this help")
	_ = tw.Flush()
}
