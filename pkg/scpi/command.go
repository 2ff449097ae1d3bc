package scpi

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMalformedCommand is returned for empty lines and for setters whose
	// parameter is missing or not a finite decimal number.
	ErrMalformedCommand = errors.New("malformed command")
	// ErrUnknownCommand is returned for lines whose path matches no command.
	ErrUnknownCommand = errors.New("invalid command")
)

// Kind identifies a supported instrument command.
type Kind int

// Supported command kinds. Invalid marks a line matching no command.
const (
	Invalid Kind = iota
	SetVoltage
	SetCurrent
	SetVoltSlewRise
	SetVoltSlewFall
	SetCurrSlewRise
	SetCurrSlewFall
	QueryVoltage
	QueryCurrent
)

var kindNames = map[Kind]string{
	Invalid:         "invalid",
	SetVoltage:      "set-voltage",
	SetCurrent:      "set-current",
	SetVoltSlewRise: "set-volt-slew-rise",
	SetVoltSlewFall: "set-volt-slew-fall",
	SetCurrSlewRise: "set-curr-slew-rise",
	SetCurrSlewFall: "set-curr-slew-fall",
	QueryVoltage:    "query-voltage",
	QueryCurrent:    "query-current",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// IsQuery reports whether the command answers with a measurement.
func (k Kind) IsQuery() bool {
	return k == QueryVoltage || k == QueryCurrent
}

// IsSetter reports whether the command changes device state.
func (k Kind) IsSetter() bool {
	return k != Invalid && !k.IsQuery()
}

// Command is one parsed input line.
type Command struct {
	Kind     Kind
	Path     string
	Param    float64
	HasParam bool
}

// rule matches a command path to a Kind.
type rule struct {
	kind  Kind
	path  string
	exact bool
}

// grammar is checked in order. The SLEW sub-paths must come before the
// generic VOLTage/CURRent rules, which match any path containing them.
var grammar = []rule{
	{SetVoltSlewRise, ":SOURce:VOLTage:SLEW:RISing", true},
	{SetVoltSlewFall, ":SOURce:VOLTage:SLEW:FALLing", true},
	{SetVoltage, ":SOURce:VOLTage", false},
	{SetCurrSlewRise, ":SOURce:CURRent:SLEW:RISing", true},
	{SetCurrSlewFall, ":SOURce:CURRent:SLEW:FALLing", true},
	{SetCurrent, ":SOURce:CURRent", false},
	{QueryVoltage, ":MEASure:VOLTage?", true},
	{QueryCurrent, ":MEASure:CURRent?", true},
}

func (r rule) match(path string) bool {
	if r.exact {
		return path == r.path
	}
	return strings.Contains(path, r.path)
}

// lookup returns the Kind of the first grammar rule matching path.
func lookup(path string) Kind {
	for _, r := range grammar {
		if r.match(path) {
			return r.kind
		}
	}
	return Invalid
}

// Parse parses a single command line of the form "<path> [<value>]".
// Paths are case-sensitive. Trailing ';', CR and LF are stripped from the
// value and trailing ';' from the path. Tokens after the value are ignored.
func Parse(line string) (Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("%w: empty line", ErrMalformedCommand)
	}

	cmd := Command{Path: strings.TrimRight(fields[0], ";")}
	cmd.Kind = lookup(cmd.Path)
	if cmd.Kind == Invalid {
		return cmd, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Path)
	}

	if cmd.Kind.IsQuery() {
		return cmd, nil
	}

	if len(fields) < 2 {
		return cmd, fmt.Errorf("%w: %s requires a value", ErrMalformedCommand, cmd.Path)
	}

	raw := strings.TrimRight(fields[1], ";\r\n")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return cmd, fmt.Errorf("%w: invalid value %q: %v", ErrMalformedCommand, raw, err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return cmd, fmt.Errorf("%w: value %q is not finite", ErrMalformedCommand, raw)
	}

	cmd.Param = value
	cmd.HasParam = true
	return cmd, nil
}

// FormatValue renders a measurement the way the instrument reports it:
// shortest round-trip decimal text, always with a fractional part or an
// exponent ("5.0", "1.25", "1e-05").
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}

	if abs := math.Abs(v); abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}

	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
