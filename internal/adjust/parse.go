package adjust

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrSyntax is returned for adjustment expressions that do not match
// [+|-|=]NUMBER[%|%%].
var ErrSyntax = errors.New("invalid adjustment")

// Mode says whether the magnitude replaces or shifts the current value.
type Mode int

const (
	Absolute Mode = iota
	Relative
)

func (m Mode) String() string {
	if m == Relative {
		return "relative"
	}
	return "absolute"
}

// Unit says what the magnitude is measured in.
type Unit int

const (
	Raw Unit = iota
	PercentOfRange
	PercentOfCurrent
)

func (u Unit) String() string {
	switch u {
	case PercentOfRange:
		return "%"
	case PercentOfCurrent:
		return "%%"
	default:
		return "raw"
	}
}

// Adjustment is a parsed adjustment expression. Magnitude is never negative; a
// decrease is carried by Sign = -1.
type Adjustment struct {
	Mode      Mode
	Sign      int
	Magnitude float64
	Unit      Unit
}

// Parse reads an adjustment expression:
//
//	"50"     set to 50
//	"+10%"   raise by 10% of the maximum
//	"-5%%"   lower by 5% of the current value
//	"=150"   set to 150
func Parse(expr string) (Adjustment, error) {
	adj := Adjustment{Mode: Absolute, Sign: 1}

	rest := expr
	if rest != "" {
		switch rest[0] {
		case '+':
			adj.Mode = Relative
			rest = rest[1:]
		case '-':
			adj.Mode = Relative
			adj.Sign = -1
			rest = rest[1:]
		case '=':
			rest = rest[1:]
		}
	}

	n := numberLen(rest)
	if n == 0 {
		return Adjustment{}, fmt.Errorf("%w: %q: expected a number", ErrSyntax, expr)
	}
	mag, err := strconv.ParseFloat(rest[:n], 64)
	if err != nil {
		return Adjustment{}, fmt.Errorf("%w: %q: %w", ErrSyntax, expr, err)
	}
	adj.Magnitude = mag

	switch rest[n:] {
	case "":
		adj.Unit = Raw
	case "%":
		adj.Unit = PercentOfRange
	case "%%":
		adj.Unit = PercentOfCurrent
	default:
		return Adjustment{}, fmt.Errorf("%w: %q: unexpected suffix %q", ErrSyntax, expr, rest[n:])
	}
	return adj, nil
}

// numberLen returns the length of the leading decimal number in s, or 0 if
// s does not start with one. At least one digit and at most one '.' are
// required.
func numberLen(s string) int {
	digits, dot := 0, false
	i := 0
	for ; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.' && !dot:
			dot = true
		default:
			if digits == 0 {
				return 0
			}
			return i
		}
	}
	if digits == 0 {
		return 0
	}
	return i
}
