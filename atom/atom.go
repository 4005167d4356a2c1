package atom

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wippyai/pd-runtime/errors"
)

// Kind discriminates the two primitive kinds an Atom can carry.
type Kind uint8

const (
	KindFloat Kind = iota + 1
	KindSymbol
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindSymbol:
		return "symbol"
	default:
		return "invalid"
	}
}

// Atom is an immutable float-or-symbol value. The zero Atom is invalid.
type Atom struct {
	sym  string
	num  float64
	kind Kind
}

// Float returns a numeric atom.
func Float(v float64) Atom {
	return Atom{kind: KindFloat, num: v}
}

// Symbol returns a symbol atom.
func Symbol(s string) Atom {
	return Atom{kind: KindSymbol, sym: s}
}

// FromText returns a symbol atom from raw engine bytes. The bytes are copied
// and must be valid UTF-8.
func FromText(b []byte) (Atom, error) {
	if !utf8.Valid(b) {
		return Atom{}, errors.InvalidUTF8(errors.PhaseDecode, "symbol atom", b)
	}
	return Symbol(string(b)), nil
}

// Of converts a Go value to an Atom. Integers and floats of any width become
// numeric atoms; strings, byte slices and fmt.Stringer values become symbols.
func Of(v any) (Atom, error) {
	switch x := v.(type) {
	case Atom:
		return x, nil
	case float64:
		return Float(x), nil
	case float32:
		return Float(float64(x)), nil
	case int:
		return Float(float64(x)), nil
	case int8:
		return Float(float64(x)), nil
	case int16:
		return Float(float64(x)), nil
	case int32:
		return Float(float64(x)), nil
	case int64:
		return Float(float64(x)), nil
	case uint:
		return Float(float64(x)), nil
	case uint8:
		return Float(float64(x)), nil
	case uint16:
		return Float(float64(x)), nil
	case uint32:
		return Float(float64(x)), nil
	case uint64:
		return Float(float64(x)), nil
	case string:
		return Symbol(x), nil
	case []byte:
		return FromText(x)
	case fmt.Stringer:
		return Symbol(x.String()), nil
	default:
		return Atom{}, errors.New(errors.PhaseSend, errors.KindInvalidInput).
			Value(v).
			Detail("cannot convert %T to an atom", v).
			Build()
	}
}

// Kind returns the atom's tag.
func (a Atom) Kind() Kind { return a.kind }

// IsFloat reports whether the atom is numeric.
func (a Atom) IsFloat() bool { return a.kind == KindFloat }

// IsSymbol reports whether the atom is a symbol.
func (a Atom) IsSymbol() bool { return a.kind == KindSymbol }

// Valid reports whether the atom was built by a constructor.
func (a Atom) Valid() bool { return a.kind == KindFloat || a.kind == KindSymbol }

// Float returns the numeric payload.
func (a Atom) Float() (float64, bool) {
	if a.kind != KindFloat {
		return 0, false
	}
	return a.num, true
}

// Symbol returns the text payload.
func (a Atom) Symbol() (string, bool) {
	if a.kind != KindSymbol {
		return "", false
	}
	return a.sym, true
}

// Equal reports structural equality across tag and payload.
func (a Atom) Equal(b Atom) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == KindFloat {
		return a.num == b.num || (math.IsNaN(a.num) && math.IsNaN(b.num))
	}
	return a.sym == b.sym
}

// String renders the atom the way the engine prints it.
func (a Atom) String() string {
	switch a.kind {
	case KindFloat:
		return strconv.FormatFloat(a.num, 'g', -1, 64)
	case KindSymbol:
		return a.sym
	default:
		return "<invalid>"
	}
}

// GoString implements fmt.GoStringer.
func (a Atom) GoString() string {
	switch a.kind {
	case KindFloat:
		return "atom.Float(" + strconv.FormatFloat(a.num, 'g', -1, 64) + ")"
	case KindSymbol:
		return "atom.Symbol(" + strconv.Quote(a.sym) + ")"
	default:
		return "atom.Atom{}"
	}
}

// List converts each value with Of.
func List(values ...any) ([]Atom, error) {
	out := make([]Atom, 0, len(values))
	for i, v := range values {
		a, err := Of(v)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseSend, errors.KindInvalidInput, err, fmt.Sprintf("list element %d", i))
		}
		out = append(out, a)
	}
	return out, nil
}

// MustList is like List but panics on error. Intended for literals in tests
// and examples.
func MustList(values ...any) []Atom {
	out, err := List(values...)
	if err != nil {
		panic(err)
	}
	return out
}

// Parse splits message text on whitespace. Tokens that parse as numbers
// become numeric atoms, everything else becomes a symbol.
func Parse(text string) []Atom {
	fields := strings.Fields(text)
	out := make([]Atom, 0, len(fields))
	for _, f := range fields {
		if looksNumeric(f) {
			if v, err := strconv.ParseFloat(f, 64); err == nil {
				out = append(out, Float(v))
				continue
			}
		}
		out = append(out, Symbol(f))
	}
	return out
}

// looksNumeric rejects the spellings ParseFloat accepts but the engine
// treats as symbols (inf, nan, hex floats, underscores).
func looksNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c == '.', c == '+', c == '-', c == 'e', c == 'E':
		default:
			return false
		}
	}
	return true
}

// Format joins atoms with single spaces.
func Format(list []Atom) string {
	var b strings.Builder
	for i, a := range list {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(a.String())
	}
	return b.String()
}

// EqualLists reports element-wise equality of two lists.
func EqualLists(a, b []Atom) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
