package spvxml

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/spv/errs"
)

// Attrs extracts typed attributes from an element. Extraction methods
// record the first conversion error; Finish reports it, or any duplicate,
// missing, or unexpected attributes. The "id" attribute is always
// permitted.
type Attrs struct {
	elem *Elem
	used map[string]bool
	err  error
}

// NewAttrs returns an extractor for the element.
func NewAttrs(e *Elem) *Attrs {
	return &Attrs{elem: e, used: map[string]bool{"id": true}}
}

func (a *Attrs) fail(format string, args ...any) {
	if a.err == nil {
		a.err = fmt.Errorf("%w: error parsing attributes of <%s>: %s",
			errs.ErrInvalidFormat, a.elem.Name, fmt.Sprintf(format, args...))
	}
}

// raw marks the attribute used and returns its value. Duplicates are
// reported through the error state.
func (a *Attrs) raw(name string) (string, bool) {
	a.used[name] = true
	var value string
	found := false
	for _, attr := range a.elem.Attrs {
		if attr.Name.Local != name {
			continue
		}
		if found {
			a.fail("duplicate attribute %q", name)

			return value, true
		}
		value = attr.Value
		found = true
	}

	return value, found
}

// String returns an optional string attribute.
func (a *Attrs) String(name string) string {
	v, _ := a.raw(name)

	return v
}

// Required returns a mandatory string attribute.
func (a *Attrs) Required(name string) string {
	v, ok := a.raw(name)
	if !ok {
		a.fail("attribute %q is missing", name)
	}

	return v
}

// Bool parses "true"/"false", returning def when absent.
func (a *Attrs) Bool(name string, def bool) bool {
	v, ok := a.raw(name)
	if !ok {
		return def
	}
	switch v {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		a.fail("attribute %q has bad boolean value %q", name, v)

		return def
	}
}

// Int parses a decimal integer attribute, returning def when absent.
func (a *Attrs) Int(name string, def int) int {
	v, ok := a.raw(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		a.fail("attribute %q has bad integer value %q", name, v)

		return def
	}

	return n
}

// Real parses a floating point attribute, returning def when absent.
func (a *Attrs) Real(name string, def float64) float64 {
	v, ok := a.raw(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		a.fail("attribute %q has bad real value %q", name, v)

		return def
	}

	return f
}

var namedColors = map[string]int{
	"black":   0x000000,
	"white":   0xffffff,
	"red":     0xff0000,
	"green":   0x008000,
	"blue":    0x0000ff,
	"yellow":  0xffff00,
	"gray":    0x808080,
	"grey":    0x808080,
	"magenta": 0xff00ff,
	"cyan":    0x00ffff,
}

// Color parses "#rrggbb", "rrggbb", a color name, or "transparent",
// which yields -1. The default applies when the attribute is absent.
func (a *Attrs) Color(name string, def int) int {
	v, ok := a.raw(name)
	if !ok {
		return def
	}
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "transparent" {
		return -1
	}
	if c, ok := namedColors[v]; ok {
		return c
	}
	hex := strings.TrimPrefix(v, "#")
	if len(hex) == 6 {
		if n, err := strconv.ParseUint(hex, 16, 32); err == nil {
			return int(n)
		}
	}
	a.fail("attribute %q has bad color value %q", name, v)

	return def
}

// dimension unit divisors convert to inches.
var unitDivisors = map[string]float64{
	"in": 1.0,
	"pt": 72.0,
	"px": 96.0,
	"pc": 6.0,
	"cm": 2.54,
	"mm": 25.4,
}

// Dimension parses a length with an optional unit suffix, converted to
// inches. A bare number is taken as points.
func (a *Attrs) Dimension(name string, def float64) float64 {
	v, ok := a.raw(name)
	if !ok {
		return def
	}
	v = strings.TrimSpace(v)
	num := v
	div := 72.0
	for unit, d := range unitDivisors {
		if strings.HasSuffix(v, unit) {
			num = strings.TrimSpace(strings.TrimSuffix(v, unit))
			div = d

			break
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		a.fail("attribute %q has bad dimension value %q", name, v)

		return def
	}

	return f / div
}

// Enum maps an attribute through values, yielding other for unlisted
// strings so new writer vocabularies do not break decoding.
func (a *Attrs) Enum(name string, values map[string]int, other int) int {
	v, ok := a.raw(name)
	if !ok {
		return other
	}
	if n, found := values[v]; found {
		return n
	}

	return other
}

// Ref returns a reference attribute's target ID for later resolution.
func (a *Attrs) Ref(name string) string {
	v, _ := a.raw(name)

	return v
}

// Finish reports the first extraction error, or unexpected attributes,
// all named together.
func (a *Attrs) Finish() error {
	if a.err != nil {
		return a.err
	}
	var unexpected []string
	seen := map[string]bool{}
	for _, attr := range a.elem.Attrs {
		name := attr.Name.Local
		if attr.Name.Space == "xmlns" || name == "xmlns" || a.used[name] || seen[name] {
			continue
		}
		seen[name] = true
		unexpected = append(unexpected, name)
	}
	if len(unexpected) > 0 {
		return fmt.Errorf("%w: unexpected attributes of <%s>: %s",
			errs.ErrInvalidFormat, a.elem.Name, joinNames(unexpected))
	}

	return nil
}
