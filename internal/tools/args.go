package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"lunchtools/internal/core"
)

// ErrInvalidArgument marks argument errors the caller can fix.
var ErrInvalidArgument = errors.New("invalid argument")

// ParamType is the JSON type of a tool parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeNumber  ParamType = "number"
	TypeBoolean ParamType = "boolean"
	TypeIDList  ParamType = "array"
)

// Param declares one tool parameter.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
}

// Args are the decoded arguments of one call, as produced by a JSON
// decoder: numbers arrive as float64 or json.Number.
type Args map[string]any

func argErr(name, format string, a ...any) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidArgument, name, fmt.Sprintf(format, a...))
}

// Has reports whether name was supplied with a non-null value.
func (a Args) Has(name string) bool {
	v, ok := a[name]
	return ok && v != nil
}

// String returns a string argument.
func (a Args) String(name string) (string, bool, error) {
	if !a.Has(name) {
		return "", false, nil
	}
	s, ok := a[name].(string)
	if !ok {
		return "", false, argErr(name, "expected a string")
	}
	return s, true, nil
}

// Bool returns a boolean argument. "true"/"false" strings are accepted.
func (a Args) Bool(name string) (bool, bool, error) {
	if !a.Has(name) {
		return false, false, nil
	}
	switch v := a[name].(type) {
	case bool:
		return v, true, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, false, argErr(name, "expected true or false")
		}
		return b, true, nil
	}
	return false, false, argErr(name, "expected a boolean")
}

// Int64 returns an integer argument.
func (a Args) Int64(name string) (int64, bool, error) {
	if !a.Has(name) {
		return 0, false, nil
	}
	n, err := toInt64(a[name])
	if err != nil {
		return 0, false, argErr(name, "%v", err)
	}
	return n, true, nil
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.Abs(n) > 1<<53 {
			return 0, fmt.Errorf("expected an integer, got %v", n)
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		return n.Int64()
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", n)
		}
		return i, nil
	}
	return 0, fmt.Errorf("expected an integer")
}

// ID returns a positive identifier argument.
func (a Args) ID(name string) (*int64, error) {
	n, ok, err := a.Int64(name)
	if err != nil || !ok {
		return nil, err
	}
	if n <= 0 {
		return nil, argErr(name, "must be a positive id")
	}
	return &n, nil
}

// IDs returns a list of identifiers, keeping order and duplicates.
func (a Args) IDs(name string) ([]int64, bool, error) {
	if !a.Has(name) {
		return nil, false, nil
	}
	raw, ok := a[name].([]any)
	if !ok {
		return nil, false, argErr(name, "expected a list of ids")
	}
	ids := make([]int64, 0, len(raw))
	for i, v := range raw {
		n, err := toInt64(v)
		if err != nil || n <= 0 {
			return nil, false, argErr(name, "element %d is not a valid id", i)
		}
		ids = append(ids, n)
	}
	return ids, true, nil
}

// Decimal returns a decimal argument given either as a number or a string.
func (a Args) Decimal(name string) (decimal.Decimal, bool, error) {
	if !a.Has(name) {
		return decimal.Zero, false, nil
	}
	switch v := a[name].(type) {
	case float64:
		return decimal.NewFromFloat(v), true, nil
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			return decimal.Zero, false, argErr(name, "expected an amount")
		}
		return d, true, nil
	case string:
		d, err := core.ParseAmount(v)
		if err != nil {
			return decimal.Zero, false, argErr(name, "expected an amount, got %q", v)
		}
		return d, true, nil
	}
	return decimal.Zero, false, argErr(name, "expected an amount")
}

// Date returns a YYYY-MM-DD argument.
func (a Args) Date(name string) (core.Date, bool, error) {
	s, ok, err := a.String(name)
	if err != nil || !ok {
		return core.Date{}, false, err
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, false, argErr(name, "expected YYYY-MM-DD, got %q", s)
	}
	return d, true, nil
}

// check verifies required parameters and enum values before a handler
// runs. Type errors surface from the typed accessors.
func check(params []Param, a Args) error {
	for _, p := range params {
		if p.Required && !a.Has(p.Name) {
			return argErr(p.Name, "is required")
		}
		if len(p.Enum) == 0 || !a.Has(p.Name) {
			continue
		}
		s, _ := a[p.Name].(string)
		found := false
		for _, e := range p.Enum {
			if s == e {
				found = true
				break
			}
		}
		if !found {
			return argErr(p.Name, "must be one of %s", strings.Join(p.Enum, ", "))
		}
	}
	return nil
}

// reader collects the first error across several accessor calls so that
// handlers can read their arguments without an if per field.
type reader struct {
	args Args
	err  error
}

func (r *reader) keep(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *reader) id(name string) *int64 {
	v, err := r.args.ID(name)
	r.keep(err)
	return v
}

func (r *reader) str(name string) *string {
	v, ok, err := r.args.String(name)
	r.keep(err)
	if !ok {
		return nil
	}
	return &v
}

func (r *reader) boolean(name string) *bool {
	v, ok, err := r.args.Bool(name)
	r.keep(err)
	if !ok {
		return nil
	}
	return &v
}

func (r *reader) int(name string) int {
	v, _, err := r.args.Int64(name)
	r.keep(err)
	return int(v)
}

func (r *reader) amount(name string) *decimal.Decimal {
	v, ok, err := r.args.Decimal(name)
	r.keep(err)
	if !ok {
		return nil
	}
	return &v
}

func (r *reader) date(name string) *core.Date {
	v, ok, err := r.args.Date(name)
	r.keep(err)
	if !ok {
		return nil
	}
	return &v
}

func (r *reader) ids(name string) []int64 {
	v, _, err := r.args.IDs(name)
	r.keep(err)
	return v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
