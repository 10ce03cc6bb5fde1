package keys

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// Param declares one parameter of a Signature.
type Param struct {
	Name       string
	Default    any
	HasDefault bool
}

// Required declares a parameter without a default.
func Required(name string) Param {
	return Param{Name: name}
}

// Default declares a parameter that takes value when the caller omits it.
func Default(name string, value any) Param {
	return Param{Name: name, Default: value, HasDefault: true}
}

// Signature is the ordered parameter list of a wrapped function.
//
// The zero Signature binds positionally: values are named by their index
// ("0", "1", ...) and named values follow in name order.
type Signature struct {
	Params []Param
}

// Sig builds a Signature from params.
func Sig(params ...Param) Signature {
	return Signature{Params: params}
}

// Positional reports whether s is the zero, positional-only signature.
func (s Signature) Positional() bool {
	return len(s.Params) == 0
}

// Validate checks that every parameter has a unique, non-empty name.
func (s Signature) Validate() error {
	seen := make(map[string]struct{}, len(s.Params))
	for i, p := range s.Params {
		if p.Name == "" {
			return fmt.Errorf("%w: parameter %d has no name", ErrInvalidSignature, i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("%w: parameter %q declared twice", ErrInvalidSignature, p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return nil
}

// Args are the arguments of a single call.
// Args values are immutable; With and On return modified copies.
type Args struct {
	Positional []any
	Named      map[string]any

	receiver    any
	hasReceiver bool
}

// Pos returns Args holding the given positional values.
func Pos(values ...any) Args {
	return Args{Positional: values}
}

// Named returns Args holding a single named value.
func Named(name string, value any) Args {
	return Args{}.With(name, value)
}

// With returns a copy of a with the named value set.
func (a Args) With(name string, value any) Args {
	named := make(map[string]any, len(a.Named)+1)
	maps.Copy(named, a.Named)
	named[name] = value
	a.Named = named
	return a
}

// On returns a copy of a bound to a receiver. The receiver fills the first
// parameter of the signature, ahead of the positional values.
func (a Args) On(receiver any) Args {
	a.receiver = receiver
	a.hasReceiver = true
	return a
}

// Receiver returns the receiver set with On.
func (a Args) Receiver() (any, bool) {
	return a.receiver, a.hasReceiver
}

// Field is one bound (parameter, value) pair.
type Field struct {
	Name  string
	Value any

	// Receiver marks the field filled from Args.On.
	Receiver bool
}

// Binding is the normalized argument list of a call, in signature order.
type Binding []Field

// Value returns the value bound to name.
func (b Binding) Value(name string) (any, bool) {
	for _, f := range b {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// Values returns the bound values in order.
func (b Binding) Values() []any {
	out := make([]any, len(b))
	for i, f := range b {
		out[i] = f.Value
	}
	return out
}

// Bind normalizes args against s. f(1), f(bar=1) and f(1, baz="baz") with
// baz defaulting to "baz" produce equal bindings.
func (s Signature) Bind(args Args) (Binding, error) {
	positional := args.Positional
	if args.hasReceiver {
		positional = append([]any{args.receiver}, positional...)
	}

	if s.Positional() {
		b := bindPositional(positional, args.Named)
		if args.hasReceiver {
			b[0].Receiver = true
		}
		return b, nil
	}

	if len(positional) > len(s.Params) {
		return nil, fmt.Errorf("%w: got %d, accepts %d", ErrTooManyArgs, len(positional), len(s.Params))
	}

	index := make(map[string]int, len(s.Params))
	for i, p := range s.Params {
		index[p.Name] = i
	}

	values := make([]any, len(s.Params))
	set := make([]bool, len(s.Params))
	for i, v := range positional {
		values[i] = v
		set[i] = true
	}

	for _, name := range slices.Sorted(maps.Keys(args.Named)) {
		i, ok := index[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParam, name)
		}
		if set[i] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateParam, name)
		}
		values[i] = args.Named[name]
		set[i] = true
	}

	b := make(Binding, len(s.Params))
	for i, p := range s.Params {
		if !set[i] {
			if !p.HasDefault {
				return nil, fmt.Errorf("%w: %q", ErrMissingParam, p.Name)
			}
			values[i] = p.Default
		}
		b[i] = Field{Name: p.Name, Value: values[i]}
	}
	if args.hasReceiver {
		b[0].Receiver = true
	}
	return b, nil
}

func bindPositional(positional []any, named map[string]any) Binding {
	b := make(Binding, 0, len(positional)+len(named))
	for i, v := range positional {
		b = append(b, Field{Name: strconv.Itoa(i), Value: v})
	}
	for _, name := range slices.Sorted(maps.Keys(named)) {
		b = append(b, Field{Name: name, Value: named[name]})
	}
	return b
}
