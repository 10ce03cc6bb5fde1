package keys

import (
	"context"
	"crypto/sha256"
	"encoding"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// CallKey identifies a memoizable call.
//
// Keys are equal when their Canonical encodings are equal. Digest is derived
// from Canonical and is stable across processes.
type CallKey struct {
	// Canonical is the canonical JSON encoding of the pre-key, with every
	// value tagged by its Go type.
	Canonical string
	// Digest is the first 16 hex characters of SHA-256(Canonical).
	Digest string
}

// FromCanonical rebuilds a CallKey from its canonical encoding.
func FromCanonical(canonical string) CallKey {
	hash := sha256.Sum256([]byte(canonical))
	return CallKey{
		Canonical: canonical,
		Digest:    hex.EncodeToString(hash[:8]), // First 8 bytes = 16 hex chars
	}
}

// String returns the digest.
func (k CallKey) String() string {
	return k.Digest
}

// IsZero reports whether k was never derived.
func (k CallKey) IsZero() bool {
	return k.Canonical == ""
}

// Keyed is implemented by values that choose their own key representation.
// KeyPart is encoded in place of the value.
type Keyed interface {
	KeyPart() any
}

// KeyFunc computes a custom pre-key from a bound call. Its result is used
// verbatim; elements may be Pending.
type KeyFunc func(ctx context.Context, b Binding) ([]any, error)

// Deriver turns call arguments into CallKeys.
//
// Contract:
//   - Determinism: equal bindings produce equal keys, regardless of map
//     iteration order or how the caller spelled the arguments.
//   - Concurrency: a Deriver is safe for concurrent use.
type Deriver struct {
	sig   Signature
	keyFn KeyFunc
}

// NewDeriver creates a Deriver for sig. keyFn may be nil.
func NewDeriver(sig Signature, keyFn KeyFunc) (*Deriver, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	return &Deriver{sig: sig, keyFn: keyFn}, nil
}

// Signature returns the signature arguments are bound against.
func (d *Deriver) Signature() Signature {
	return d.sig
}

// Derive binds args and computes their key.
// Every failure is a *DerivationError.
func (d *Deriver) Derive(ctx context.Context, args Args) (CallKey, Binding, error) {
	b, err := d.sig.Bind(args)
	if err != nil {
		return CallKey{}, nil, derivationError(StageBind, err)
	}
	key, err := d.Key(ctx, b)
	if err != nil {
		return CallKey{}, nil, err
	}
	return key, b, nil
}

// Key computes the key of an already bound call.
func (d *Deriver) Key(ctx context.Context, b Binding) (CallKey, error) {
	var pre []any
	if d.keyFn != nil {
		var err error
		pre, err = d.keyFn(ctx, b)
		if err != nil {
			return CallKey{}, derivationError(StageKeyFunc, err)
		}
	} else {
		pre = b.Values()
	}

	resolved, err := resolvePending(ctx, pre)
	if err != nil {
		return CallKey{}, derivationError(StageResolve, err)
	}

	var doc any = resolved
	if d.keyFn == nil {
		pairs := make([]any, len(b))
		for i, f := range b {
			v := resolved[i]
			if f.Receiver {
				v = receiverPart(v)
			}
			pairs[i] = []any{f.Name, v}
		}
		doc = pairs
	}

	canonical, err := canonicalize(doc)
	if err != nil {
		return CallKey{}, derivationError(StageEncode, err)
	}
	return FromCanonical(string(canonical)), nil
}

// receiverPart keys pointer receivers by identity unless they implement
// Keyed. Identity keys do not survive a restart.
func receiverPart(v any) any {
	if _, ok := v.(Keyed); ok || v == nil {
		return v
	}
	if reflect.ValueOf(v).Kind() == reflect.Pointer {
		return fmt.Sprintf("%T@%p", v, v)
	}
	return v
}

var errUnresolved = errors.New("nested pending value")

var (
	jsonMarshaler = reflect.TypeFor[json.Marshaler]()
	textMarshaler = reflect.TypeFor[encoding.TextMarshaler]()
)

// opaqueTypes caches hasHiddenState per type.
var opaqueTypes sync.Map // reflect.Type -> bool

// canonicalize produces a deterministic JSON representation of v.
// Maps are sorted by key to ensure consistent ordering.
//
// Every non-nil value is written as a [type, value] pair so values that
// encode alike, such as []byte("hi") and "aGk=", stay distinct. The
// elements of []any and map[string]any are tagged the same way, which
// keeps a tagged leaf from reading as a two-element slice.
func canonicalize(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}

	var body []byte
	var err error
	switch val := v.(type) {
	case Keyed:
		body, err = canonicalize(val.KeyPart())
	case Pending:
		return nil, errUnresolved
	case map[string]any:
		body, err = canonicalizeMap(val)
	case []any:
		body, err = canonicalizeSlice(val)
	default:
		if t := reflect.TypeOf(v); opaque(t) {
			return nil, fmt.Errorf("%w: %s", ErrOpaqueValue, t)
		}
		// encoding/json sorts map keys and rejects funcs, chans and NaN.
		body, err = json.Marshal(v)
	}
	if err != nil {
		return nil, err
	}
	return tagged(reflect.TypeOf(v).String(), body)
}

func tagged(typ string, body []byte) ([]byte, error) {
	name, err := json.Marshal(typ)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(name)+len(body)+3)
	out = append(out, '[')
	out = append(out, name...)
	out = append(out, ',')
	out = append(out, body...)
	return append(out, ']'), nil
}

func opaque(t reflect.Type) bool {
	if v, ok := opaqueTypes.Load(t); ok {
		return v.(bool)
	}
	hidden := hasHiddenState(t, map[reflect.Type]bool{})
	opaqueTypes.Store(t, hidden)
	return hidden
}

// hasHiddenState reports whether encoding/json would silently drop part of
// a value of type t. Types that marshal themselves are trusted.
func hasHiddenState(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return false
	}
	seen[t] = true
	if t.Implements(jsonMarshaler) || t.Implements(textMarshaler) {
		return false
	}

	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array, reflect.Map:
		return hasHiddenState(t.Elem(), seen)
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if f.Tag.Get("json") == "-" {
				return true
			}
			if !f.IsExported() && !(f.Anonymous && embedsStruct(f.Type)) {
				return true
			}
			if hasHiddenState(f.Type, seen) {
				return true
			}
		}
	}
	return false
}

// embedsStruct reports whether an embedded field promotes its fields.
func embedsStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}

		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, '}')

	return result, nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}

		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	result = append(result, ']')

	return result, nil
}
