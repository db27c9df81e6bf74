package sitesettings

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrUnsupportedValue is returned when a setting value is not a bool, string or number.
var ErrUnsupportedValue = errors.New("unsupported setting value")

// Kind identifies the primitive type held by a Value.
type Kind uint8

// Supported value kinds. The zero Kind marks an unset Value.
const (
	KindInvalid Kind = iota
	KindBool
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "invalid"
	}
}

// Value is a single primitive setting value.
type Value struct {
	kind Kind
	b    bool
	s    string
	n    float64
}

// Bool wraps a boolean.
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }

// String wraps a string.
func String(v string) Value { return Value{kind: KindString, s: v} }

// Number wraps a number. Integers such as expiry timestamps in milliseconds fit
// exactly up to 2^53.
func Number(v float64) Value { return Value{kind: KindNumber, n: v} }

// ValueOf converts a decoded JSON or config primitive into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case string:
		return String(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return Number(f), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, v)
	}
}

// Kind reports the value's primitive type.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether the value holds a primitive.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// AsBool returns the boolean and true only when the value is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsString returns the string and true only when the value is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsNumber returns the number and true only when the value is a number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// Interface returns the underlying Go primitive, or nil for an invalid Value.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindString:
		return strconv.Quote(v.s)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	default:
		return "<invalid>"
	}
}

// MarshalJSON encodes the value as its bare primitive.
func (v Value) MarshalJSON() ([]byte, error) {
	out, err := json.Marshal(v.Interface())
	if err != nil {
		return nil, fmt.Errorf("marshal setting value: %w", err)
	}
	return out, nil
}

// UnmarshalJSON accepts a bare bool, string or number.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("decode setting value: %w", err)
	}
	parsed, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
