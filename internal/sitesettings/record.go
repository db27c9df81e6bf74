package sitesettings

import (
	"fmt"
	"maps"
	"slices"
)

// Well-known setting keys. Records are open-ended; these are the keys read by
// the bravery computations and the state actions.
const (
	KeyShieldsUp                = "shieldsUp"
	KeyNoScript                 = "noScript"
	KeyAdControl                = "adControl"
	KeyCookieControl            = "cookieControl"
	KeyFingerprintingProtection = "fingerprintingProtection"
	KeyRunInsecureContent       = "runInsecureContent"
	KeyLedgerPayments           = "ledgerPayments"
	KeyLedgerPinPercentage      = "ledgerPinPercentage"
	KeyWidevine                 = "widevine"
	KeyFlash                    = "flash"
	KeySkipSync                 = "skipSync"
)

// Record maps setting names to primitive values. A nil Record is a valid empty
// record.
type Record map[string]Value

// Get returns the raw value stored under key.
func (r Record) Get(key string) (Value, bool) {
	v, ok := r[key]
	if !ok || !v.IsValid() {
		return Value{}, false
	}
	return v, true
}

// Bool returns the value under key when it is present and a bool. Values of any
// other kind are treated as absent.
func (r Record) Bool(key string) (bool, bool) {
	v, ok := r[key]
	if !ok {
		return false, false
	}
	return v.AsBool()
}

// String returns the value under key when it is present and a string.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok {
		return "", false
	}
	return v.AsString()
}

// Number returns the value under key when it is present and a number.
func (r Record) Number(key string) (float64, bool) {
	v, ok := r[key]
	if !ok {
		return 0, false
	}
	return v.AsNumber()
}

// Clone returns an independent copy. Cloning nil yields nil.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return maps.Clone(r)
}

// Merge returns a new record holding r's entries overwritten by over's.
func (r Record) Merge(over Record) Record {
	out := make(Record, len(r)+len(over))
	maps.Copy(out, r)
	maps.Copy(out, over)
	return out
}

// With returns a copy of r with key set to v.
func (r Record) With(key string, v Value) Record {
	out := make(Record, len(r)+1)
	maps.Copy(out, r)
	out[key] = v
	return out
}

// Without returns a copy of r without key.
func (r Record) Without(key string) Record {
	out := make(Record, len(r))
	for k, v := range r {
		if k != key {
			out[k] = v
		}
	}
	return out
}

// Keys returns the record's keys in sorted order.
func (r Record) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

// Equal reports whether both records hold the same entries.
func (r Record) Equal(other Record) bool {
	return maps.Equal(r, other)
}

// Map converts the record to plain Go primitives for encoding or templating.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r))
	for k, v := range r {
		out[k] = v.Interface()
	}
	return out
}

// RecordOf builds a Record from plain primitives, such as a decoded JSON object
// or a viper map.
func RecordOf(values map[string]any) (Record, error) {
	out := make(Record, len(values))
	for k, raw := range values {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("setting %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}
