package entity

import (
	"bytes"
	"encoding/json"
)

// Optional is a three-state value: absent (not mentioned), null
// (explicitly cleared) or set. Amendment proposals rely on the
// absent/null distinction, so a plain pointer is not enough.
type Optional[T any] struct {
	set   bool
	null  bool
	value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{set: true, value: v}
}

// Null returns an Optional that was explicitly cleared.
func Null[T any]() Optional[T] {
	return Optional[T]{set: true, null: true}
}

// None returns an absent Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// IsAbsent reports whether the value was never mentioned.
func (o Optional[T]) IsAbsent() bool { return !o.set }

// IsNull reports whether the value was explicitly cleared.
func (o Optional[T]) IsNull() bool { return o.set && o.null }

// Get returns the value and true when one is set (not absent, not null).
func (o Optional[T]) Get() (T, bool) {
	if !o.set || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// OrElse returns the value or def when absent/null.
func (o Optional[T]) OrElse(def T) T {
	if v, ok := o.Get(); ok {
		return v
	}
	return def
}

// Or returns o when it holds a value, otherwise other.
func (o Optional[T]) Or(other Optional[T]) Optional[T] {
	if _, ok := o.Get(); ok {
		return o
	}
	return other
}

// IsZero makes absent Optionals disappear under json "omitzero".
func (o Optional[T]) IsZero() bool { return !o.set }

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.set || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Null[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
