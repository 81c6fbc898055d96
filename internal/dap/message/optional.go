package message

import "encoding/json"

// Optional distinguishes a JSON field that is absent from one that is
// explicitly present with a null value. encoding/json only calls
// UnmarshalJSON when the key appears in the source object, so Set stays
// false for an absent field and Value stays nil for an explicit null.
//
// Struct fields should be declared as *Optional[T] with `,omitempty` so a
// nil pointer (never touched by UnmarshalJSON) marshals as an absent key;
// a non-nil pointer with Value == nil marshals as JSON null.
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some builds a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null builds a present, explicitly-null Optional.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsNull reports whether the field was present with a JSON null value.
func (o Optional[T]) IsNull() bool {
	return o.Set && o.Value == nil
}

// Get returns the value and whether it is present and non-null.
func (o Optional[T]) Get() (T, bool) {
	if o.Value == nil {
		var zero T
		return zero, false
	}
	return *o.Value, true
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if o.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
