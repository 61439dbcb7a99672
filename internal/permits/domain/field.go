package domain

// Field carries a value together with whether the source row mentioned it at all.
// Present with a zero Value means the source explicitly sent an empty value;
// not Present means the source row had none of the candidate keys.
type Field[T comparable] struct {
	Value   T
	Present bool
}

// Some returns a present field holding v.
func Some[T comparable](v T) Field[T] {
	return Field[T]{Value: v, Present: true}
}

// Empty returns a present field holding the zero value (explicitly cleared).
func Empty[T comparable]() Field[T] {
	return Field[T]{Present: true}
}

// Absent returns a field the source did not mention.
func Absent[T comparable]() Field[T] {
	return Field[T]{}
}

// IsSet reports whether the field is present with a non-zero value.
func (f Field[T]) IsSet() bool {
	var zero T
	return f.Present && f.Value != zero
}

// Ptr returns a pointer to the value, or nil when absent or zero.
func (f Field[T]) Ptr() *T {
	if !f.IsSet() {
		return nil
	}
	v := f.Value
	return &v
}

// Merge applies f over the stored value: absent keeps stored, present-and-zero
// clears it, present-and-set replaces it.
func (f Field[T]) Merge(stored *T) *T {
	if !f.Present {
		return stored
	}
	return f.Ptr()
}
