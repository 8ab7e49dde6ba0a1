package udf

// Loadable distinguishes "not yet loaded" from "loaded but empty" without
// nullable sentinels. The zero value is not loaded.
type Loadable[T any] struct {
	value  T
	loaded bool
}

// Loaded wraps a value that has arrived.
func Loaded[T any](value T) Loadable[T] {
	return Loadable[T]{value: value, loaded: true}
}

// NotLoaded returns the empty state. Equivalent to the zero value; exists so
// a mutation can state its intent explicitly.
func NotLoaded[T any]() Loadable[T] {
	return Loadable[T]{}
}

func (l Loadable[T]) IsLoaded() bool {
	return l.loaded
}

// Value returns the loaded value, or the zero value when not loaded.
func (l Loadable[T]) Value() T {
	return l.value
}

// Or returns the loaded value, or fallback when not loaded.
func (l Loadable[T]) Or(fallback T) T {
	if l.loaded {
		return l.value
	}
	return fallback
}
