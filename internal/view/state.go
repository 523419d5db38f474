// Package view holds the client-side view-state union shared by the
// aggregator and the presentation layer.
package view

// Kind enumerates the states a view can be in.
type Kind int

const (
	KindLoading Kind = iota
	KindError
	KindEmpty
	KindPopulated
)

func (k Kind) String() string {
	switch k {
	case KindLoading:
		return "loading"
	case KindError:
		return "error"
	case KindEmpty:
		return "empty"
	case KindPopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// State is one of Loading, Error(message), Empty or Populated(items).
// The zero value is Loading.
type State[T any] struct {
	err    error
	items  []T
	loaded bool
}

// Loading returns the loading state.
func Loading[T any]() State[T] {
	return State[T]{}
}

// Failed returns the error state.
func Failed[T any](err error) State[T] {
	return State[T]{err: err}
}

// Loaded returns a populated state. An empty slice yields Empty.
func Loaded[T any](items []T) State[T] {
	return State[T]{items: items, loaded: true}
}

// Kind reports which variant s is.
func (s State[T]) Kind() Kind {
	switch {
	case s.err != nil:
		return KindError
	case !s.loaded:
		return KindLoading
	case len(s.items) == 0:
		return KindEmpty
	default:
		return KindPopulated
	}
}

// Err returns the error of an Error state, nil otherwise.
func (s State[T]) Err() error { return s.err }

// Items returns the items of a loaded state, nil otherwise.
func (s State[T]) Items() []T { return s.items }

// Message returns the human-readable error message, or "".
func (s State[T]) Message() string {
	if s.err == nil {
		return ""
	}
	return s.err.Error()
}

// Map converts the items of s with f, keeping its kind.
func Map[T, U any](s State[T], f func(T) U) State[U] {
	out := State[U]{err: s.err, loaded: s.loaded}
	if s.items != nil {
		out.items = make([]U, len(s.items))
		for i, it := range s.items {
			out.items[i] = f(it)
		}
	}
	return out
}
