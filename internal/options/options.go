// Package options implements the functional option pattern shared by
// the configurable readers and encoders. Options are generic over the
// configured type, so each package declares its option type as an alias
// and builds options with New or NoError.
package options

// Option configures a value of type T.
type Option[T any] interface {
	apply(T) error
}

// Func wraps a configuration function as an Option.
type Func[T any] struct {
	applyFunc func(T) error
}

func (f *Func[T]) apply(target T) error {
	return f.applyFunc(target)
}

// New builds an option from a function that can reject its argument.
func New[T any](fn func(T) error) *Func[T] {
	return &Func[T]{applyFunc: fn}
}

// NoError builds an option from a function that cannot fail.
func NoError[T any](fn func(T)) *Func[T] {
	return &Func[T]{
		applyFunc: func(target T) error {
			fn(target)

			return nil
		},
	}
}

// Apply runs the options against target in order, stopping at the first
// error.
func Apply[T any](target T, opts ...Option[T]) error {
	for _, opt := range opts {
		if err := opt.apply(target); err != nil {
			return err
		}
	}

	return nil
}
