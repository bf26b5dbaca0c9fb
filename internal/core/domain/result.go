package domain

// ResultState is the state of a Result.
type ResultState int

// Result states.
const (
	ResultLoading ResultState = iota
	ResultSuccess
	ResultFailure
)

// Result is a tagged union of loading, success and failure.
type Result[T any] struct {
	State ResultState
	Value T
	Err   error
}

// Loading returns a Result in the loading state.
func Loading[T any]() Result[T] {
	return Result[T]{State: ResultLoading}
}

// Success wraps a value.
func Success[T any](v T) Result[T] {
	return Result[T]{State: ResultSuccess, Value: v}
}

// Failed wraps an error.
func Failed[T any](err error) Result[T] {
	return Result[T]{State: ResultFailure, Err: err}
}

// Get returns the value and error, as a plain call would.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}
