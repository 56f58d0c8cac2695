// Package outcome models a step that either proceeds with a value or
// abstains with a reason. Abstaining is a normal result, not an error:
// it is how the agent declines work it is not confident about.
package outcome

// Outcome is either Proceeded (carrying a T) or Abstained (carrying a
// reason). The zero value is an abstention with no reason.
type Outcome[T any] struct {
	value     T
	proceeded bool
	reason    string
}

// Proceed wraps a value.
func Proceed[T any](v T) Outcome[T] {
	return Outcome[T]{value: v, proceeded: true}
}

// Abstain records why no value was produced.
func Abstain[T any](reason string) Outcome[T] {
	return Outcome[T]{reason: reason}
}

// Proceeded reports whether a value is present.
func (o Outcome[T]) Proceeded() bool { return o.proceeded }

// Value returns the value and whether it is present.
func (o Outcome[T]) Value() (T, bool) { return o.value, o.proceeded }

// Reason is the abstention reason, empty when proceeded.
func (o Outcome[T]) Reason() string { return o.reason }

// Map transforms a proceeded value, passing abstentions through.
func Map[T, U any](o Outcome[T], f func(T) U) Outcome[U] {
	if !o.proceeded {
		return Abstain[U](o.reason)
	}
	return Proceed(f(o.value))
}
