// Package result carries adapter outcomes to the handler layer without
// using Go errors for upstream failures.
package result

type Status int

const (
	StatusOK Status = iota
	StatusDegraded
	StatusErr
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDegraded:
		return "degraded"
	default:
		return "error"
	}
}

// Result is Ok(payload), Degraded(payload, reason) or Err(reason).
type Result[T any] struct {
	Status  Status
	Payload T
	Reason  string
}

func Ok[T any](payload T) Result[T] {
	return Result[T]{Status: StatusOK, Payload: payload}
}

func Degraded[T any](payload T, reason string) Result[T] {
	return Result[T]{Status: StatusDegraded, Payload: payload, Reason: reason}
}

func Err[T any](reason string) Result[T] {
	return Result[T]{Status: StatusErr, Reason: reason}
}

func (r Result[T]) IsOK() bool       { return r.Status == StatusOK }
func (r Result[T]) IsDegraded() bool { return r.Status == StatusDegraded }
func (r Result[T]) IsErr() bool      { return r.Status == StatusErr }

// Value returns the payload and whether one is present.
func (r Result[T]) Value() (T, bool) {
	return r.Payload, r.Status != StatusErr
}
