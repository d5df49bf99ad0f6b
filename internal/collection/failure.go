package collection

import "errors"

type FailureKind string

const (
	FailureAuthUnavailable FailureKind = "auth_unavailable"
	FailureRemote          FailureKind = "remote"
	FailureSuperseded      FailureKind = "superseded"
	FailureInternal        FailureKind = "internal"
)

// Failure is the structured reason a store operation did not go through.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// reasoner is implemented by transport errors that carry a message from the server.
type reasoner interface {
	Reason() string
}

// FailureOf classifies a store error. A nil error yields the zero Failure.
func FailureOf(err error) Failure {
	if err == nil {
		return Failure{}
	}

	var f Failure
	switch {
	case errors.Is(err, ErrAuthUnavailable):
		f = Failure{Kind: FailureAuthUnavailable, Message: "sign in to continue"}
	case errors.Is(err, ErrSuperseded):
		f = Failure{Kind: FailureSuperseded, Message: "a newer refresh is in progress"}
	case errors.Is(err, ErrRemote):
		f = Failure{Kind: FailureRemote, Message: "remote service request failed"}
	default:
		return Failure{Kind: FailureInternal, Message: err.Error()}
	}

	var r reasoner
	if errors.As(err, &r) && r.Reason() != "" {
		f.Message = r.Reason()
	}
	return f
}
