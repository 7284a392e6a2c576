package swap

import (
	"errors"
)

// OutcomeKind is the closed set of swap results.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeUnknownChain
	OutcomeNoRoute
	OutcomeExecutionFailed
	OutcomePending
	OutcomeExternalFault
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeUnknownChain:
		return "unknown_chain"
	case OutcomeNoRoute:
		return "no_route"
	case OutcomeExecutionFailed:
		return "execution_failed"
	case OutcomePending:
		return "pending"
	case OutcomeExternalFault:
		return "external_fault"
	default:
		return "unknown"
	}
}

// Outcome is the result of one swap attempt. Transaction is set only for
// OutcomeOK; Err is set for every other kind.
type Outcome struct {
	Kind        OutcomeKind
	Request     Request
	Transaction *Transaction
	Err         error
}

// Classify folds a swap result into an Outcome.
func Classify(req Request, tx *Transaction, err error) Outcome {
	out := Outcome{Request: req, Transaction: tx, Err: err}
	switch {
	case err == nil && tx != nil:
		out.Kind = OutcomeOK
	case err == nil:
		out.Kind = OutcomeExecutionFailed
		out.Err = ExecutionFailedError("no transaction", nil)
	case errors.Is(err, ErrUnknownChain):
		out.Kind = OutcomeUnknownChain
	case errors.Is(err, ErrNoRoute):
		out.Kind = OutcomeNoRoute
	case errors.Is(err, ErrExecutionFailed):
		out.Kind = OutcomeExecutionFailed
	case errors.Is(err, ErrExecutionPending):
		out.Kind = OutcomePending
	default:
		out.Kind = OutcomeExternalFault
	}
	if out.Kind != OutcomeOK {
		out.Transaction = nil
	}
	return out
}
