package swap

import (
	"strings"

	xerrors "AgentSwap/internal/errors"
)

// Error codes raised by the resolver and the executor.
const (
	CodeUnknownChain     xerrors.Code = "SWAP_UNKNOWN_CHAIN"
	CodeNoRoute          xerrors.Code = "SWAP_NO_ROUTE"
	CodeExecutionFailed  xerrors.Code = "SWAP_EXECUTION_FAILED"
	CodeExecutionPending xerrors.Code = "SWAP_EXECUTION_PENDING"
	CodeExternalFault    xerrors.Code = "SWAP_EXTERNAL_FAULT"
)

func init() {
	xerrors.Register(CodeUnknownChain, xerrors.Attributes{Message: "chain not configured", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeNoRoute, xerrors.Attributes{Message: "No routes found", Severity: xerrors.SeverityInfo})
	xerrors.Register(CodeExecutionFailed, xerrors.Attributes{Message: "Transaction failed", Severity: xerrors.SeverityWarning, Alert: true})
	xerrors.Register(CodeExecutionPending, xerrors.Attributes{Message: "Transaction is still pending", Severity: xerrors.SeverityWarning, Alert: true})
	xerrors.Register(CodeExternalFault, xerrors.Attributes{Message: "external service fault", Severity: xerrors.SeverityWarning})
}

// Sentinels for errors.Is. Matching is by code.
var (
	ErrUnknownChain     = xerrors.New(CodeUnknownChain, "")
	ErrNoRoute          = xerrors.New(CodeNoRoute, "")
	ErrExecutionFailed  = xerrors.New(CodeExecutionFailed, "")
	ErrExecutionPending = xerrors.New(CodeExecutionPending, "")
	ErrExternalFault    = xerrors.New(CodeExternalFault, "")
)

// UnknownChainError reports a chain that is not in the wallet's registry.
func UnknownChainError(chain string, configured []string) error {
	return xerrors.New(CodeUnknownChain,
		"The chain "+chain+" not configured yet. Add the chain or choose one from configured: "+strings.Join(configured, ","),
		xerrors.WithMetadata("chain", chain),
		xerrors.WithMetadata("configured", strings.Join(configured, ",")))
}

// NoRouteFoundError reports an empty route list.
func NoRouteFoundError(chain string) error {
	return xerrors.New(CodeNoRoute, "No routes found", xerrors.WithMetadata("chain", chain))
}

// ExecutionFailedError reports a first step with no process or a FAILED one.
// cause may be nil.
func ExecutionFailedError(reason string, cause error) error {
	opts := []xerrors.Option{}
	if reason != "" {
		opts = append(opts, xerrors.WithMetadata("reason", reason))
	}
	if cause != nil {
		return xerrors.Wrap(CodeExecutionFailed, cause, "Transaction failed", opts...)
	}
	return xerrors.New(CodeExecutionFailed, "Transaction failed", opts...)
}

// ExecutionPendingError reports a step that has not reached DONE.
func ExecutionPendingError(status, hash string) error {
	msg := "Transaction is still pending"
	if hash != "" {
		msg += ": " + hash
	}
	return xerrors.New(CodeExecutionPending, msg,
		xerrors.WithMetadata("status", status),
		xerrors.WithMetadata("hash", hash))
}

func externalFault(cause error, message string) error {
	if cause == nil {
		return xerrors.New(CodeExternalFault, message)
	}
	return xerrors.Wrap(CodeExternalFault, cause, message)
}
