package types

import (
	"errors"
	"fmt"
	"strings"
)

// Ledger operation errors. Every one aborts the call and rolls back all of
// its effects.
var (
	ErrAlreadyInitialized = errors.New("ledger is already initialized")
	ErrAlreadyMigrated    = errors.New("ledger is already migrated")
	ErrUnauthorized       = errors.New("caller is not the administrator")
	ErrBelowMinimum       = errors.New("contribution is below the minimum")
	ErrGoalNotMet         = errors.New("funding goal not met")
	ErrGoalAlreadyMet     = errors.New("funding goal already met")
	ErrNothingToWithdraw  = errors.New("nothing to withdraw")
	ErrNothingToRefund    = errors.New("nothing to refund")
	ErrRefundsDisabled    = errors.New("refunds are disabled")
	ErrTransferFailed     = errors.New("transfer failed")
)

// Lifecycle and dispatch errors.
var (
	ErrNotInitialized       = errors.New("ledger is not initialized")
	ErrNotSupported         = errors.New("operation not supported by this revision")
	ErrUpgradeNotAuthorized = errors.New("upgrade not authorized in this call")
	ErrUnknownLogic         = errors.New("unknown logic reference")
	ErrCorruptState         = errors.New("corrupt ledger state")
)

// Value and identity errors.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAmountOverflow    = errors.New("amount overflow")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidIdentity   = errors.New("invalid identity")
)

// LedgerError describes a rejected ledger call. Kind is one of the sentinel
// errors above, so errors.Is(err, ErrBelowMinimum) matches. Have and Want
// carry the value and threshold involved, when there is one.
type LedgerError struct {
	Op       string
	Kind     error
	Caller   Identity
	Revision Revision
	Have     string
	Want     string

	// Err is the underlying cause, for example a receiver's rejection.
	Err error
}

func (e *LedgerError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Have != "" || e.Want != "" {
		fmt.Fprintf(&b, " (have %s, want %s)", e.Have, e.Want)
	}
	if e.Caller != "" {
		fmt.Fprintf(&b, " [caller %s]", e.Caller)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *LedgerError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the sentinel kind of a ledger error, or nil if err is not
// a *LedgerError.
func KindOf(err error) error {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return nil
}
