package entities

import (
	"errors"
	"fmt"
)

// ErrorKind is a stable, machine-readable error category
type ErrorKind string

const (
	ErrorKindInvalidConfiguration       ErrorKind = "invalid_configuration"
	ErrorKindInvalidStatusTransition    ErrorKind = "invalid_status_transition"
	ErrorKindRaffleNotDrawable          ErrorKind = "raffle_not_drawable"
	ErrorKindEntryRejected              ErrorKind = "entry_rejected"
	ErrorKindEmptyPool                  ErrorKind = "empty_pool"
	ErrorKindInsufficientTickets        ErrorKind = "insufficient_tickets"
	ErrorKindRandomnessUnavailable      ErrorKind = "randomness_unavailable"
	ErrorKindPayoutAlreadyProcessed     ErrorKind = "payout_already_processed"
	ErrorKindPayoutInProgress           ErrorKind = "payout_in_progress"
	ErrorKindPayoutNotRetryable         ErrorKind = "payout_not_retryable"
	ErrorKindTransferVerificationFailed ErrorKind = "transfer_verification_failed"
	ErrorKindDuplicateTransaction       ErrorKind = "duplicate_transaction"
	ErrorKindNotFound                   ErrorKind = "not_found"
)

// RaffleError is the single error type returned for rejected engine operations.
// Kind is stable for callers; Reason is meant for humans.
type RaffleError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *RaffleError) Error() string {
	msg := string(e.Kind)
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *RaffleError) Unwrap() error {
	return e.Err
}

// Is matches any RaffleError of the same kind, so the Err* sentinels below
// work with errors.Is regardless of reason.
func (e *RaffleError) Is(target error) bool {
	t, ok := target.(*RaffleError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is
var (
	ErrInvalidConfiguration       = &RaffleError{Kind: ErrorKindInvalidConfiguration}
	ErrInvalidStatusTransition    = &RaffleError{Kind: ErrorKindInvalidStatusTransition}
	ErrRaffleNotDrawable          = &RaffleError{Kind: ErrorKindRaffleNotDrawable}
	ErrEntryRejected              = &RaffleError{Kind: ErrorKindEntryRejected}
	ErrEmptyPool                  = &RaffleError{Kind: ErrorKindEmptyPool}
	ErrInsufficientTickets        = &RaffleError{Kind: ErrorKindInsufficientTickets}
	ErrRandomnessUnavailable      = &RaffleError{Kind: ErrorKindRandomnessUnavailable}
	ErrPayoutAlreadyProcessed     = &RaffleError{Kind: ErrorKindPayoutAlreadyProcessed}
	ErrPayoutInProgress           = &RaffleError{Kind: ErrorKindPayoutInProgress}
	ErrPayoutNotRetryable         = &RaffleError{Kind: ErrorKindPayoutNotRetryable}
	ErrTransferVerificationFailed = &RaffleError{Kind: ErrorKindTransferVerificationFailed}
	ErrDuplicateTransaction       = &RaffleError{Kind: ErrorKindDuplicateTransaction}
	ErrNotFound                   = &RaffleError{Kind: ErrorKindNotFound}
)

// KindOf returns the ErrorKind of err, or "" if err is not a RaffleError
func KindOf(err error) ErrorKind {
	var re *RaffleError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// DrawIneligibility explains why a raffle cannot be drawn
type DrawIneligibility string

const (
	DrawReasonNotEnded     DrawIneligibility = "not ended"
	DrawReasonAlreadyDrawn DrawIneligibility = "already drawn"
	DrawReasonCancelled    DrawIneligibility = "cancelled"
	DrawReasonNoEntries    DrawIneligibility = "no entries"
	DrawReasonNotOpen      DrawIneligibility = "not open"
)

func NewInvalidConfigurationError(format string, args ...any) *RaffleError {
	return &RaffleError{Kind: ErrorKindInvalidConfiguration, Reason: fmt.Sprintf(format, args...)}
}

func NewInvalidStatusTransitionError(current, requested RaffleStatus) *RaffleError {
	return &RaffleError{
		Kind:   ErrorKindInvalidStatusTransition,
		Reason: fmt.Sprintf("cannot transition raffle from %s to %s", current, requested),
	}
}

func NewRaffleNotDrawableError(reason DrawIneligibility) *RaffleError {
	return &RaffleError{Kind: ErrorKindRaffleNotDrawable, Reason: string(reason)}
}

func NewEntryRejectedError(format string, args ...any) *RaffleError {
	return &RaffleError{Kind: ErrorKindEntryRejected, Reason: fmt.Sprintf(format, args...)}
}

func NewEmptyPoolError() *RaffleError {
	return &RaffleError{Kind: ErrorKindEmptyPool, Reason: "ticket pool has no tickets"}
}

func NewInsufficientTicketsError(requested, available int64) *RaffleError {
	return &RaffleError{
		Kind:   ErrorKindInsufficientTickets,
		Reason: fmt.Sprintf("requested %d winners but only %d eligible", requested, available),
	}
}

func NewRandomnessUnavailableError(err error) *RaffleError {
	return &RaffleError{Kind: ErrorKindRandomnessUnavailable, Reason: "could not obtain draw seed", Err: err}
}

func NewPayoutAlreadyProcessedError(winnerID int64) *RaffleError {
	return &RaffleError{
		Kind:   ErrorKindPayoutAlreadyProcessed,
		Reason: fmt.Sprintf("payout for winner %d is already paid", winnerID),
	}
}

// NewTransferLandedError reports a payout attempt recorded as failed whose
// transfer is on chain anyway
func NewTransferLandedError(winnerID int64, attempt int, txID string) *RaffleError {
	return &RaffleError{
		Kind:   ErrorKindPayoutAlreadyProcessed,
		Reason: fmt.Sprintf("attempt %d for winner %d reached the chain as %s", attempt, winnerID, txID),
	}
}

func NewPayoutInProgressError(winnerID int64) *RaffleError {
	return &RaffleError{
		Kind:   ErrorKindPayoutInProgress,
		Reason: fmt.Sprintf("payout for winner %d is already being processed", winnerID),
	}
}

func NewPayoutNotRetryableError(winnerID int64, status PayoutStatus) *RaffleError {
	return &RaffleError{
		Kind:   ErrorKindPayoutNotRetryable,
		Reason: fmt.Sprintf("payout for winner %d is %s", winnerID, status),
	}
}

func NewTransferVerificationError(format string, args ...any) *RaffleError {
	return &RaffleError{Kind: ErrorKindTransferVerificationFailed, Reason: fmt.Sprintf(format, args...)}
}

func NewDuplicateTransactionError(txHash string) *RaffleError {
	return &RaffleError{
		Kind:   ErrorKindDuplicateTransaction,
		Reason: fmt.Sprintf("transfer %s was already used by an entry", txHash),
	}
}

func NewNotFoundError(what string, id any) *RaffleError {
	return &RaffleError{Kind: ErrorKindNotFound, Reason: fmt.Sprintf("%s %v not found", what, id)}
}
