package drip

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/xraph/drip/payout"
	"github.com/xraph/drip/stream"
)

// Kind classifies why an operation was rejected. Rejections leave ledger
// state unchanged, except a transfer failure after earlier transfers of the
// same operation went through (see TransferError).
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation marks malformed parameters.
	KindValidation
	// KindAuthorization marks a caller not allowed to act.
	KindAuthorization
	// KindInsufficiency marks an amount above what is available.
	KindInsufficiency
	// KindExistence marks an id that was never created or is already settled.
	KindExistence
	// KindConflict marks a record that already exists.
	KindConflict
	// KindTransfer marks a gateway failure.
	KindTransfer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindInsufficiency:
		return "insufficiency"
	case KindExistence:
		return "existence"
	case KindConflict:
		return "conflict"
	case KindTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// kindError is a sentinel tagged with its kind.
type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newError(k Kind, msg string) error { return &kindError{kind: k, msg: msg} }

// Sentinel errors for common failure scenarios.
var (
	// Validation errors
	ErrInvalidRecipient             = newError(KindValidation, "drip: invalid recipient")
	ErrRecipientIsSender            = newError(KindValidation, "drip: recipient is the sender")
	ErrRecipientIsLedger            = newError(KindValidation, "drip: recipient is the ledger")
	ErrInvalidSender                = newError(KindValidation, "drip: invalid sender")
	ErrInvalidToken                 = newError(KindValidation, "drip: invalid token")
	ErrZeroDeposit                  = newError(KindValidation, "drip: deposit is zero")
	ErrInvalidAmount                = newError(KindValidation, "drip: amount must be a positive whole number")
	ErrZeroAmount                   = newError(KindValidation, "drip: amount is zero")
	ErrStartTimeBeforeNow           = newError(KindValidation, "drip: start time before block time")
	ErrStopTimeBeforeStartTime      = newError(KindValidation, "drip: stop time before the start time")
	ErrDepositSmallerThanDuration   = newError(KindValidation, "drip: deposit smaller than time delta")
	ErrDepositNotMultipleOfDuration = newError(KindValidation, "drip: deposit not multiple of time delta")
	ErrInvalidDuration              = newError(KindValidation, "drip: duration must be positive")
	ErrAssetNotApproved             = newError(KindValidation, "drip: asset is not an approved yield asset")
	ErrInvalidSharePercentage       = newError(KindValidation, "drip: shares must each be in [0,100] and sum to 100")
	ErrInvalidExchangeIndex         = newError(KindValidation, "drip: exchange index must be positive")
	ErrInvalidFee                   = newError(KindValidation, "drip: fee must be in [0,100]")

	// Authorization errors
	ErrUnauthorized    = newError(KindAuthorization, "drip: caller is not the sender or the recipient")
	ErrNotCounterparty = newError(KindAuthorization, "drip: caller is not the swap counterparty")
	ErrNotAdmin        = newError(KindAuthorization, "drip: caller is not an admin")
	ErrNotPayee        = newError(KindAuthorization, "drip: caller is not the payee or an admin")

	// Insufficiency errors
	ErrInsufficientBalance  = newError(KindInsufficiency, "drip: amount exceeds the available balance")
	ErrInsufficientEarnings = newError(KindInsufficiency, "drip: amount exceeds the accrued earnings")

	// Existence errors
	ErrStreamNotFound      = newError(KindExistence, "drip: stream not found")
	ErrCompoundingNotFound = newError(KindExistence, "drip: stream is not compounding")
	ErrSwapNotFound        = newError(KindExistence, "drip: swap not found")
	ErrProposalNotFound    = newError(KindExistence, "drip: swap proposal not found")
	ErrPayoutNotFound      = newError(KindExistence, "drip: payout not found")

	// Conflict errors
	ErrAlreadyExists = newError(KindConflict, "drip: already exists")

	// Transfer errors
	ErrTransferFailed = newError(KindTransfer, "drip: asset transfer failed")

	// Store errors
	ErrStoreNotReady   = errors.New("drip: store not ready")
	ErrStoreClosed     = errors.New("drip: store is closed")
	ErrMigrationFailed = errors.New("drip: migration failed")
)

// OpError adds operation context to a sentinel. Zero fields are omitted
// from the message.
type OpError struct {
	Op        string
	StreamID  uint64
	SwapID    uint64
	Amount    decimal.Decimal
	Available decimal.Decimal
	Err       error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	b.WriteString(" (op=")
	b.WriteString(e.Op)
	if e.StreamID != 0 {
		fmt.Fprintf(&b, " stream=%d", e.StreamID)
	}
	if e.SwapID != 0 {
		fmt.Fprintf(&b, " swap=%d", e.SwapID)
	}
	if !e.Amount.IsZero() {
		fmt.Fprintf(&b, " amount=%s", e.Amount)
	}
	if KindOf(e.Err) == KindInsufficiency {
		fmt.Fprintf(&b, " available=%s", e.Available)
	}
	b.WriteString(")")
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

// TransferError reports a gateway failure.
//
// When Completed is empty nothing moved and the ledger restored every record
// the operation touched. Otherwise the operation stands: its records keep
// the settled state, and the failed push plus any push after it are stored
// as Owed payouts to be claimed later.
type TransferError struct {
	Op        string
	Failed    stream.Transfer
	Completed []stream.Transfer
	Owed      []*payout.Payout
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("drip: %s: %s %s of %s for %s failed after %d completed transfers (%d owed): %v",
		e.Op, e.Failed.Direction, e.Failed.Amount, e.Failed.Asset, e.Failed.Party, len(e.Completed), len(e.Owed), e.Err)
}

// Partial reports whether some transfers went through before the failure.
func (e *TransferError) Partial() bool { return len(e.Completed) > 0 }

func (e *TransferError) Unwrap() []error { return []error{ErrTransferFailed, e.Err} }

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsAuthorization reports whether err is an authorization error.
func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }

// IsInsufficient reports whether err is an insufficiency error.
func IsInsufficient(err error) bool { return KindOf(err) == KindInsufficiency }

// IsNotFound reports whether err is an existence error.
func IsNotFound(err error) bool { return KindOf(err) == KindExistence }

// IsConflict reports whether err reports an existing record.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// IsTransfer reports whether err is a gateway transfer failure.
func IsTransfer(err error) bool { return KindOf(err) == KindTransfer }

// IsRetryable reports whether the operation may be repeated as is. A
// partial transfer failure is not retryable: the operation already settled
// and what remains is claimed through its owed payouts.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrStoreNotReady) {
		return true
	}
	var terr *TransferError
	if errors.As(err, &terr) {
		return !terr.Partial()
	}
	return false
}

func opErr(op string, err error) *OpError { return &OpError{Op: op, Err: err} }
