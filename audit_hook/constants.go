package audithook

// Action constants for audit events.
const (
	// Stream actions
	ActionStreamCreated   = "stream.created"
	ActionStreamWithdrawn = "stream.withdrawn"
	ActionStreamCanceled  = "stream.canceled"
	ActionTransferFailed  = "transfer.failed"

	// Swap actions
	ActionSwapProposed     = "swap.proposed"
	ActionSwapExecuted     = "swap.executed"
	ActionSwapCanceled     = "swap.canceled"
	ActionProposalCanceled = "swap.proposal_canceled"

	// Earnings actions
	ActionFeeUpdated    = "fee.updated"
	ActionEarningsTaken = "earnings.taken"

	// Payout actions
	ActionPayoutClaimed = "payout.claimed"
)

// Resource constants for audit events.
const (
	ResourceStream   = "stream"
	ResourceSwap     = "swap"
	ResourceTransfer = "transfer"
	ResourceFee      = "fee"
	ResourceEarnings = "earnings"
	ResourcePayout   = "payout"
)

// Category constants for audit events.
const (
	CategoryStream  = "stream"
	CategorySwap    = "swap"
	CategoryPayment = "payment"
	CategoryAdmin   = "admin"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePartial = "partial"
)
