// Package drip provides a continuous-payment ledger for Go applications.
//
// Value flows from a sender to a recipient second by second. The ledger
// answers balance queries at any instant and settles partial withdrawals
// and early cancellations exactly. It provides:
//
//   - Streams with an exact per-second rate fixed at creation
//   - Compounding streams whose escrow earns yield from an external
//     interest-bearing asset, split between sender, recipient and operator
//   - An earnings ledger holding the operator's share of that yield
//   - Swaps composing two opposite streams into a continuous exchange
//   - Pluggable storage (memory, PostgreSQL, MongoDB) and lifecycle plugins
//
// # Quick Start
//
//	import (
//	    "github.com/xraph/drip"
//	    "github.com/xraph/drip/gateway/memory"
//	    "github.com/xraph/drip/policy"
//	    memstore "github.com/xraph/drip/store/memory"
//	)
//
//	l := drip.New(memstore.New(),
//	    drip.WithGateway(memory.New()),
//	    drip.WithPolicy(policy.NewStatic(admins, yieldAssets)),
//	    drip.WithSelfAddress("drip"),
//	)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
//	s, err := l.CreateStream(ctx, drip.CreateStreamInput{
//	    Sender:    "alice",
//	    Recipient: "bob",
//	    Token:     "USDC",
//	    Deposit:   drip.Amount(3600),
//	    StartTime: now + 60,
//	    StopTime:  now + 60 + 3600,
//	}, now)
//
// # Time
//
// The ledger never reads a clock. Every time-sensitive call takes now in
// unix seconds, and the caller is expected to supply non-decreasing values.
// Streams past their stop time stay open until drained or canceled.
//
// # Ordering
//
// Every operation commits its records before any asset moves. A gateway
// that calls back into the ledger from a transfer sees the final state.
// When a transfer fails the records are restored and a *TransferError lists
// the transfers that already completed.
//
// # Errors
//
// Rejections are classified by Kind: validation, authorization,
// insufficiency, existence and transfer. Use KindOf or the Is helpers:
//
//	if drip.IsInsufficient(err) { ... }
//
// Receipts (settlements, transfers, earnings withdrawals) carry TypeIDs
// such as stl_01h2xcejqtf2nbrexx3vqjhp41. Streams and swaps use
// store-assigned sequence numbers starting at 1.
package drip
