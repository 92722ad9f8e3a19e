// Package id defines the TypeID identifiers carried by ledger receipts.
//
// Settlements, transfers, earnings withdrawals and owed payouts are keyed
// by a prefixed, K-sortable TypeID ("stl_01h2x..."). Streams and swaps use
// store-assigned sequence numbers instead.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix names the record type encoded in an ID.
type Prefix string

const (
	PrefixSettlement         Prefix = "stl"  // withdrawal or cancellation receipt
	PrefixTransfer           Prefix = "xfer" // gateway transfer
	PrefixEarningsWithdrawal Prefix = "ern"  // operator earnings withdrawal
	PrefixPayout             Prefix = "pay"  // push owed after a partial failure
)

// ID wraps a TypeID. The zero value is Nil.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// Aliases document which prefix a field carries.
type (
	SettlementID         = ID
	TransferID           = ID
	EarningsWithdrawalID = ID
	PayoutID             = ID
)

// New generates an ID with prefix. It panics on an invalid prefix.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

func NewSettlementID() ID         { return New(PrefixSettlement) }
func NewTransferID() ID           { return New(PrefixTransfer) }
func NewEarningsWithdrawalID() ID { return New(PrefixEarningsWithdrawal) }
func NewPayoutID() ID             { return New(PrefixPayout) }

// Parse parses any TypeID string.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and rejects IDs of another record type.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

func ParseSettlementID(s string) (ID, error) { return ParseWithPrefix(s, PrefixSettlement) }
func ParsePayoutID(s string) (ID, error)     { return ParseWithPrefix(s, PrefixPayout) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

// Value implements driver.Valuer. Nil stores NULL.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // NULL
	}
	return i.inner.String(), nil
}

// Scan implements sql.Scanner.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		return i.UnmarshalText([]byte(v))
	case []byte:
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
