package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/drip/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"SettlementID", id.NewSettlementID, "stl_"},
		{"TransferID", id.NewTransferID, "xfer_"},
		{"EarningsWithdrawalID", id.NewEarningsWithdrawalID, "ern_"},
		{"PayoutID", id.NewPayoutID, "pay_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixSettlement)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixSettlement {
		t.Errorf("expected prefix %q, got %q", id.PrefixSettlement, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"SettlementID", id.NewSettlementID, id.ParseSettlementID},
		{"PayoutID", id.NewPayoutID, id.ParsePayoutID},
		{"any prefix", id.NewTransferID, id.Parse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestCrossTypeRejection(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		parseFn func(string) (id.ID, error)
	}{
		{"ParseSettlementID rejects pay_", id.NewPayoutID().String(), id.ParseSettlementID},
		{"ParsePayoutID rejects xfer_", id.NewTransferID().String(), id.ParsePayoutID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.parseFn(tt.input)
			if err == nil {
				t.Errorf("expected error for cross-type parse of %q, got nil", tt.input)
			}
		})
	}
}

func TestParseEmpty(t *testing.T) {
	_, err := id.Parse("")
	if err == nil {
		t.Error("expected error for empty string")
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
}

func TestScanValue(t *testing.T) {
	original := id.NewPayoutID()
	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var restored id.ID
	if err := restored.Scan(v); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if restored.String() != original.String() {
		t.Errorf("mismatch: %q != %q", restored.String(), original.String())
	}

	var empty id.ID
	if err := empty.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) failed: %v", err)
	}
	if !empty.IsNil() {
		t.Error("expected nil after scanning NULL")
	}
}
