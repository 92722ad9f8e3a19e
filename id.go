package drip

import "github.com/xraph/drip/id"

// ID is the identifier type of settlement, transfer and earnings receipts.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix
