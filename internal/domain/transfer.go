package domain

import "github.com/google/uuid"

// TransferPair is the pair of ledger entries produced when one raw
// transaction settles money between two of our own accounts, e.g. a
// credit-card invoice payment. The outflow lands on the paying account and
// the inflow on the receiving account; both carry CategoryTransfer and a
// shared TransferGroupID.
type TransferPair struct {
	Outflow Record
	Inflow  Record
}

// ExpandTransfer replaces a settlement row with its two canonical ledger
// entries. The descriptions and accounts come from configuration, never
// from free-text guessing on the original row. The absolute amount of the
// original record is used on both sides.
func ExpandTransfer(orig Record, fromSource, toSource, description string) (TransferPair, error) {
	amount := orig.Amount.Abs()
	groupID := uuid.NewString()

	out, err := NewRecord(fromSource, orig.Date, description, amount, orig.OriginFile)
	if err != nil {
		return TransferPair{}, err
	}
	in, err := NewRecord(toSource, orig.Date, description, amount.Neg(), orig.OriginFile)
	if err != nil {
		return TransferPair{}, err
	}
	out.TransferGroupID = groupID
	in.TransferGroupID = groupID
	return TransferPair{Outflow: out, Inflow: in}, nil
}
