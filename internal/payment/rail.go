// Package payment abstracts the external value-transfer rails: the token
// rail used for token-denominated enrollment and the native ledger used for
// fees. Both move value all-or-nothing; there are no partial transfers.
package payment

import (
	"context"
	"errors"

	"examledger/pkg/domain"
)

// Amount is a quantity of value in the rail's base units.
type Amount uint64

// ErrTransferRejected is the sentinel the rail returns (optionally wrapped)
// when it refuses to move value. Services translate it into the
// transfer_failed domain error.
var ErrTransferRejected = errors.New("transfer rejected")

// Rail is the external fungible-value transfer service. Implementations must
// either complete the movement atomically or return an error leaving both
// balances untouched.
//
// A Rail call may hand control to untrusted code; callers finalize their own
// state before invoking it.
type Rail interface {
	// TransferFrom pulls value from a third party's balance on behalf of
	// the caller. Allowance bookkeeping is the rail's concern, not ours.
	TransferFrom(ctx context.Context, from, to domain.Address, amount Amount) error

	// Transfer moves value out of the caller's own balance.
	Transfer(ctx context.Context, from, to domain.Address, amount Amount) error

	// BalanceOf reports the live balance the rail holds for addr.
	BalanceOf(ctx context.Context, addr domain.Address) Amount

	// Unit is the rail's fixed-point scaling factor. Costs are configured
	// in whole units; transfers move cost*Unit() base units.
	Unit() Amount
}
