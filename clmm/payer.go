package clmm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Payer is the core's inverted-control payment surface. The caller of
// mint/swap/flash supplies an implementation; the pool invokes the matching
// callback mid-operation and verifies the resulting balance delta via
// Accounts. Callback data is opaque and passed through unchanged.
//
// Passed as a per-call parameter rather than stored on Pool, per the design
// note that inversion-of-control collaborators must not be smuggled into
// global state.
type Payer interface {
	// MintCallback is invoked after the pool computes the amounts owed for a
	// mint. The implementation must ensure the pool's token balances increase
	// by at least amount0/amount1 before returning.
	MintCallback(amount0, amount1 *big.Int, data []byte) error

	// SwapCallback is invoked once the swap's two legs are known. Exactly one
	// of amount0Delta/amount1Delta is positive (owed to the pool); the
	// implementation must ensure the pool's balance of that token increases
	// by at least that amount before returning. The other is negative or
	// zero and has already been transferred out by the pool.
	SwapCallback(amount0Delta, amount1Delta *big.Int, data []byte) error

	// FlashCallback is invoked after the pool transfers the requested
	// amounts out. The implementation must repay principal plus fee for
	// each borrowed asset before returning.
	FlashCallback(fee0, fee1 *big.Int, data []byte) error
}

// Accounts is the out-of-scope ERC-20-style token interface the spec treats
// as an external collaborator: the pool only ever reads balances and issues
// transfers through it, never manages token ledgers itself.
type Accounts interface {
	BalanceOf(token common.Address) (*big.Int, error)
	Transfer(token common.Address, to common.Address, amount *big.Int) error
}
