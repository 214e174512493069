package clmm

import "errors"

// Sentinel errors, one per failure code named in the external interface
// table. They are returned as-is, without wrapping, so callers can compare
// them directly or with errors.Is.
var (
	// ErrAlreadyInitialized is AI: initialize called on an already-seeded pool.
	ErrAlreadyInitialized = errors.New("clmm: pool already initialized")

	// ErrTickLowerGreaterOrEqualUpper is TLU: tickLower must be < tickUpper.
	ErrTickLowerGreaterOrEqualUpper = errors.New("clmm: tickLower must be less than tickUpper")
	// ErrTickLowerTooLow is TLM: tickLower below MIN_TICK or not tick-spacing aligned.
	ErrTickLowerTooLow = errors.New("clmm: tickLower below MIN_TICK or not a multiple of tickSpacing")
	// ErrTickUpperTooHigh is TUM: tickUpper above MAX_TICK or not tick-spacing aligned.
	ErrTickUpperTooHigh = errors.New("clmm: tickUpper above MAX_TICK or not a multiple of tickSpacing")

	// ErrLiquidityOverflow is LO: a tick's liquidityGross would exceed
	// maxLiquidityPerTick. tickTable.update also returns it when
	// liquidityGross would drop below zero.
	ErrLiquidityOverflow = errors.New("clmm: liquidity per tick exceeded")

	// ErrAmount0Underpaid is M0: mint callback did not deliver enough of token0.
	ErrAmount0Underpaid = errors.New("clmm: amount0 underpaid")
	// ErrAmount1Underpaid is M1: mint callback did not deliver enough of token1.
	ErrAmount1Underpaid = errors.New("clmm: amount1 underpaid")

	// ErrNoPosition is NP: Position.Update called with ΔL==0 on an empty position.
	ErrNoPosition = errors.New("clmm: position has no liquidity")

	// ErrAmountSpecifiedZero is AS: swap called with amountSpecified == 0.
	ErrAmountSpecifiedZero = errors.New("clmm: amountSpecified is zero")
	// ErrSqrtPriceLimitOutOfBounds is SPL: sqrtPriceLimit on the wrong side of current price, or past the absolute bounds.
	ErrSqrtPriceLimitOutOfBounds = errors.New("clmm: sqrtPriceLimit out of bounds for swap direction")
	// ErrLocked is LOK: reentrant call while the pool lock is held.
	ErrLocked = errors.New("clmm: pool is locked")
	// ErrInsufficientInputAmount is IIA: swap callback did not deliver the owed input leg.
	ErrInsufficientInputAmount = errors.New("clmm: insufficient input amount")

	// ErrNoLiquidity is L: flash requires nonzero active liquidity.
	ErrNoLiquidity = errors.New("clmm: pool has no liquidity")
	// ErrFlashAmount0Underpaid is F0: flash callback underpaid token0 principal+fee.
	ErrFlashAmount0Underpaid = errors.New("clmm: flash amount0 underpaid")
	// ErrFlashAmount1Underpaid is F1: flash callback underpaid token1 principal+fee.
	ErrFlashAmount1Underpaid = errors.New("clmm: flash amount1 underpaid")

	// ErrObservationCardinalityZero is I: observe called before any observation exists.
	ErrObservationCardinalityZero = errors.New("clmm: oracle cardinality is zero")
	// ErrObservationTooOld is OLD: requested observation predates the oldest stored one.
	ErrObservationTooOld = errors.New("clmm: observation older than the oldest recorded")

	// ErrNotOwner guards the owner-gated entrypoints (setFeeProtocol, collectProtocol).
	ErrNotOwner = errors.New("clmm: caller is not the pool owner")
	// ErrInvalidFeeProtocol rejects a feeProtocol value outside {0} ∪ [4,10].
	ErrInvalidFeeProtocol = errors.New("clmm: feeProtocol must be 0 or in [4,10]")

	// ErrTickNotInitialized guards snapshotCumulativesInside against an uninitialized endpoint.
	ErrTickNotInitialized = errors.New("clmm: tick is not initialized")

	// ErrAmountIsZero guards Mint against a non-positive liquidity request
	// and Burn against a negative one; Burn's own amount==0 poke is allowed.
	ErrAmountIsZero = errors.New("clmm: amount is zero")
)
