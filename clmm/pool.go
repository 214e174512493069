// Package clmm implements the concentrated-liquidity AMM engine: the
// tick-indexed liquidity book, position fee accounting, the per-step swap
// state machine, and the ring-buffer price/liquidity oracle. The factory,
// the ERC-20 token surface, payment callback implementations, and the
// event/log transport are external collaborators modeled as interfaces
// (Accounts, Payer, EventSink) rather than implemented here.
package clmm

import (
	"errors"
	"math/big"
	"time"

	"github.com/clmmcore/engine/calculator/sqrtpricemath"
	"github.com/clmmcore/engine/calculator/swapmath"
	"github.com/clmmcore/engine/calculator/tickbitmap"
	"github.com/clmmcore/engine/calculator/tickmath"
	"github.com/ethereum/go-ethereum/common"
)

// feeDenominator is the parts-per-million denominator fees are expressed in.
const feeDenominator = 1_000_000

// Slot0 is the pool's packed global state, named after the original
// contract's storage slot 0: the hottest-read fields live together.
type Slot0 struct {
	SqrtPriceX96               *big.Int
	Tick                       int64
	ObservationIndex           uint16
	ObservationCardinality     uint16
	ObservationCardinalityNext uint16
	// FeeProtocol packs two 4-bit denominators: bits [0:4) for token0,
	// [4:8) for token1. Each nibble is either 0 (off) or in [4, 10].
	FeeProtocol uint8
	Unlocked    bool
}

// Pool is a single concentrated-liquidity pool between Token0 and Token1.
// All fields below Slot0 are owned exclusively by the pool; the host must
// not mutate them directly. Every state-mutating method has a *Pool
// receiver and acquires the reentrancy lock on entry, matching §5.
type Pool struct {
	Token0      common.Address
	Token1      common.Address
	Fee         uint32
	TickSpacing int64

	maxLiquidityPerTick *big.Int
	owner               common.Address

	slot0                Slot0
	feeGrowthGlobal0X128 *big.Int
	feeGrowthGlobal1X128 *big.Int
	liquidity            *big.Int
	protocolFees0        *big.Int
	protocolFees1        *big.Int

	ticks     tickTable
	positions positionTable
	bitmap    *tickbitmap.TickBitmap
	oracle    *oracle

	accounts Accounts
	logger   Logger
	metrics  *Metrics
	sink     EventSink
	clock    func() uint32
}

// Option configures a Pool at construction time. The interface method is
// unexported so a caller cannot fabricate one outside this package, the
// same pattern the teacher's chains/ethereum.Dial uses for its Option type.
type Option interface {
	apply(*Pool)
}

type funcOption func(*Pool)

func (f funcOption) apply(p *Pool) { f(p) }

func newOption(f func(*Pool)) Option { return funcOption(f) }

// WithLogger overrides the default no-op Logger.
func WithLogger(l Logger) Option {
	return newOption(func(p *Pool) { p.logger = l })
}

// WithMetrics attaches a Metrics set built by NewMetrics.
func WithMetrics(m *Metrics) Option {
	return newOption(func(p *Pool) { p.metrics = m })
}

// WithEventSink attaches an EventSink.
func WithEventSink(s EventSink) Option {
	return newOption(func(p *Pool) { p.sink = s })
}

// WithClock overrides the wall-clock timestamp source. Tests use this to
// drive the oracle deterministically instead of through time.Now.
func WithClock(c func() uint32) Option {
	return newOption(func(p *Pool) { p.clock = c })
}

// NewPool constructs an inert pool: Initialize must be called before any
// other state-mutating operation will pass the reentrancy lock.
func NewPool(token0, token1 common.Address, fee uint32, tickSpacing int64, owner common.Address, accounts Accounts, opts ...Option) (*Pool, error) {
	if tickSpacing <= 0 {
		return nil, errors.New("clmm: tickSpacing must be positive")
	}

	p := &Pool{
		Token0:               token0,
		Token1:               token1,
		Fee:                  fee,
		TickSpacing:          tickSpacing,
		maxLiquidityPerTick:  maxLiquidityPerTick(tickSpacing),
		owner:                owner,
		feeGrowthGlobal0X128: new(big.Int),
		feeGrowthGlobal1X128: new(big.Int),
		liquidity:            new(big.Int),
		protocolFees0:        new(big.Int),
		protocolFees1:        new(big.Int),
		ticks:                make(tickTable),
		positions:            make(positionTable),
		bitmap:               tickbitmap.New(),
		oracle:               newOracle(),
		accounts:             accounts,
		logger:               noopLogger{},
	}
	for _, opt := range opts {
		opt.apply(p)
	}
	return p, nil
}

func (p *Pool) now() uint32 {
	if p.clock != nil {
		return p.clock()
	}
	return uint32(time.Now().Unix())
}

func (p *Pool) lock() error {
	if !p.slot0.Unlocked {
		return ErrLocked
	}
	p.slot0.Unlocked = false
	return nil
}

func (p *Pool) unlock() { p.slot0.Unlocked = true }

// feeProtocolFor returns the protocol fee denominator for the asset that
// accrues fees when the swap direction is zeroForOne (token0) or not (token1).
func (p *Pool) feeProtocolFor(zeroForOne bool) uint8 {
	if zeroForOne {
		return p.slot0.FeeProtocol & 0x0F
	}
	return p.slot0.FeeProtocol >> 4
}

func (p *Pool) currentOracleAccumulators() (tickCumulative, secondsPerLiquidityCumulativeX128 *big.Int, err error) {
	return p.oracle.observeSingle(p.now(), 0, p.slot0.Tick, p.slot0.ObservationIndex, p.liquidity, p.slot0.ObservationCardinality)
}

func (p *Pool) writeOracleObservation(tick int64, liquidity *big.Int) {
	idx, card := p.oracle.write(p.slot0.ObservationIndex, p.now(), tick, liquidity, p.slot0.ObservationCardinality, p.slot0.ObservationCardinalityNext)
	p.slot0.ObservationIndex = idx
	p.slot0.ObservationCardinality = card
	p.metrics.setOracleCardinality(float64(card))
}

func (p *Pool) validateTickRange(tickLower, tickUpper int64) error {
	if tickLower >= tickUpper {
		return ErrTickLowerGreaterOrEqualUpper
	}
	if tickLower < tickmath.MIN_TICK || tickLower%p.TickSpacing != 0 {
		return ErrTickLowerTooLow
	}
	if tickUpper > tickmath.MAX_TICK || tickUpper%p.TickSpacing != 0 {
		return ErrTickUpperTooHigh
	}
	return nil
}

// Initialize seeds Slot0 and the oracle's first observation. It is the only
// operation callable while Unlocked is still false.
func (p *Pool) Initialize(sqrtPriceX96 *big.Int) error {
	if p.slot0.SqrtPriceX96 != nil {
		return ErrAlreadyInitialized
	}

	tick, err := tickmath.GetTickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}

	index, cardinality, cardinalityNext := p.oracle.initialize(p.now(), tick)

	p.slot0 = Slot0{
		SqrtPriceX96:               new(big.Int).Set(sqrtPriceX96),
		Tick:                       tick,
		ObservationIndex:           index,
		ObservationCardinality:     cardinality,
		ObservationCardinalityNext: cardinalityNext,
		Unlocked:                   true,
	}

	p.logger.Info("pool initialized", "sqrtPriceX96", sqrtPriceX96.String(), "tick", tick)
	p.emit(InitializeEvent{SqrtPriceX96: new(big.Int).Set(sqrtPriceX96), Tick: tick})
	return nil
}

func signedAmount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidityDelta *big.Int) (*big.Int, error) {
	absDelta := new(big.Int).Abs(liquidityDelta)
	dest := new(big.Int)
	if err := sqrtpricemath.GetAmount0Delta(dest, sqrtRatioAX96, sqrtRatioBX96, absDelta, liquidityDelta.Sign() > 0); err != nil {
		return nil, err
	}
	if liquidityDelta.Sign() < 0 {
		dest.Neg(dest)
	}
	return dest, nil
}

func signedAmount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidityDelta *big.Int) *big.Int {
	absDelta := new(big.Int).Abs(liquidityDelta)
	dest := new(big.Int)
	sqrtpricemath.GetAmount1Delta(dest, sqrtRatioAX96, sqrtRatioBX96, absDelta, liquidityDelta.Sign() > 0)
	if liquidityDelta.Sign() < 0 {
		dest.Neg(dest)
	}
	return dest
}

// _updatePosition applies liquidityDelta to both tick endpoints, flips the
// bitmap for any tick that transitioned, recomputes feeGrowthInside, and
// folds the result into the position table, clearing any tick that flipped
// off on a burn.
func (p *Pool) _updatePosition(owner common.Address, tickLower, tickUpper int64, liquidityDelta *big.Int, tick int64) error {
	tickCumulative, secondsPerLiquidityCumulativeX128, err := p.currentOracleAccumulators()
	if err != nil {
		return err
	}
	now := p.now()

	flippedLower, err := p.ticks.update(
		tickLower, tick, liquidityDelta,
		p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128,
		secondsPerLiquidityCumulativeX128, tickCumulative, now,
		false, p.maxLiquidityPerTick,
	)
	if err != nil {
		return err
	}
	flippedUpper, err := p.ticks.update(
		tickUpper, tick, liquidityDelta,
		p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128,
		secondsPerLiquidityCumulativeX128, tickCumulative, now,
		true, p.maxLiquidityPerTick,
	)
	if err != nil {
		return err
	}

	if flippedLower {
		if err := p.bitmap.FlipTick(tickLower, p.TickSpacing); err != nil {
			return err
		}
	}
	if flippedUpper {
		if err := p.bitmap.FlipTick(tickUpper, p.TickSpacing); err != nil {
			return err
		}
	}

	inside0, inside1 := p.ticks.getFeeGrowthInside(tickLower, tickUpper, tick, p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128)
	key := PositionKey{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}
	if err := p.positions.update(key, liquidityDelta, inside0, inside1); err != nil {
		return err
	}

	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.ticks.clear(tickLower)
		}
		if flippedUpper {
			p.ticks.clear(tickUpper)
		}
	}

	return nil
}

// _modifyPosition is the shared core of Mint and Burn: update the tick and
// position tables, then compute owed amounts from the current price's
// position relative to the range.
func (p *Pool) _modifyPosition(owner common.Address, tickLower, tickUpper int64, liquidityDelta *big.Int) (amount0, amount1 *big.Int, err error) {
	tick := p.slot0.Tick

	if err := p._updatePosition(owner, tickLower, tickUpper, liquidityDelta, tick); err != nil {
		return nil, nil, err
	}

	sqrtLower := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(sqrtLower, tickLower); err != nil {
		return nil, nil, err
	}
	sqrtUpper := new(big.Int)
	if err := tickmath.GetSqrtRatioAtTick(sqrtUpper, tickUpper); err != nil {
		return nil, nil, err
	}

	switch {
	case tick < tickLower:
		amount0, err = signedAmount0Delta(sqrtLower, sqrtUpper, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
		amount1 = new(big.Int)

	case tick < tickUpper:
		amount0, err = signedAmount0Delta(p.slot0.SqrtPriceX96, sqrtUpper, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
		amount1 = signedAmount1Delta(sqrtLower, p.slot0.SqrtPriceX96, liquidityDelta)

		liquidityNext := new(big.Int)
		if err := addLiquidityDelta(liquidityNext, p.liquidity, liquidityDelta); err != nil {
			return nil, nil, err
		}
		p.writeOracleObservation(tick, p.liquidity)
		p.liquidity.Set(liquidityNext)

	default:
		amount0 = new(big.Int)
		amount1 = signedAmount1Delta(sqrtLower, sqrtUpper, liquidityDelta)
	}

	return amount0, amount1, nil
}

// Mint adds amount liquidity to [tickLower, tickUpper] for recipient's
// position, invoking payer's MintCallback to collect the amounts owed.
func (p *Pool) Mint(recipient common.Address, tickLower, tickUpper int64, amount *big.Int, payer Payer, data []byte) (amount0, amount1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()

	if amount == nil || amount.Sign() <= 0 {
		return nil, nil, ErrAmountIsZero
	}
	if err := p.validateTickRange(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}

	amount0, amount1, err = p._modifyPosition(recipient, tickLower, tickUpper, new(big.Int).Set(amount))
	if err != nil {
		return nil, nil, err
	}

	var bal0Before, bal1Before *big.Int
	if amount0.Sign() > 0 {
		if bal0Before, err = p.accounts.BalanceOf(p.Token0); err != nil {
			return nil, nil, err
		}
	}
	if amount1.Sign() > 0 {
		if bal1Before, err = p.accounts.BalanceOf(p.Token1); err != nil {
			return nil, nil, err
		}
	}

	if err := payer.MintCallback(amount0, amount1, data); err != nil {
		return nil, nil, err
	}

	if amount0.Sign() > 0 {
		bal0After, err := p.accounts.BalanceOf(p.Token0)
		if err != nil {
			return nil, nil, err
		}
		if bal0After.Cmp(new(big.Int).Add(bal0Before, amount0)) < 0 {
			return nil, nil, ErrAmount0Underpaid
		}
	}
	if amount1.Sign() > 0 {
		bal1After, err := p.accounts.BalanceOf(p.Token1)
		if err != nil {
			return nil, nil, err
		}
		if bal1After.Cmp(new(big.Int).Add(bal1Before, amount1)) < 0 {
			return nil, nil, ErrAmount1Underpaid
		}
	}

	p.metrics.mint()
	p.logger.Debug("mint", "tickLower", tickLower, "tickUpper", tickUpper, "amount", amount.String())
	p.emit(MintEvent{Recipient: recipient, TickLower: tickLower, TickUpper: tickUpper, Amount: new(big.Int).Set(amount), Amount0: amount0, Amount1: amount1})
	return amount0, amount1, nil
}

// Burn removes amount liquidity from caller's position, crediting the
// resulting token amounts to tokensOwed rather than transferring them;
// Collect performs the actual transfer.
func (p *Pool) Burn(owner common.Address, tickLower, tickUpper int64, amount *big.Int) (amount0, amount1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()

	if amount == nil || amount.Sign() < 0 {
		return nil, nil, ErrAmountIsZero
	}
	if err := p.validateTickRange(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}

	neg := new(big.Int).Neg(amount)
	a0, a1, err := p._modifyPosition(owner, tickLower, tickUpper, neg)
	if err != nil {
		return nil, nil, err
	}
	amount0 = new(big.Int).Neg(a0)
	amount1 = new(big.Int).Neg(a1)

	if amount0.Sign() > 0 || amount1.Sign() > 0 {
		key := PositionKey{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}
		pos := p.positions.getOrCreate(key)
		pos.TokensOwed0.Add(pos.TokensOwed0, amount0)
		pos.TokensOwed1.Add(pos.TokensOwed1, amount1)
	}

	p.metrics.burn()
	p.logger.Debug("burn", "tickLower", tickLower, "tickUpper", tickUpper, "amount", amount.String())
	p.emit(BurnEvent{Owner: owner, TickLower: tickLower, TickUpper: tickUpper, Amount: new(big.Int).Set(amount), Amount0: amount0, Amount1: amount1})
	return amount0, amount1, nil
}

// Collect transfers up to amount{0,1}Req of a position's accrued
// tokensOwed to recipient, capping silently at what is actually owed.
func (p *Pool) Collect(recipient, owner common.Address, tickLower, tickUpper int64, amount0Req, amount1Req *big.Int) (amount0, amount1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()

	key := PositionKey{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}
	pos := p.positions.getOrCreate(key)

	amount0 = new(big.Int).Set(amount0Req)
	if amount0.Cmp(pos.TokensOwed0) > 0 {
		amount0.Set(pos.TokensOwed0)
	}
	amount1 = new(big.Int).Set(amount1Req)
	if amount1.Cmp(pos.TokensOwed1) > 0 {
		amount1.Set(pos.TokensOwed1)
	}

	if amount0.Sign() > 0 {
		pos.TokensOwed0.Sub(pos.TokensOwed0, amount0)
		if err := p.accounts.Transfer(p.Token0, recipient, amount0); err != nil {
			return nil, nil, err
		}
	}
	if amount1.Sign() > 0 {
		pos.TokensOwed1.Sub(pos.TokensOwed1, amount1)
		if err := p.accounts.Transfer(p.Token1, recipient, amount1); err != nil {
			return nil, nil, err
		}
	}

	p.metrics.collect()
	p.emit(CollectEvent{Owner: owner, Recipient: recipient, TickLower: tickLower, TickUpper: tickUpper, Amount0: amount0, Amount1: amount1})
	return amount0, amount1, nil
}

// swapLoopState is the per-swap scratch state threaded through the loop
// body, mirroring the teacher's swapState in calculator.go.
type swapLoopState struct {
	amountSpecifiedRemaining *big.Int
	amountCalculated         *big.Int
	sqrtPriceX96             *big.Int
	tick                     int64
	feeGrowthGlobalX128      *big.Int
	protocolFee              *big.Int
	liquidity                *big.Int
}

// Swap exchanges token0 for token1 (zeroForOne) or the reverse, stepping
// through tick boundaries via the bitmap until amountSpecified is exhausted
// or sqrtPriceLimitX96 is reached.
func (p *Pool) Swap(recipient common.Address, zeroForOne bool, amountSpecified *big.Int, sqrtPriceLimitX96 *big.Int, payer Payer, data []byte) (amount0, amount1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()

	if amountSpecified == nil || amountSpecified.Sign() == 0 {
		return nil, nil, ErrAmountSpecifiedZero
	}

	slot0Start := p.slot0
	if zeroForOne {
		if sqrtPriceLimitX96.Cmp(slot0Start.SqrtPriceX96) >= 0 || sqrtPriceLimitX96.Cmp(tickmath.MIN_SQRT_RATIO) <= 0 {
			return nil, nil, ErrSqrtPriceLimitOutOfBounds
		}
	} else {
		if sqrtPriceLimitX96.Cmp(slot0Start.SqrtPriceX96) <= 0 || sqrtPriceLimitX96.Cmp(tickmath.MAX_SQRT_RATIO) >= 0 {
			return nil, nil, ErrSqrtPriceLimitOutOfBounds
		}
	}

	exactInput := amountSpecified.Sign() > 0

	state := &swapLoopState{
		amountSpecifiedRemaining: new(big.Int).Set(amountSpecified),
		amountCalculated:         new(big.Int),
		sqrtPriceX96:             new(big.Int).Set(slot0Start.SqrtPriceX96),
		tick:                     slot0Start.Tick,
		feeGrowthGlobalX128:      new(big.Int),
		protocolFee:              new(big.Int),
		liquidity:                new(big.Int).Set(p.liquidity),
	}
	if zeroForOne {
		state.feeGrowthGlobalX128.Set(p.feeGrowthGlobal0X128)
	} else {
		state.feeGrowthGlobalX128.Set(p.feeGrowthGlobal1X128)
	}

	feeProtocol := p.feeProtocolFor(zeroForOne)
	feePips := big.NewInt(int64(p.Fee))

	tickCrossedFirst := true
	var cachedTickCumulative, cachedSecondsPerLiquidityX128 *big.Int

	for state.amountSpecifiedRemaining.Sign() != 0 && state.sqrtPriceX96.Cmp(sqrtPriceLimitX96) != 0 {
		stepSqrtPriceStart := new(big.Int).Set(state.sqrtPriceX96)

		tickNext, initialized := p.bitmap.NextInitializedTickWithinOneWord(state.tick, p.TickSpacing, zeroForOne)
		if tickNext < tickmath.MIN_TICK {
			tickNext = tickmath.MIN_TICK
		} else if tickNext > tickmath.MAX_TICK {
			tickNext = tickmath.MAX_TICK
		}

		sqrtPriceNextX96 := new(big.Int)
		if err := tickmath.GetSqrtRatioAtTick(sqrtPriceNextX96, tickNext); err != nil {
			return nil, nil, err
		}

		target := new(big.Int)
		if (zeroForOne && sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) < 0) ||
			(!zeroForOne && sqrtPriceNextX96.Cmp(sqrtPriceLimitX96) > 0) {
			target.Set(sqrtPriceLimitX96)
		} else {
			target.Set(sqrtPriceNextX96)
		}

		nextSqrtPrice := new(big.Int)
		stepAmountIn := new(big.Int)
		stepAmountOut := new(big.Int)
		stepFeeAmount := new(big.Int)
		if err := swapmath.ComputeSwapStep(
			nextSqrtPrice, stepAmountIn, stepAmountOut, stepFeeAmount,
			state.sqrtPriceX96, target, state.liquidity, state.amountSpecifiedRemaining, feePips,
		); err != nil {
			return nil, nil, err
		}
		state.sqrtPriceX96.Set(nextSqrtPrice)

		if exactInput {
			state.amountSpecifiedRemaining.Sub(state.amountSpecifiedRemaining, new(big.Int).Add(stepAmountIn, stepFeeAmount))
			state.amountCalculated.Sub(state.amountCalculated, stepAmountOut)
		} else {
			state.amountSpecifiedRemaining.Add(state.amountSpecifiedRemaining, stepAmountOut)
			state.amountCalculated.Add(state.amountCalculated, new(big.Int).Add(stepAmountIn, stepFeeAmount))
		}

		if feeProtocol > 0 {
			delta := new(big.Int).Div(stepFeeAmount, big.NewInt(int64(feeProtocol)))
			stepFeeAmount.Sub(stepFeeAmount, delta)
			state.protocolFee.Add(state.protocolFee, delta)
		}

		if state.liquidity.Sign() > 0 {
			growth := new(big.Int).Lsh(stepFeeAmount, 128)
			growth.Div(growth, state.liquidity)
			state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, growth)
		}

		if state.sqrtPriceX96.Cmp(sqrtPriceNextX96) == 0 {
			if initialized {
				if tickCrossedFirst {
					cachedTickCumulative, cachedSecondsPerLiquidityX128, err = p.currentOracleAccumulators()
					if err != nil {
						return nil, nil, err
					}
					tickCrossedFirst = false
				}

				var feeGrowth0, feeGrowth1 *big.Int
				if zeroForOne {
					feeGrowth0, feeGrowth1 = state.feeGrowthGlobalX128, p.feeGrowthGlobal1X128
				} else {
					feeGrowth0, feeGrowth1 = p.feeGrowthGlobal0X128, state.feeGrowthGlobalX128
				}

				liquidityNet := p.ticks.cross(tickNext, feeGrowth0, feeGrowth1, cachedSecondsPerLiquidityX128, cachedTickCumulative, p.now())
				if zeroForOne {
					liquidityNet.Neg(liquidityNet)
				}
				if err := addLiquidityDelta(state.liquidity, state.liquidity, liquidityNet); err != nil {
					return nil, nil, err
				}
			}

			if zeroForOne {
				state.tick = tickNext - 1
			} else {
				state.tick = tickNext
			}
		} else if state.sqrtPriceX96.Cmp(stepSqrtPriceStart) != 0 {
			state.tick, err = tickmath.GetTickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	if state.tick != slot0Start.Tick {
		p.writeOracleObservation(slot0Start.Tick, p.liquidity)
		p.slot0.SqrtPriceX96 = new(big.Int).Set(state.sqrtPriceX96)
		p.slot0.Tick = state.tick
	} else {
		p.slot0.SqrtPriceX96 = new(big.Int).Set(state.sqrtPriceX96)
	}

	if p.liquidity.Cmp(state.liquidity) != 0 {
		p.liquidity.Set(state.liquidity)
	}

	if zeroForOne {
		p.feeGrowthGlobal0X128.Set(state.feeGrowthGlobalX128)
		if state.protocolFee.Sign() > 0 {
			p.protocolFees0.Add(p.protocolFees0, state.protocolFee)
		}
	} else {
		p.feeGrowthGlobal1X128.Set(state.feeGrowthGlobalX128)
		if state.protocolFee.Sign() > 0 {
			p.protocolFees1.Add(p.protocolFees1, state.protocolFee)
		}
	}

	if zeroForOne == exactInput {
		amount0 = new(big.Int).Sub(amountSpecified, state.amountSpecifiedRemaining)
		amount1 = new(big.Int).Set(state.amountCalculated)
	} else {
		amount0 = new(big.Int).Set(state.amountCalculated)
		amount1 = new(big.Int).Sub(amountSpecified, state.amountSpecifiedRemaining)
	}

	if zeroForOne {
		if amount1.Sign() < 0 {
			if err := p.accounts.Transfer(p.Token1, recipient, new(big.Int).Neg(amount1)); err != nil {
				return nil, nil, err
			}
		}
		bal0Before, err := p.accounts.BalanceOf(p.Token0)
		if err != nil {
			return nil, nil, err
		}
		if err := payer.SwapCallback(amount0, amount1, data); err != nil {
			return nil, nil, err
		}
		bal0After, err := p.accounts.BalanceOf(p.Token0)
		if err != nil {
			return nil, nil, err
		}
		if new(big.Int).Sub(bal0After, bal0Before).Cmp(amount0) < 0 {
			return nil, nil, ErrInsufficientInputAmount
		}
	} else {
		if amount0.Sign() < 0 {
			if err := p.accounts.Transfer(p.Token0, recipient, new(big.Int).Neg(amount0)); err != nil {
				return nil, nil, err
			}
		}
		bal1Before, err := p.accounts.BalanceOf(p.Token1)
		if err != nil {
			return nil, nil, err
		}
		if err := payer.SwapCallback(amount0, amount1, data); err != nil {
			return nil, nil, err
		}
		bal1After, err := p.accounts.BalanceOf(p.Token1)
		if err != nil {
			return nil, nil, err
		}
		if new(big.Int).Sub(bal1After, bal1Before).Cmp(amount1) < 0 {
			return nil, nil, ErrInsufficientInputAmount
		}
	}

	p.metrics.swap(zeroForOne)
	liquidityFloat, _ := new(big.Float).SetInt(p.liquidity).Float64()
	p.metrics.setActiveLiquidity(liquidityFloat)
	p.logger.Debug("swap", "zeroForOne", zeroForOne, "amount0", amount0.String(), "amount1", amount1.String(), "tick", p.slot0.Tick)
	p.emit(SwapEvent{
		Recipient:    recipient,
		Amount0:      amount0,
		Amount1:      amount1,
		SqrtPriceX96: new(big.Int).Set(p.slot0.SqrtPriceX96),
		Liquidity:    new(big.Int).Set(p.liquidity),
		Tick:         p.slot0.Tick,
	})
	return amount0, amount1, nil
}

func ceilMulDiv(amount *big.Int, numerator uint32, denominator int64) *big.Int {
	product := new(big.Int).Mul(amount, big.NewInt(int64(numerator)))
	q, r := new(big.Int).QuoRem(product, big.NewInt(denominator), new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// Flash lends amount0/amount1 out of the pool's balance within a single
// call, requiring principal plus a fee-ppm surcharge to be repaid before
// FlashCallback returns.
func (p *Pool) Flash(recipient common.Address, amount0, amount1 *big.Int, payer Payer, data []byte) (paid0, paid1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()

	if p.liquidity.Sign() == 0 {
		return nil, nil, ErrNoLiquidity
	}

	fee0 := ceilMulDiv(amount0, p.Fee, feeDenominator)
	fee1 := ceilMulDiv(amount1, p.Fee, feeDenominator)

	bal0Before, err := p.accounts.BalanceOf(p.Token0)
	if err != nil {
		return nil, nil, err
	}
	bal1Before, err := p.accounts.BalanceOf(p.Token1)
	if err != nil {
		return nil, nil, err
	}

	if amount0.Sign() > 0 {
		if err := p.accounts.Transfer(p.Token0, recipient, amount0); err != nil {
			return nil, nil, err
		}
	}
	if amount1.Sign() > 0 {
		if err := p.accounts.Transfer(p.Token1, recipient, amount1); err != nil {
			return nil, nil, err
		}
	}

	if err := payer.FlashCallback(fee0, fee1, data); err != nil {
		return nil, nil, err
	}

	bal0After, err := p.accounts.BalanceOf(p.Token0)
	if err != nil {
		return nil, nil, err
	}
	bal1After, err := p.accounts.BalanceOf(p.Token1)
	if err != nil {
		return nil, nil, err
	}

	if bal0After.Cmp(new(big.Int).Add(bal0Before, fee0)) < 0 {
		return nil, nil, ErrFlashAmount0Underpaid
	}
	if bal1After.Cmp(new(big.Int).Add(bal1Before, fee1)) < 0 {
		return nil, nil, ErrFlashAmount1Underpaid
	}

	paid0 = new(big.Int).Sub(bal0After, bal0Before)
	paid1 = new(big.Int).Sub(bal1After, bal1Before)

	if paid0.Sign() > 0 {
		protocolFee0 := new(big.Int)
		if pf := p.feeProtocolFor(true); pf != 0 {
			protocolFee0.Div(paid0, big.NewInt(int64(pf)))
			p.protocolFees0.Add(p.protocolFees0, protocolFee0)
		}
		growth := new(big.Int).Sub(paid0, protocolFee0)
		growth.Lsh(growth, 128)
		growth.Div(growth, p.liquidity)
		p.feeGrowthGlobal0X128.Add(p.feeGrowthGlobal0X128, growth)
	}
	if paid1.Sign() > 0 {
		protocolFee1 := new(big.Int)
		if pf := p.feeProtocolFor(false); pf != 0 {
			protocolFee1.Div(paid1, big.NewInt(int64(pf)))
			p.protocolFees1.Add(p.protocolFees1, protocolFee1)
		}
		growth := new(big.Int).Sub(paid1, protocolFee1)
		growth.Lsh(growth, 128)
		growth.Div(growth, p.liquidity)
		p.feeGrowthGlobal1X128.Add(p.feeGrowthGlobal1X128, growth)
	}

	p.metrics.flash()
	p.emit(FlashEvent{Recipient: recipient, Amount0: amount0, Amount1: amount1, Paid0: paid0, Paid1: paid1})
	return paid0, paid1, nil
}

// SetFeeProtocol updates the protocol fee denominators. owner must match
// the pool's configured Owner.
func (p *Pool) SetFeeProtocol(owner common.Address, feeProtocol0, feeProtocol1 uint8) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	if owner != p.owner {
		return ErrNotOwner
	}
	if !(feeProtocol0 == 0 || (feeProtocol0 >= 4 && feeProtocol0 <= 10)) {
		return ErrInvalidFeeProtocol
	}
	if !(feeProtocol1 == 0 || (feeProtocol1 >= 4 && feeProtocol1 <= 10)) {
		return ErrInvalidFeeProtocol
	}

	old0 := p.slot0.FeeProtocol & 0x0F
	old1 := p.slot0.FeeProtocol >> 4
	p.slot0.FeeProtocol = feeProtocol0 | (feeProtocol1 << 4)

	p.emit(SetFeeProtocolEvent{FeeProtocol0Old: old0, FeeProtocol1Old: old1, FeeProtocol0New: feeProtocol0, FeeProtocol1New: feeProtocol1})
	return nil
}

// CollectProtocol transfers up to amount{0,1}Req of accrued protocol fees
// to recipient. owner must match the pool's configured Owner.
func (p *Pool) CollectProtocol(owner, recipient common.Address, amount0Req, amount1Req *big.Int) (amount0, amount1 *big.Int, err error) {
	if err := p.lock(); err != nil {
		return nil, nil, err
	}
	defer p.unlock()

	if owner != p.owner {
		return nil, nil, ErrNotOwner
	}

	amount0 = new(big.Int).Set(amount0Req)
	if amount0.Cmp(p.protocolFees0) > 0 {
		amount0.Set(p.protocolFees0)
	}
	amount1 = new(big.Int).Set(amount1Req)
	if amount1.Cmp(p.protocolFees1) > 0 {
		amount1.Set(p.protocolFees1)
	}

	if amount0.Sign() > 0 {
		p.protocolFees0.Sub(p.protocolFees0, amount0)
		if err := p.accounts.Transfer(p.Token0, recipient, amount0); err != nil {
			return nil, nil, err
		}
	}
	if amount1.Sign() > 0 {
		p.protocolFees1.Sub(p.protocolFees1, amount1)
		if err := p.accounts.Transfer(p.Token1, recipient, amount1); err != nil {
			return nil, nil, err
		}
	}

	p.emit(CollectProtocolEvent{Recipient: recipient, Amount0: amount0, Amount1: amount1})
	return amount0, amount1, nil
}

// IncreaseObservationCardinalityNext reserves additional oracle ring
// capacity; it is a no-op if observationCardinalityNext is not greater than
// the current reservation.
func (p *Pool) IncreaseObservationCardinalityNext(observationCardinalityNext uint16) error {
	if err := p.lock(); err != nil {
		return err
	}
	defer p.unlock()

	old := p.slot0.ObservationCardinalityNext
	next := p.oracle.grow(old, observationCardinalityNext)
	if next > old {
		p.slot0.ObservationCardinalityNext = next
		p.emit(IncreaseObservationCardinalityNextEvent{ObservationCardinalityNextOld: old, ObservationCardinalityNextNew: next})
	}
	return nil
}

// SnapshotCumulativesInside returns the oracle accumulators attributable to
// the price having been inside [tickLower, tickUpper], applying the same
// outside trick getFeeGrowthInside uses. It is read-only and takes no lock.
func (p *Pool) SnapshotCumulativesInside(tickLower, tickUpper int64) (tickCumulativeInside, secondsPerLiquidityInsideX128 *big.Int, secondsInside uint32, err error) {
	lower, lowerOK := p.ticks[tickLower]
	upper, upperOK := p.ticks[tickUpper]
	if !lowerOK || !lower.Initialized || !upperOK || !upper.Initialized {
		return nil, nil, 0, ErrTickNotInitialized
	}

	tickCumulative, secondsPerLiquidityCumulativeX128, err := p.currentOracleAccumulators()
	if err != nil {
		return nil, nil, 0, err
	}

	tickCumulativeInside, secondsPerLiquidityInsideX128, secondsInside = p.ticks.getSecondsAndOracleInside(
		tickLower, tickUpper, p.slot0.Tick, tickCumulative, secondsPerLiquidityCumulativeX128, p.now(),
	)
	return tickCumulativeInside, secondsPerLiquidityInsideX128, secondsInside, nil
}

// Observe resolves a batch of secondsAgo offsets against the oracle ring.
// It is read-only and takes no lock.
func (p *Pool) Observe(secondsAgos []uint32) (tickCumulatives, secondsPerLiquidityCumulativeX128s []*big.Int, err error) {
	return p.oracle.observe(p.now(), secondsAgos, p.slot0.Tick, p.slot0.ObservationIndex, p.liquidity, p.slot0.ObservationCardinality)
}

// VirtualReserves returns the pool's implied reserves of token0 and token1
// given current liquidity and price: reserve0 = L*2^96/sqrtP, reserve1 =
// L*sqrtP/2^96. Ported from the teacher's GetVirtualReserves.
func (p *Pool) VirtualReserves() (reserve0, reserve1 *big.Int) {
	reserve0 = new(big.Int).Div(new(big.Int).Lsh(p.liquidity, 96), p.slot0.SqrtPriceX96)
	reserve1 = new(big.Int).Div(new(big.Int).Mul(p.liquidity, p.slot0.SqrtPriceX96), sqrtpricemath.Q96)
	return reserve0, reserve1
}

// SpotPrice returns the price of token0 in terms of token1, scaled so the
// result carries decimalsOut fractional digits once adjusted for the
// tokens' own decimals. Ported from the teacher's GetSpotPrice.
func (p *Pool) SpotPrice(decimalsIn, decimalsOut uint8) *big.Int {
	sqrtPriceX96F := new(big.Float).SetInt(p.slot0.SqrtPriceX96)
	q96F := new(big.Float).SetInt(sqrtpricemath.Q96)

	ratio := new(big.Float).Quo(sqrtPriceX96F, q96F)
	price := new(big.Float).Mul(ratio, ratio)

	scale := new(big.Float).Quo(
		new(big.Float).SetFloat64(pow10(decimalsOut)),
		new(big.Float).SetFloat64(pow10(decimalsIn)),
	)
	price.Mul(price, scale)

	result, _ := price.Int(nil)
	return result
}

func pow10(n uint8) float64 {
	v := 1.0
	for i := uint8(0); i < n; i++ {
		v *= 10
	}
	return v
}

// Slot0View returns a copy of the pool's global slot.
func (p *Pool) Slot0View() Slot0 { return p.slot0 }

// LiquidityView returns a copy of the pool's active in-range liquidity.
func (p *Pool) LiquidityView() *big.Int { return new(big.Int).Set(p.liquidity) }

// FeeGrowthGlobalView returns copies of the two global fee-growth accumulators.
func (p *Pool) FeeGrowthGlobalView() (feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int) {
	return new(big.Int).Set(p.feeGrowthGlobal0X128), new(big.Int).Set(p.feeGrowthGlobal1X128)
}

// ProtocolFeesView returns copies of accrued, uncollected protocol fees.
func (p *Pool) ProtocolFeesView() (protocolFees0, protocolFees1 *big.Int) {
	return new(big.Int).Set(p.protocolFees0), new(big.Int).Set(p.protocolFees1)
}

// PositionView returns a copy of a position's accounting record.
func (p *Pool) PositionView(owner common.Address, tickLower, tickUpper int64) Position {
	pos := p.positions.get(PositionKey{Owner: owner, TickLower: tickLower, TickUpper: tickUpper})
	return *pos
}

// TickView returns a copy of a tick's accounting record.
func (p *Pool) TickView(tick int64) TickInfo {
	return *p.ticks.get(tick)
}

// IsTickInitialized reports whether tick's bitmap bit is set.
func (p *Pool) IsTickInitialized(tick int64) bool {
	return p.bitmap.IsInitialized(tick, p.TickSpacing)
}
