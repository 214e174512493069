package clmm

import (
	"math/big"

	"github.com/clmmcore/engine/calculator/liquiditymath"
	"github.com/clmmcore/engine/calculator/tickmath"
)

// TickInfo is the sparse per-tick record: only initialized ticks exist in
// the backing map. Every accumulator is stored "outside" — as seen from the
// side opposite the current tick — per the outside trick in §4.3.
type TickInfo struct {
	LiquidityGross                 *big.Int
	LiquidityNet                   *big.Int
	FeeGrowthOutside0X128          *big.Int
	FeeGrowthOutside1X128          *big.Int
	SecondsPerLiquidityOutsideX128 *big.Int
	TickCumulativeOutside          *big.Int
	SecondsOutside                 uint32
	Initialized                    bool
}

func zeroTickInfo() *TickInfo {
	return &TickInfo{
		LiquidityGross:                 new(big.Int),
		LiquidityNet:                   new(big.Int),
		FeeGrowthOutside0X128:          new(big.Int),
		FeeGrowthOutside1X128:          new(big.Int),
		SecondsPerLiquidityOutsideX128: new(big.Int),
		TickCumulativeOutside:          new(big.Int),
	}
}

// tickTable is the map[tick]->TickInfo described in §9's "mappings" design
// note: default-constructed values on read-miss, without inserting into the
// map, are what let an uninitialized tick read as all-zero.
type tickTable map[int64]*TickInfo

func (t tickTable) get(tick int64) *TickInfo {
	if info, ok := t[tick]; ok {
		return info
	}
	return zeroTickInfo()
}

func (t tickTable) getOrCreate(tick int64) *TickInfo {
	if info, ok := t[tick]; ok {
		return info
	}
	info := zeroTickInfo()
	t[tick] = info
	return info
}

// maxLiquidityPerTick computes ⌊(2^128−1) / numUsableTicks⌋ the way
// Uniswap's Tick.sol does: truncate MIN_TICK/MAX_TICK toward zero to
// multiples of tickSpacing before counting usable endpoints.
func maxLiquidityPerTick(tickSpacing int64) *big.Int {
	minTick := (tickmath.MIN_TICK / tickSpacing) * tickSpacing
	maxTick := (tickmath.MAX_TICK / tickSpacing) * tickSpacing
	numTicks := (maxTick-minTick)/tickSpacing + 1

	maxUint128 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
	return new(big.Int).Div(maxUint128, big.NewInt(numTicks))
}

// update adds liquidityDelta to the tick's liquidityGross/liquidityNet,
// seeding outside accumulators on first initialization, and reports whether
// the tick flipped from uninitialized to initialized or vice versa.
func (t tickTable) update(
	tick, current int64,
	liquidityDelta *big.Int,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int,
	secondsPerLiquidityCumulativeX128 *big.Int,
	tickCumulative *big.Int,
	time uint32,
	upper bool,
	maxLiquidityPerTick *big.Int,
) (flipped bool, err error) {
	info := t.getOrCreate(tick)

	liquidityGrossBefore := new(big.Int).Set(info.LiquidityGross)
	liquidityGrossAfter := new(big.Int).Add(liquidityGrossBefore, liquidityDelta)
	if liquidityGrossAfter.Sign() < 0 {
		return false, ErrLiquidityOverflow
	}
	if liquidityGrossAfter.Cmp(maxLiquidityPerTick) > 0 {
		return false, ErrLiquidityOverflow
	}

	flipped = (liquidityGrossBefore.Sign() == 0) != (liquidityGrossAfter.Sign() == 0)

	if liquidityGrossBefore.Sign() == 0 {
		// By convention, all growth before a tick's first touch is
		// attributed to the side below it.
		if tick <= current {
			info.FeeGrowthOutside0X128.Set(feeGrowthGlobal0X128)
			info.FeeGrowthOutside1X128.Set(feeGrowthGlobal1X128)
			info.SecondsPerLiquidityOutsideX128.Set(secondsPerLiquidityCumulativeX128)
			info.TickCumulativeOutside.Set(tickCumulative)
			info.SecondsOutside = time
		}
		info.Initialized = true
	}

	info.LiquidityGross.Set(liquidityGrossAfter)

	if upper {
		info.LiquidityNet.Sub(info.LiquidityNet, liquidityDelta)
	} else {
		info.LiquidityNet.Add(info.LiquidityNet, liquidityDelta)
	}

	return flipped, nil
}

// cross flips every outside accumulator to global−outside and returns the
// tick's liquidityNet, the signed delta the swap loop applies to active
// liquidity.
func (t tickTable) cross(
	tick int64,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int,
	secondsPerLiquidityCumulativeX128 *big.Int,
	tickCumulative *big.Int,
	time uint32,
) *big.Int {
	info := t.getOrCreate(tick)

	info.FeeGrowthOutside0X128.Sub(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128.Sub(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	info.SecondsPerLiquidityOutsideX128.Sub(secondsPerLiquidityCumulativeX128, info.SecondsPerLiquidityOutsideX128)
	info.TickCumulativeOutside.Sub(tickCumulative, info.TickCumulativeOutside)
	info.SecondsOutside = time - info.SecondsOutside

	return new(big.Int).Set(info.LiquidityNet)
}

// getFeeGrowthInside applies the outside trick to return the portion of
// feeGrowthGlobal attributable to the price having been inside [lower,
// upper]: insideGrowth = globalGrowth − outsideBelow(lower) − outsideAbove(upper).
func (t tickTable) getFeeGrowthInside(
	tickLower, tickUpper, current int64,
	feeGrowthGlobal0X128, feeGrowthGlobal1X128 *big.Int,
) (inside0, inside1 *big.Int) {
	lower := t.get(tickLower)
	upper := t.get(tickUpper)

	var below0, below1 *big.Int
	if current >= tickLower {
		below0 = lower.FeeGrowthOutside0X128
		below1 = lower.FeeGrowthOutside1X128
	} else {
		below0 = new(big.Int).Sub(feeGrowthGlobal0X128, lower.FeeGrowthOutside0X128)
		below1 = new(big.Int).Sub(feeGrowthGlobal1X128, lower.FeeGrowthOutside1X128)
	}

	var above0, above1 *big.Int
	if current < tickUpper {
		above0 = upper.FeeGrowthOutside0X128
		above1 = upper.FeeGrowthOutside1X128
	} else {
		above0 = new(big.Int).Sub(feeGrowthGlobal0X128, upper.FeeGrowthOutside0X128)
		above1 = new(big.Int).Sub(feeGrowthGlobal1X128, upper.FeeGrowthOutside1X128)
	}

	inside0 = new(big.Int).Sub(feeGrowthGlobal0X128, below0)
	inside0.Sub(inside0, above0)
	inside1 = new(big.Int).Sub(feeGrowthGlobal1X128, below1)
	inside1.Sub(inside1, above1)
	return inside0, inside1
}

// getSecondsAndOracleInside mirrors getFeeGrowthInside for the oracle's
// tickCumulative and secondsPerLiquidityCumulativeX128 accumulators, the
// basis for snapshotCumulativesInside.
func (t tickTable) getSecondsAndOracleInside(
	tickLower, tickUpper, current int64,
	tickCumulative *big.Int,
	secondsPerLiquidityCumulativeX128 *big.Int,
	time uint32,
) (tickCumulativeInside, secondsPerLiquidityInsideX128 *big.Int, secondsInside uint32) {
	lower := t.get(tickLower)
	upper := t.get(tickUpper)

	var tickBelow, tickAbove *big.Int
	var spBelow, spAbove *big.Int
	var secondsBelow, secondsAbove uint32

	if current >= tickLower {
		tickBelow = lower.TickCumulativeOutside
		spBelow = lower.SecondsPerLiquidityOutsideX128
		secondsBelow = lower.SecondsOutside
	} else {
		tickBelow = new(big.Int).Sub(tickCumulative, lower.TickCumulativeOutside)
		spBelow = new(big.Int).Sub(secondsPerLiquidityCumulativeX128, lower.SecondsPerLiquidityOutsideX128)
		secondsBelow = time - lower.SecondsOutside
	}

	if current < tickUpper {
		tickAbove = upper.TickCumulativeOutside
		spAbove = upper.SecondsPerLiquidityOutsideX128
		secondsAbove = upper.SecondsOutside
	} else {
		tickAbove = new(big.Int).Sub(tickCumulative, upper.TickCumulativeOutside)
		spAbove = new(big.Int).Sub(secondsPerLiquidityCumulativeX128, upper.SecondsPerLiquidityOutsideX128)
		secondsAbove = time - upper.SecondsOutside
	}

	tickCumulativeInside = new(big.Int).Sub(tickCumulative, tickBelow)
	tickCumulativeInside.Sub(tickCumulativeInside, tickAbove)

	secondsPerLiquidityInsideX128 = new(big.Int).Sub(secondsPerLiquidityCumulativeX128, spBelow)
	secondsPerLiquidityInsideX128.Sub(secondsPerLiquidityInsideX128, spAbove)

	secondsInside = time - secondsBelow - secondsAbove
	return
}

// clear deletes a tick's entry. Callers invoke this only after a burn that
// flipped the tick back to uninitialized.
func (t tickTable) clear(tick int64) {
	delete(t, tick)
}

// addLiquidityDelta is a thin wrapper over liquiditymath.AddDelta, kept here
// so pool.go's call sites read as tick-table vocabulary.
func addLiquidityDelta(dest, x, y *big.Int) error {
	return liquiditymath.AddDelta(dest, x, y)
}
