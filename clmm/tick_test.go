package clmm

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fromString(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("failed to set string for big.Int")
	}
	return n
}

func TestMaxLiquidityPerTick_GrowsAsTickSpacingGrows(t *testing.T) {
	wide := maxLiquidityPerTick(1)
	narrow := maxLiquidityPerTick(60)
	assert.True(t, wide.Cmp(narrow) < 0, "fewer usable ticks at a coarser spacing means more liquidity fits per tick")
}

func TestTickTable_GetReadsZeroValueWithoutInserting(t *testing.T) {
	tt := make(tickTable)

	info := tt.get(100)
	assert.Zero(t, info.LiquidityGross.Cmp(big.NewInt(0)))

	assert.False(t, info.Initialized)
	_, exists := tt[100]
	assert.False(t, exists, "get must not insert a placeholder")
}

func TestTickTable_UpdateFlipsOnFirstAndLastTouch(t *testing.T) {
	tt := make(tickTable)
	maxPerTick := maxLiquidityPerTick(60)

	flipped, err := tt.update(60, 0, big.NewInt(1_000_000), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), 1000, false, maxPerTick)
	require.NoError(t, err)
	assert.True(t, flipped)

	flipped, err = tt.update(60, 0, big.NewInt(500_000), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), 1001, false, maxPerTick)
	require.NoError(t, err)
	assert.False(t, flipped, "a tick already gross-positive does not flip again on a further increase")

	flipped, err = tt.update(60, 0, big.NewInt(-1_500_000), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), 1002, false, maxPerTick)
	require.NoError(t, err)
	assert.True(t, flipped, "draining liquidityGross back to zero flips the tick off")
}

func TestTickTable_UpdateSeedsOutsideBelowCurrentOnFirstTouch(t *testing.T) {
	tt := make(tickTable)
	maxPerTick := maxLiquidityPerTick(60)
	feeGrowth0, feeGrowth1 := fromString("500"), fromString("700")

	// tick (60) is at or below current (120): outside seeds to the global values.
	_, err := tt.update(60, 120, big.NewInt(1000), feeGrowth0, feeGrowth1, big.NewInt(9), big.NewInt(3), 100, false, maxPerTick)
	require.NoError(t, err)
	below := tt.get(60)
	assert.Zero(t, below.FeeGrowthOutside0X128.Cmp(feeGrowth0))

	assert.Zero(t, below.FeeGrowthOutside1X128.Cmp(feeGrowth1))

	// tick (180) is above current (120): outside stays zero until crossed.
	_, err = tt.update(180, 120, big.NewInt(1000), feeGrowth0, feeGrowth1, big.NewInt(9), big.NewInt(3), 100, true, maxPerTick)
	require.NoError(t, err)
	above := tt.get(180)
	assert.Zero(t, above.FeeGrowthOutside0X128.Cmp(big.NewInt(0)))

}

func TestTickTable_UpdateRejectsOverflowPastMaxLiquidityPerTick(t *testing.T) {
	tt := make(tickTable)
	maxPerTick := big.NewInt(1000)

	_, err := tt.update(60, 0, big.NewInt(1000), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), 1, false, maxPerTick)
	require.NoError(t, err)

	_, err = tt.update(60, 0, big.NewInt(1), big.NewInt(0), big.NewInt(0), big.NewInt(0), big.NewInt(0), 2, false, maxPerTick)
	assert.ErrorIs(t, err, ErrLiquidityOverflow)
}

func TestTickTable_CrossFlipsOutsideToGlobalMinusOutside(t *testing.T) {
	tt := make(tickTable)
	maxPerTick := maxLiquidityPerTick(60)

	// Seed tick 60 at or below current tick 120 so its outside equals the global at seed time.
	_, err := tt.update(60, 120, big.NewInt(1000), fromString("100"), fromString("200"), big.NewInt(5), big.NewInt(1), 10, false, maxPerTick)
	require.NoError(t, err)

	liquidityNet := tt.cross(60, fromString("900"), fromString("1800"), big.NewInt(50), big.NewInt(40), 99)

	info := tt.get(60)
	assert.Zero(t, info.FeeGrowthOutside0X128.Cmp(fromString("800"))) // 900 - 100
	assert.Zero(t, info.FeeGrowthOutside1X128.Cmp(fromString("1600"))) // 1800 - 200
	assert.Zero(t, liquidityNet.Cmp(big.NewInt(1000)))

}

func TestTickTable_GetFeeGrowthInsideMatchesOutsideTrick(t *testing.T) {
	tt := make(tickTable)
	global0, global1 := fromString("1000"), fromString("2000")

	lower := tt.getOrCreate(-60)
	lower.FeeGrowthOutside0X128.Set(fromString("300"))
	lower.FeeGrowthOutside1X128.Set(fromString("600"))

	upper := tt.getOrCreate(60)
	upper.FeeGrowthOutside0X128.Set(fromString("200"))
	upper.FeeGrowthOutside1X128.Set(fromString("400"))

	// current strictly inside [-60, 60]: below = lower.outside, above = upper.outside.
	inside0, inside1 := tt.getFeeGrowthInside(-60, 60, 0, global0, global1)
	assert.Zero(t, inside0.Cmp(fromString("500"))) // 1000 - 300 - 200
	assert.Zero(t, inside1.Cmp(fromString("1000"))) // 2000 - 600 - 400
}

func TestTickTable_ClearDeletesTheEntry(t *testing.T) {
	tt := make(tickTable)
	tt.getOrCreate(60)
	require.Len(t, tt, 1)

	tt.clear(60)
	assert.Len(t, tt, 0)
}
