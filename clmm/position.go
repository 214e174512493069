package clmm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Position is the per-(owner, tickLower, tickUpper) accounting record.
type Position struct {
	Liquidity                *big.Int
	FeeGrowthInside0LastX128 *big.Int
	FeeGrowthInside1LastX128 *big.Int
	TokensOwed0              *big.Int
	TokensOwed1              *big.Int
}

func zeroPosition() *Position {
	return &Position{
		Liquidity:                new(big.Int),
		FeeGrowthInside0LastX128: new(big.Int),
		FeeGrowthInside1LastX128: new(big.Int),
		TokensOwed0:              new(big.Int),
		TokensOwed1:              new(big.Int),
	}
}

// PositionKey identifies a position by owner and range.
type PositionKey struct {
	Owner     common.Address
	TickLower int64
	TickUpper int64
}

type positionTable map[PositionKey]*Position

func (t positionTable) get(key PositionKey) *Position {
	if pos, ok := t[key]; ok {
		return pos
	}
	return zeroPosition()
}

func (t positionTable) getOrCreate(key PositionKey) *Position {
	if pos, ok := t[key]; ok {
		return pos
	}
	pos := zeroPosition()
	t[key] = pos
	return pos
}

// update accrues fees since the position's last touch, then applies
// liquidityDelta. Pokes of an empty position (ΔL==0, liquidity==0) fail NP,
// matching §4.5. Pool.Burn and Pool.Collect adjust TokensOwed0/1 directly.
func (t positionTable) update(
	key PositionKey,
	liquidityDelta *big.Int,
	feeGrowthInside0X128, feeGrowthInside1X128 *big.Int,
) error {
	pos := t.getOrCreate(key)

	if liquidityDelta.Sign() == 0 && pos.Liquidity.Sign() == 0 {
		return ErrNoPosition
	}

	var liquidityNext *big.Int
	if liquidityDelta.Sign() == 0 {
		liquidityNext = pos.Liquidity
	} else {
		liquidityNext = new(big.Int)
		if err := addLiquidityDelta(liquidityNext, pos.Liquidity, liquidityDelta); err != nil {
			return err
		}
	}

	// Fee accrual: owed_i += floor((feeGrowthInside_i - last_i) * liquidity / 2^128).
	// The subtraction is modular over feeGrowthGlobal's wraparound; correct
	// by the outside-trick invariants, never checked for "negativity".
	growth0 := new(big.Int).Sub(feeGrowthInside0X128, pos.FeeGrowthInside0LastX128)
	growth1 := new(big.Int).Sub(feeGrowthInside1X128, pos.FeeGrowthInside1LastX128)

	owed0 := new(big.Int).Mul(growth0, pos.Liquidity)
	owed0.Rsh(owed0, 128)
	owed1 := new(big.Int).Mul(growth1, pos.Liquidity)
	owed1.Rsh(owed1, 128)

	pos.FeeGrowthInside0LastX128.Set(feeGrowthInside0X128)
	pos.FeeGrowthInside1LastX128.Set(feeGrowthInside1X128)

	if liquidityDelta.Sign() != 0 {
		pos.Liquidity.Set(liquidityNext)
	}

	// tokensOwed additions may wrap at 2^128; collecting in time is on the
	// caller, per §9's open question.
	maxUint128 := new(big.Int).Lsh(big.NewInt(1), 128)
	if owed0.Sign() > 0 {
		pos.TokensOwed0.Add(pos.TokensOwed0, owed0)
		pos.TokensOwed0.Mod(pos.TokensOwed0, maxUint128)
	}
	if owed1.Sign() > 0 {
		pos.TokensOwed1.Add(pos.TokensOwed1, owed1)
		pos.TokensOwed1.Mod(pos.TokensOwed1, maxUint128)
	}

	return nil
}
