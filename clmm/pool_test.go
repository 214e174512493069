package clmm

import (
	"math/big"
	"testing"

	"github.com/clmmcore/engine/calculator/tickmath"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAccounts is an in-memory stand-in for the pool's ERC-20-style token
// ledger: it tracks the pool's own per-token balance, the one thing
// Mint/Swap/Flash actually read back to verify a callback paid in full,
// plus what the pool has sent out so a flash loan can be repaid.
type mockAccounts struct {
	balances map[common.Address]*big.Int
	sent     map[common.Address]*big.Int
}

func newMockAccounts() *mockAccounts {
	return &mockAccounts{balances: map[common.Address]*big.Int{}, sent: map[common.Address]*big.Int{}}
}

// takeSent returns what the pool has transferred out of token since the
// last call, and resets that tally.
func (m *mockAccounts) takeSent(token common.Address) *big.Int {
	amount, ok := m.sent[token]
	delete(m.sent, token)
	if !ok {
		return big.NewInt(0)
	}
	return amount
}

func (m *mockAccounts) BalanceOf(token common.Address) (*big.Int, error) {
	if b, ok := m.balances[token]; ok {
		return new(big.Int).Set(b), nil
	}
	return big.NewInt(0), nil
}

func (m *mockAccounts) Transfer(token, _ common.Address, amount *big.Int) error {
	m.credit(token, new(big.Int).Neg(amount))
	m.sent[token] = new(big.Int).Add(m.takeSent(token), amount)
	return nil
}

func (m *mockAccounts) credit(token common.Address, amount *big.Int) {
	bal, ok := m.balances[token]
	if !ok {
		bal = big.NewInt(0)
	}
	m.balances[token] = new(big.Int).Add(bal, amount)
}

// honestPayer pays every callback in full.
type honestPayer struct {
	accounts       *mockAccounts
	token0, token1 common.Address
}

func (p *honestPayer) MintCallback(amount0, amount1 *big.Int, _ []byte) error {
	if amount0.Sign() > 0 {
		p.accounts.credit(p.token0, amount0)
	}
	if amount1.Sign() > 0 {
		p.accounts.credit(p.token1, amount1)
	}
	return nil
}

func (p *honestPayer) SwapCallback(amount0Delta, amount1Delta *big.Int, _ []byte) error {
	if amount0Delta.Sign() > 0 {
		p.accounts.credit(p.token0, amount0Delta)
	}
	if amount1Delta.Sign() > 0 {
		p.accounts.credit(p.token1, amount1Delta)
	}
	return nil
}

func (p *honestPayer) FlashCallback(fee0, fee1 *big.Int, _ []byte) error {
	p.accounts.credit(p.token0, new(big.Int).Add(p.accounts.takeSent(p.token0), fee0))
	p.accounts.credit(p.token1, new(big.Int).Add(p.accounts.takeSent(p.token1), fee1))
	return nil
}

// stingyPayer never pays anything, exercising the underpaid-callback errors.
type stingyPayer struct{}

func (stingyPayer) MintCallback(*big.Int, *big.Int, []byte) error  { return nil }
func (stingyPayer) SwapCallback(*big.Int, *big.Int, []byte) error  { return nil }
func (stingyPayer) FlashCallback(*big.Int, *big.Int, []byte) error { return nil }

// reentrantPayer calls back into the pool mid-callback, exercising the lock.
type reentrantPayer struct {
	pool *Pool
}

func (p *reentrantPayer) MintCallback(*big.Int, *big.Int, []byte) error {
	_, _, err := p.pool.Mint(testOwner, -60, 60, big.NewInt(1), p, nil)
	return err
}
func (p *reentrantPayer) SwapCallback(*big.Int, *big.Int, []byte) error  { return nil }
func (p *reentrantPayer) FlashCallback(*big.Int, *big.Int, []byte) error { return nil }

var (
	token0    = common.HexToAddress("0x0000000000000000000000000000000000000A")
	token1    = common.HexToAddress("0x0000000000000000000000000000000000000B")
	poolOwner = common.HexToAddress("0x00000000000000000000000000000000000E0E")
)

func sqrtRatioAtTick(t *testing.T, tick int64) *big.Int {
	dest := new(big.Int)
	require.NoError(t, tickmath.GetSqrtRatioAtTick(dest, tick))
	return dest
}

func newTestPool(t *testing.T) (*Pool, *mockAccounts) {
	t.Helper()
	accounts := newMockAccounts()
	pool, err := NewPool(token0, token1, 3000, 60, poolOwner, accounts, WithClock(func() uint32 { return 1_700_000_000 }))
	require.NoError(t, err)
	require.NoError(t, pool.Initialize(sqrtRatioAtTick(t, 0)))
	return pool, accounts
}

func TestPool_InitializeSetsSlot0AndSeedsOracle(t *testing.T) {
	pool, _ := newTestPool(t)
	slot0 := pool.Slot0View()
	assert.Equal(t, int64(0), slot0.Tick)
	assert.True(t, slot0.Unlocked)
	assert.Equal(t, uint16(1), slot0.ObservationCardinality)
}

func TestPool_InitializeRejectsDoubleInitialize(t *testing.T) {
	pool, _ := newTestPool(t)
	err := pool.Initialize(sqrtRatioAtTick(t, 0))
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestPool_MintRejectsInvertedTickRange(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, 60, -60, big.NewInt(1000), payer, nil)
	assert.ErrorIs(t, err, ErrTickLowerGreaterOrEqualUpper)
}

func TestPool_MintRejectsMisalignedTicks(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, -61, 60, big.NewInt(1000), payer, nil)
	assert.ErrorIs(t, err, ErrTickLowerTooLow)
}

func TestPool_MintInRangeChargesBothTokensAndActivatesLiquidity(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}

	amount0, amount1, err := pool.Mint(testOwner, -60, 60, big.NewInt(1_000_000), payer, nil)
	require.NoError(t, err)
	assert.True(t, amount0.Sign() > 0)
	assert.True(t, amount1.Sign() > 0)
	assert.Zero(t, pool.LiquidityView().Cmp(big.NewInt(1_000_000)))

	pos := pool.PositionView(testOwner, -60, 60)
	assert.Zero(t, pos.Liquidity.Cmp(big.NewInt(1_000_000)))

}

func TestPool_MintInRangeWritesOracleObservationWithPreMintLiquidity(t *testing.T) {
	accounts := newMockAccounts()
	clockTime := uint32(1_700_000_000)
	pool, err := NewPool(token0, token1, 3000, 60, poolOwner, accounts, WithClock(func() uint32 { return clockTime }))
	require.NoError(t, err)
	require.NoError(t, pool.Initialize(sqrtRatioAtTick(t, 0)))
	payer := &honestPayer{accounts, token0, token1}

	firstLiquidity := big.NewInt(1_000_000)
	_, _, err = pool.Mint(testOwner, -600, 600, firstLiquidity, payer, nil)
	require.NoError(t, err)

	const elapsed = 100
	clockTime += elapsed

	secondLiquidity := big.NewInt(4_000_000)
	_, _, err = pool.Mint(testOwner, -600, 600, secondLiquidity, payer, nil)
	require.NoError(t, err)

	_, secondsPerLiquidityCumulativeX128s, err := pool.Observe([]uint32{0})
	require.NoError(t, err)

	expected := new(big.Int).Lsh(big.NewInt(elapsed), 128)
	expected.Div(expected, firstLiquidity)

	assert.Zero(t, secondsPerLiquidityCumulativeX128s[0].Cmp(expected), "the observation written during the second mint must divide elapsed time by the liquidity active before that mint, not the post-mint total")

}

func TestPool_MintOutOfRangeOwesOnlyOneToken(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}

	// Entirely above the current tick: only token0 is owed, liquidity stays inactive.
	amount0, amount1, err := pool.Mint(testOwner, 60, 120, big.NewInt(1_000_000), payer, nil)
	require.NoError(t, err)
	assert.True(t, amount0.Sign() > 0)
	assert.Zero(t, amount1.Cmp(big.NewInt(0)))

	assert.Zero(t, pool.LiquidityView().Cmp(big.NewInt(0)))

}

func TestPool_MintFailsWhenCallbackUnderpays(t *testing.T) {
	pool, _ := newTestPool(t)
	_, _, err := pool.Mint(testOwner, -60, 60, big.NewInt(1_000_000), stingyPayer{}, nil)
	assert.True(t, err == ErrAmount0Underpaid || err == ErrAmount1Underpaid)
}

func TestPool_MintRejectsNegativeAmount(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, -60, 60, big.NewInt(-1_000_000), payer, nil)
	assert.ErrorIs(t, err, ErrAmountIsZero)
}

func TestPool_BurnRejectsNegativeAmount(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, -60, 60, big.NewInt(1_000_000), payer, nil)
	require.NoError(t, err)

	liquidityBefore := new(big.Int).Set(pool.LiquidityView())
	_, _, err = pool.Burn(testOwner, -60, 60, big.NewInt(-1_000_000))
	assert.ErrorIs(t, err, ErrAmountIsZero)
	assert.Zero(t, pool.LiquidityView().Cmp(liquidityBefore), "a rejected burn must not mutate liquidity")
}

func TestPool_BurnCreditsTokensOwedWithoutTransferring(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}

	mintAmount0, mintAmount1, err := pool.Mint(testOwner, -60, 60, big.NewInt(1_000_000), payer, nil)
	require.NoError(t, err)

	burnAmount0, burnAmount1, err := pool.Burn(testOwner, -60, 60, big.NewInt(1_000_000))
	require.NoError(t, err)
	assert.Zero(t, burnAmount0.Cmp(mintAmount0))

	assert.Zero(t, burnAmount1.Cmp(mintAmount1))

	assert.Zero(t, pool.LiquidityView().Cmp(big.NewInt(0)))

	pos := pool.PositionView(testOwner, -60, 60)
	assert.Zero(t, pos.TokensOwed0.Cmp(burnAmount0))

	assert.Zero(t, pos.TokensOwed1.Cmp(burnAmount1))

}

func TestPool_CollectCapsAtTokensOwedAndZeroesTheBalance(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}

	_, _, err := pool.Mint(testOwner, -60, 60, big.NewInt(1_000_000), payer, nil)
	require.NoError(t, err)
	owed0, owed1, err := pool.Burn(testOwner, -60, 60, big.NewInt(1_000_000))
	require.NoError(t, err)

	hugeRequest := new(big.Int).Add(owed0, big.NewInt(1_000_000_000))
	got0, got1, err := pool.Collect(testOwner, testOwner, -60, 60, hugeRequest, owed1)
	require.NoError(t, err)
	assert.Zero(t, got0.Cmp(owed0))

	assert.Zero(t, got1.Cmp(owed1))

	pos := pool.PositionView(testOwner, -60, 60)
	assert.Zero(t, pos.TokensOwed0.Cmp(big.NewInt(0)))

	assert.Zero(t, pos.TokensOwed1.Cmp(big.NewInt(0)))

}

func TestPool_SwapZeroForOneConsumesToken0AndPaysOutToken1(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}

	_, _, err := pool.Mint(testOwner, -600, 600, big.NewInt(10_000_000), payer, nil)
	require.NoError(t, err)

	limit := new(big.Int).Add(tickmath.MIN_SQRT_RATIO, big.NewInt(1))
	amount0, amount1, err := pool.Swap(testOwner, true, big.NewInt(1000), limit, payer, nil)
	require.NoError(t, err)
	assert.True(t, amount0.Sign() > 0, "zeroForOne exact-input swap consumes a positive amount of token0")
	assert.True(t, amount1.Sign() < 0, "the pool pays token1 out, so the reported delta is negative")
}

func TestPool_SwapRejectsSqrtPriceLimitOnTheWrongSide(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, -600, 600, big.NewInt(10_000_000), payer, nil)
	require.NoError(t, err)

	// zeroForOne moves price down; a limit above the current price is invalid.
	badLimit := sqrtRatioAtTick(t, 600)
	_, _, err = pool.Swap(testOwner, true, big.NewInt(1000), badLimit, payer, nil)
	assert.ErrorIs(t, err, ErrSqrtPriceLimitOutOfBounds)
}

func TestPool_SwapRejectsZeroAmountSpecified(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	limit := new(big.Int).Add(tickmath.MIN_SQRT_RATIO, big.NewInt(1))
	_, _, err := pool.Swap(testOwner, true, big.NewInt(0), limit, payer, nil)
	assert.ErrorIs(t, err, ErrAmountSpecifiedZero)
}

func TestPool_FlashRequiresPrincipalPlusFeeRepayment(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, -600, 600, big.NewInt(10_000_000), payer, nil)
	require.NoError(t, err)

	paid0, paid1, err := pool.Flash(testOwner, big.NewInt(1_000_000), big.NewInt(500_000), payer, nil)
	require.NoError(t, err)
	assert.True(t, paid0.Cmp(big.NewInt(1_000_000)) > 0, "repayment must exceed principal by at least the fee")
	assert.True(t, paid1.Cmp(big.NewInt(500_000)) > 0)

	protocolFees0, _ := pool.ProtocolFeesView()
	assert.Zero(t, protocolFees0.Cmp(big.NewInt(0)), "no protocol fee is set, so none is skimmed")

}

func TestPool_FlashRejectsUnderpaidFee(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, -600, 600, big.NewInt(10_000_000), payer, nil)
	require.NoError(t, err)

	_, _, err = pool.Flash(testOwner, big.NewInt(1_000_000), big.NewInt(500_000), stingyPayer{}, nil)
	assert.True(t, err == ErrFlashAmount0Underpaid || err == ErrFlashAmount1Underpaid)
}

func TestPool_FlashRejectsWhenPoolHasNoLiquidity(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Flash(testOwner, big.NewInt(1), big.NewInt(1), payer, nil)
	assert.ErrorIs(t, err, ErrNoLiquidity)
}

func TestPool_SetFeeProtocolRejectsNonOwner(t *testing.T) {
	pool, _ := newTestPool(t)
	err := pool.SetFeeProtocol(testOwner, 4, 4)
	assert.ErrorIs(t, err, ErrNotOwner)
}

func TestPool_SetFeeProtocolRejectsValuesOutsideZeroOrFourToTen(t *testing.T) {
	pool, _ := newTestPool(t)
	err := pool.SetFeeProtocol(poolOwner, 2, 0)
	assert.ErrorIs(t, err, ErrInvalidFeeProtocol)
}

func TestPool_SetFeeProtocolThenFlashSkimsProtocolShare(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, -600, 600, big.NewInt(10_000_000), payer, nil)
	require.NoError(t, err)
	require.NoError(t, pool.SetFeeProtocol(poolOwner, 4, 4))

	_, _, err = pool.Flash(testOwner, big.NewInt(1_000_000), big.NewInt(500_000), payer, nil)
	require.NoError(t, err)

	protocolFees0, protocolFees1 := pool.ProtocolFeesView()
	assert.True(t, protocolFees0.Sign() > 0)
	assert.True(t, protocolFees1.Sign() > 0)
}

func TestPool_ReentrantMintIsRejectedByTheLock(t *testing.T) {
	pool, _ := newTestPool(t)
	payer := &reentrantPayer{pool: pool}

	_, _, err := pool.Mint(testOwner, -60, 60, big.NewInt(1000), payer, nil)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestPool_SnapshotCumulativesInsideRejectsUninitializedTick(t *testing.T) {
	pool, _ := newTestPool(t)
	_, _, _, err := pool.SnapshotCumulativesInside(-60, 60)
	assert.ErrorIs(t, err, ErrTickNotInitialized)
}

func TestPool_SnapshotCumulativesInsideSucceedsAfterMint(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, -60, 60, big.NewInt(1_000_000), payer, nil)
	require.NoError(t, err)

	_, _, secondsInside, err := pool.SnapshotCumulativesInside(-60, 60)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), secondsInside, "no time has elapsed since mint seeded the tick")
}

func TestPool_IncreaseObservationCardinalityNextIsIdempotentBelowCurrent(t *testing.T) {
	pool, _ := newTestPool(t)
	require.NoError(t, pool.IncreaseObservationCardinalityNext(10))
	assert.Equal(t, uint16(10), pool.Slot0View().ObservationCardinalityNext)

	require.NoError(t, pool.IncreaseObservationCardinalityNext(5))
	assert.Equal(t, uint16(10), pool.Slot0View().ObservationCardinalityNext, "requesting a smaller cardinality is a no-op")
}

func TestPool_VirtualReservesReflectLiquidityAndPrice(t *testing.T) {
	pool, accounts := newTestPool(t)
	payer := &honestPayer{accounts, token0, token1}
	_, _, err := pool.Mint(testOwner, -600, 600, big.NewInt(10_000_000), payer, nil)
	require.NoError(t, err)

	reserve0, reserve1 := pool.VirtualReserves()
	assert.True(t, reserve0.Sign() > 0)
	assert.True(t, reserve1.Sign() > 0)
}
