package clmm

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventSink receives one event per successful mutating operation. A nil
// sink is a no-op; Pool never nil-checks the sink directly, it goes through
// the emit helper instead. This is the observable seam the spec's "out of
// scope: the event/log stream" leaves for a host to wire up however it
// likes (an in-memory log, a channel, a real event bus).
type EventSink interface {
	Emit(event any)
}

// InitializeEvent is emitted once, by Pool.Initialize.
type InitializeEvent struct {
	SqrtPriceX96 *big.Int
	Tick         int64
}

// MintEvent is emitted by Pool.Mint.
type MintEvent struct {
	Sender     common.Address
	Recipient  common.Address
	TickLower  int64
	TickUpper  int64
	Amount     *big.Int
	Amount0    *big.Int
	Amount1    *big.Int
}

// CollectEvent is emitted by Pool.Collect.
type CollectEvent struct {
	Owner     common.Address
	Recipient common.Address
	TickLower int64
	TickUpper int64
	Amount0   *big.Int
	Amount1   *big.Int
}

// BurnEvent is emitted by Pool.Burn.
type BurnEvent struct {
	Owner     common.Address
	TickLower int64
	TickUpper int64
	Amount    *big.Int
	Amount0   *big.Int
	Amount1   *big.Int
}

// SwapEvent is emitted by Pool.Swap.
type SwapEvent struct {
	Sender       common.Address
	Recipient    common.Address
	Amount0      *big.Int
	Amount1      *big.Int
	SqrtPriceX96 *big.Int
	Liquidity    *big.Int
	Tick         int64
}

// FlashEvent is emitted by Pool.Flash.
type FlashEvent struct {
	Sender    common.Address
	Recipient common.Address
	Amount0   *big.Int
	Amount1   *big.Int
	Paid0     *big.Int
	Paid1     *big.Int
}

// SetFeeProtocolEvent is emitted by Pool.SetFeeProtocol.
type SetFeeProtocolEvent struct {
	FeeProtocol0Old uint8
	FeeProtocol1Old uint8
	FeeProtocol0New uint8
	FeeProtocol1New uint8
}

// CollectProtocolEvent is emitted by Pool.CollectProtocol.
type CollectProtocolEvent struct {
	Recipient common.Address
	Amount0   *big.Int
	Amount1   *big.Int
}

// IncreaseObservationCardinalityNextEvent is emitted by Pool.IncreaseObservationCardinalityNext.
type IncreaseObservationCardinalityNextEvent struct {
	ObservationCardinalityNextOld uint16
	ObservationCardinalityNextNew uint16
}

func (p *Pool) emit(event any) {
	if p.sink == nil {
		return
	}
	p.sink.Emit(event)
}
