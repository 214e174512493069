package clmm

import "math/big"

// maxObservationCardinality bounds the oracle ring, matching the spec's
// fixed array of up to 65,535 slots. Storage is grown lazily (append, not a
// preallocated [65535]Observation) per §9's "implementers should allocate
// lazily but must preserve indexing semantics" allowance.
const maxObservationCardinality = 65535

// Observation is one oracle ring slot.
type Observation struct {
	BlockTimestamp                    uint32
	TickCumulative                    *big.Int
	SecondsPerLiquidityCumulativeX128 *big.Int
	Initialized                       bool
}

func zeroObservation() Observation {
	return Observation{
		TickCumulative:                    new(big.Int),
		SecondsPerLiquidityCumulativeX128: new(big.Int),
	}
}

// oracle is the fixed-capacity circular buffer of observations.
type oracle struct {
	observations []Observation
}

func newOracle() *oracle {
	return &oracle{observations: []Observation{zeroObservation()}}
}

func (o *oracle) ensureLen(n int) {
	if n > maxObservationCardinality {
		n = maxObservationCardinality
	}
	for len(o.observations) < n {
		o.observations = append(o.observations, zeroObservation())
	}
}

// initialize seeds slot 0 at construction time; returns the initial
// (index, cardinality, cardinalityNext) triple.
func (o *oracle) initialize(t uint32, tick int64) (index, cardinality, cardinalityNext uint16) {
	o.observations[0] = Observation{
		BlockTimestamp:                    t,
		TickCumulative:                    big.NewInt(0),
		SecondsPerLiquidityCumulativeX128: big.NewInt(0),
		Initialized:                       true,
	}
	return 0, 1, 1
}

// transform projects last forward to timestamp t, accumulating
// tick*Δt and (Δt<<128)/max(liquidity,1).
func transform(last Observation, t uint32, tick int64, liquidity *big.Int) Observation {
	delta := t - last.BlockTimestamp

	tickCumulative := new(big.Int).Add(
		last.TickCumulative,
		new(big.Int).Mul(big.NewInt(tick), big.NewInt(int64(delta))),
	)

	divisor := liquidity
	if divisor == nil || divisor.Sign() == 0 {
		divisor = big.NewInt(1)
	}
	spDelta := new(big.Int).Lsh(big.NewInt(int64(delta)), 128)
	spDelta.Div(spDelta, divisor)

	return Observation{
		BlockTimestamp:                    t,
		TickCumulative:                    tickCumulative,
		SecondsPerLiquidityCumulativeX128: new(big.Int).Add(last.SecondsPerLiquidityCumulativeX128, spDelta),
		Initialized:                       true,
	}
}

// write is a no-op if last.timestamp == t (at most one write per
// block-equivalent unit); otherwise it grows the ring if cardinalityNext
// has been reserved and the writer is at the last slot, then writes at
// (index+1) mod cardinality.
func (o *oracle) write(
	index uint16, t uint32, tick int64, liquidity *big.Int,
	cardinality, cardinalityNext uint16,
) (indexOut, cardinalityOut uint16) {
	last := o.observations[index]
	if last.BlockTimestamp == t {
		return index, cardinality
	}

	cardinalityOut = cardinality
	if cardinalityNext > cardinality && index == cardinality-1 {
		cardinalityOut = cardinalityNext
	}

	indexOut = (index + 1) % cardinalityOut
	o.ensureLen(int(indexOut) + 1)
	o.observations[indexOut] = transform(last, t, tick, liquidity)
	return indexOut, cardinalityOut
}

// grow pre-dirties slots [current, next) with a nonzero, uninitialized
// sentinel so later writes into them don't pay a cold-slot penalty.
func (o *oracle) grow(current, next uint16) uint16 {
	if current == 0 || next <= current {
		return current
	}
	o.ensureLen(int(next))
	for i := current; i < next; i++ {
		o.observations[i].BlockTimestamp = 1
		o.observations[i].Initialized = false
	}
	return next
}

// lte is the modulo-2^32 timestamp comparator: any of a, b greater than
// `time` is treated as having wrapped, per §4.6.
func lte(time, a, b uint32) bool {
	if a <= time && b <= time {
		return a <= b
	}
	aAdj := uint64(a)
	if a > time {
		aAdj += 1 << 32
	}
	bAdj := uint64(b)
	if b > time {
		bAdj += 1 << 32
	}
	return aAdj <= bAdj
}

// binarySearch finds the observations straddling target, searching the ring
// in [index+1, index+cardinality] (mod cardinality), skipping uninitialized
// slots upward as it goes.
func (o *oracle) binarySearch(t, target uint32, index, cardinality uint16) (beforeOrAt, atOrAfter Observation) {
	l := int(index) + 1
	r := l + int(cardinality) - 1

	for {
		i := (l + r) / 2
		beforeOrAtIdx := i % int(cardinality)
		beforeOrAt = o.observations[beforeOrAtIdx]

		if !beforeOrAt.Initialized {
			l = i + 1
			continue
		}

		atOrAfterIdx := (beforeOrAtIdx + 1) % int(cardinality)
		atOrAfter = o.observations[atOrAfterIdx]

		targetAtOrAfter := lte(t, beforeOrAt.BlockTimestamp, target)
		if targetAtOrAfter && lte(t, target, atOrAfter.BlockTimestamp) {
			return beforeOrAt, atOrAfter
		}
		if !targetAtOrAfter {
			r = i - 1
		} else {
			l = i + 1
		}
	}
}

// getSurroundingObservations returns the pair of observations straddling
// target, short-circuiting to the newest (transformed) observation when the
// newest is already at or before target.
func (o *oracle) getSurroundingObservations(
	t, target uint32, tick int64, index uint16, liquidity *big.Int, cardinality uint16,
) (beforeOrAt, atOrAfter Observation, err error) {
	beforeOrAt = o.observations[index]

	if lte(t, beforeOrAt.BlockTimestamp, target) {
		if beforeOrAt.BlockTimestamp == target {
			return beforeOrAt, beforeOrAt, nil
		}
		return beforeOrAt, transform(beforeOrAt, target, tick, liquidity), nil
	}

	beforeOrAt = o.observations[(int(index)+1)%int(cardinality)]
	if !beforeOrAt.Initialized {
		beforeOrAt = o.observations[0]
	}

	if !lte(t, beforeOrAt.BlockTimestamp, target) {
		return Observation{}, Observation{}, ErrObservationTooOld
	}

	beforeOrAt, atOrAfter = o.binarySearch(t, target, index, cardinality)
	return beforeOrAt, atOrAfter, nil
}

// observeSingle returns the accumulators as of t−secondsAgo.
func (o *oracle) observeSingle(
	t, secondsAgo uint32, tick int64, index uint16, liquidity *big.Int, cardinality uint16,
) (tickCumulative, secondsPerLiquidityCumulativeX128 *big.Int, err error) {
	if secondsAgo == 0 {
		last := o.observations[index]
		if last.BlockTimestamp != t {
			last = transform(last, t, tick, liquidity)
		}
		return last.TickCumulative, last.SecondsPerLiquidityCumulativeX128, nil
	}

	target := t - secondsAgo

	beforeOrAt, atOrAfter, err := o.getSurroundingObservations(t, target, tick, index, liquidity, cardinality)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case target == beforeOrAt.BlockTimestamp:
		return beforeOrAt.TickCumulative, beforeOrAt.SecondsPerLiquidityCumulativeX128, nil
	case target == atOrAfter.BlockTimestamp:
		return atOrAfter.TickCumulative, atOrAfter.SecondsPerLiquidityCumulativeX128, nil
	default:
		observationTimeDelta := int64(atOrAfter.BlockTimestamp - beforeOrAt.BlockTimestamp)
		targetDelta := int64(target - beforeOrAt.BlockTimestamp)

		tickCumulative = new(big.Int).Sub(atOrAfter.TickCumulative, beforeOrAt.TickCumulative)
		tickCumulative.Mul(tickCumulative, big.NewInt(targetDelta))
		tickCumulative.Div(tickCumulative, big.NewInt(observationTimeDelta))
		tickCumulative.Add(tickCumulative, beforeOrAt.TickCumulative)

		spCumulative := new(big.Int).Sub(atOrAfter.SecondsPerLiquidityCumulativeX128, beforeOrAt.SecondsPerLiquidityCumulativeX128)
		spCumulative.Mul(spCumulative, big.NewInt(targetDelta))
		spCumulative.Div(spCumulative, big.NewInt(observationTimeDelta))
		spCumulative.Add(spCumulative, beforeOrAt.SecondsPerLiquidityCumulativeX128)

		return tickCumulative, spCumulative, nil
	}
}

// observe resolves a batch of secondsAgos against the ring.
func (o *oracle) observe(
	t uint32, secondsAgos []uint32, tick int64, index uint16, liquidity *big.Int, cardinality uint16,
) (tickCumulatives, secondsPerLiquidityCumulativeX128s []*big.Int, err error) {
	if cardinality == 0 {
		return nil, nil, ErrObservationCardinalityZero
	}

	tickCumulatives = make([]*big.Int, len(secondsAgos))
	secondsPerLiquidityCumulativeX128s = make([]*big.Int, len(secondsAgos))
	for i, secondsAgo := range secondsAgos {
		tc, sp, err := o.observeSingle(t, secondsAgo, tick, index, liquidity, cardinality)
		if err != nil {
			return nil, nil, err
		}
		tickCumulatives[i] = tc
		secondsPerLiquidityCumulativeX128s[i] = sp
	}
	return tickCumulatives, secondsPerLiquidityCumulativeX128s, nil
}
