// Package tickbitmap implements the sparse set of initialized ticks as a
// word-packed bitmap, mirroring Uniswap V3's TickBitmap library: bit b of
// word w corresponds to compressed tick w*256 + b, where compressed is the
// tick divided by the pool's tick spacing (floored toward negative
// infinity). Each word is backed by a bitset.BitSet of 256 bits, so a
// flipTick is a single Set/Unset and a same-word tick search is a masked
// BitSet.MSBUpTo/LSBFrom lookup.
package tickbitmap

import (
	"errors"

	"github.com/clmmcore/engine/bitset"
)

const wordBits = 256

var ErrTickNotSpaced = errors.New("tick is not a multiple of tickSpacing")

// TickBitmap is the sparse, word-indexed initialized-tick set for one pool.
// The zero value is not ready to use; call New. An unseen word reads as
// all-zero, which is what makes reading an uninitialized tick return
// "not initialized" without first touching the map.
type TickBitmap struct {
	words map[int16]bitset.BitSet
}

// New returns an empty TickBitmap.
func New() *TickBitmap {
	return &TickBitmap{words: make(map[int16]bitset.BitSet)}
}

// compress floors tick/tickSpacing toward negative infinity (tickSpacing is
// always positive per the pool's immutable configuration).
func compress(tick, tickSpacing int64) int64 {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	return compressed
}

// position splits a compressed tick into its word index and bit offset.
// The shift and mask both rely on Go's two's-complement semantics for
// power-of-two divisors, so this is correct for negative compressed ticks
// without a separate floor-mod branch.
func position(compressed int64) (wordPos int16, bitPos uint8) {
	return int16(compressed >> 8), uint8(compressed & (wordBits - 1))
}

func (tb *TickBitmap) wordOrZero(wordPos int16) bitset.BitSet {
	if w, ok := tb.words[wordPos]; ok {
		return w
	}
	return bitset.NewBitSet(wordBits)
}

// FlipTick toggles the initialized bit for tick. tick must be a multiple of
// tickSpacing.
func (tb *TickBitmap) FlipTick(tick, tickSpacing int64) error {
	if tick%tickSpacing != 0 {
		return ErrTickNotSpaced
	}
	wordPos, bitPos := position(compress(tick, tickSpacing))
	word, ok := tb.words[wordPos]
	if !ok {
		word = bitset.NewBitSet(wordBits)
		tb.words[wordPos] = word
	}
	if word.IsSet(uint64(bitPos)) {
		word.Unset(uint64(bitPos))
	} else {
		word.Set(uint64(bitPos))
	}
	return nil
}

// IsInitialized reports whether tick's bit is set.
func (tb *TickBitmap) IsInitialized(tick, tickSpacing int64) bool {
	wordPos, bitPos := position(compress(tick, tickSpacing))
	return tb.wordOrZero(wordPos).IsSet(uint64(bitPos))
}

// NextInitializedTickWithinOneWord finds the next initialized tick in the
// same 256-bit word as tick, falling through to the word's boundary tick
// when the word holds no further initialized bit in the search direction —
// this fallthrough is what lets the swap loop make progress across empty
// words without special-casing them.
//
// If lte is true, it searches at or below tick (the word's bottom tick is
// returned, uninitialized, when nothing qualifies). If lte is false, it
// searches strictly above tick (the top tick of the word holding the next
// compressed tick is returned, uninitialized, when nothing qualifies).
func (tb *TickBitmap) NextInitializedTickWithinOneWord(tick, tickSpacing int64, lte bool) (next int64, initialized bool) {
	compressed := compress(tick, tickSpacing)

	if lte {
		wordPos, bitPos := position(compressed)
		word := tb.wordOrZero(wordPos)
		if msb, ok := word.MSBUpTo(uint64(bitPos)); ok {
			return (compressed - (int64(bitPos) - int64(msb))) * tickSpacing, true
		}
		return (compressed - int64(bitPos)) * tickSpacing, false
	}

	compressed++
	wordPos, bitPos := position(compressed)
	word := tb.wordOrZero(wordPos)
	if lsb, ok := word.LSBFrom(uint64(bitPos)); ok {
		return (compressed + (int64(lsb) - int64(bitPos))) * tickSpacing, true
	}
	return (compressed + (wordBits - 1 - int64(bitPos))) * tickSpacing, false
}
