package hookabi

import (
	"encoding/binary"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// --------------------------------------------------------------------------
// Function selectors, keccak-derived from the canonical hook signatures.
// --------------------------------------------------------------------------

var (
	// afterInitialize(uint256,uint256) = 0x837aef47
	SelectorAfterInitialize = selector("afterInitialize(uint256,uint256)")

	// afterSwap((bool,uint256,uint256,uint256,uint256,uint256)) = 0xc2babb57
	SelectorAfterSwap = selector("afterSwap((bool,uint256,uint256,uint256,uint256,uint256))")

	// getName() = 0x17d7de7c
	SelectorGetName = selector("getName()")
)

func selector(signature string) [4]byte {
	var s [4]byte
	copy(s[:], ethcrypto.Keccak256([]byte(signature)))
	return s
}

const (
	wordSize = 32

	// AfterInitializeSize is the afterInitialize calldata length: a selector
	// plus two uint256 words.
	AfterInitializeSize = 4 + 2*wordSize

	// AfterSwapSize is the afterSwap calldata length: a selector plus the
	// six-field trade tuple.
	AfterSwapSize = 4 + 6*wordSize

	// FeePairSize is the (uint256,uint256) return payload length.
	FeePairSize = 2 * wordSize
)

// EncodeAfterInitialize packs the afterInitialize call for a pool seeded
// with the given reserves.
func EncodeAfterInitialize(reserveX, reserveY decimal.Decimal) ([]byte, error) {
	buf := make([]byte, AfterInitializeSize)
	copy(buf[0:4], SelectorAfterInitialize[:])
	if err := putQuantity(buf[4:36], "reserveX", reserveX); err != nil {
		return nil, fmt.Errorf("hookabi: encode afterInitialize: %w", err)
	}
	if err := putQuantity(buf[36:68], "reserveY", reserveY); err != nil {
		return nil, fmt.Errorf("hookabi: encode afterInitialize: %w", err)
	}
	return buf, nil
}

// EncodeAfterSwap packs the afterSwap tuple call for one executed trade.
// The bool word carries the pool side (1 = pool buys X) and the timestamp
// word carries the raw simulation step, unscaled.
func EncodeAfterSwap(trade domain.TradeInfo) ([]byte, error) {
	if trade.Timestamp < 0 {
		return nil, fmt.Errorf("hookabi: encode afterSwap: timestamp %d is negative", trade.Timestamp)
	}

	buf := make([]byte, AfterSwapSize)
	copy(buf[0:4], SelectorAfterSwap[:])
	if trade.Side == domain.SideBuy {
		buf[35] = 1
	}
	if err := putQuantity(buf[36:68], "amountX", trade.AmountX); err != nil {
		return nil, fmt.Errorf("hookabi: encode afterSwap: %w", err)
	}
	if err := putQuantity(buf[68:100], "amountY", trade.AmountY); err != nil {
		return nil, fmt.Errorf("hookabi: encode afterSwap: %w", err)
	}
	binary.BigEndian.PutUint64(buf[124:132], uint64(trade.Timestamp))
	if err := putQuantity(buf[132:164], "reserveX", trade.ReserveX); err != nil {
		return nil, fmt.Errorf("hookabi: encode afterSwap: %w", err)
	}
	if err := putQuantity(buf[164:196], "reserveY", trade.ReserveY); err != nil {
		return nil, fmt.Errorf("hookabi: encode afterSwap: %w", err)
	}
	return buf, nil
}

// EncodeGetName packs the getName probe used to identify a hook.
func EncodeGetName() []byte {
	buf := make([]byte, 4)
	copy(buf, SelectorGetName[:])
	return buf
}

// EncodeFeePair packs a (uint256,uint256) return payload from decimal fee
// rates, the inverse of DecodeFeePair. Replay tapes are built with it.
func EncodeFeePair(bidFee, askFee decimal.Decimal) ([]byte, error) {
	buf := make([]byte, FeePairSize)
	if err := putQuantity(buf[0:32], "bidFee", bidFee); err != nil {
		return nil, fmt.Errorf("hookabi: encode fee pair: %w", err)
	}
	if err := putQuantity(buf[32:64], "askFee", askFee); err != nil {
		return nil, fmt.Errorf("hookabi: encode fee pair: %w", err)
	}
	return buf, nil
}

// DecodeFeePair unpacks a (uint256,uint256) hook return as bid/ask fee
// rates. It reports ok=false when the payload is short, either word
// overflows 128 bits, or either fee exceeds MaxFee. Callers keep their
// current quote in that case instead of failing the swap.
func DecodeFeePair(ret []byte) (quote domain.FeeQuote, ok bool) {
	if len(ret) < FeePairSize {
		return domain.FeeQuote{}, false
	}
	bid, ok := takeWord(ret[0:32])
	if !ok {
		return domain.FeeQuote{}, false
	}
	ask, ok := takeWord(ret[32:64])
	if !ok {
		return domain.FeeQuote{}, false
	}
	if bid.Cmp(MaxFee) > 0 || ask.Cmp(MaxFee) > 0 {
		return domain.FeeQuote{}, false
	}
	return domain.FeeQuote{BidFee: FromWAD(bid), AskFee: FromWAD(ask)}, true
}

// putQuantity writes a decimal quantity as one ABI word: the WAD value
// big-endian in the low 16 bytes, the upper 16 zero.
func putQuantity(word []byte, field string, d decimal.Decimal) error {
	w, err := toWad(d)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	w.FillBytes(word[16:32])
	return nil
}

// takeWord reads one ABI word as a uint128, rejecting dirty upper halves.
func takeWord(word []byte) (*big.Int, bool) {
	for _, b := range word[:16] {
		if b != 0 {
			return nil, false
		}
	}
	return new(big.Int).SetBytes(word[16:32]), true
}
