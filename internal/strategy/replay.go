package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/ammarena/internal/domain"
	"github.com/alanyoungcy/ammarena/internal/hookabi"
)

// Replay drives a pool with fee quotes recorded from a real hook contract.
// Each AfterSwap consumes the next (uint256,uint256) return frame from the
// tape. Malformed or out-of-range frames keep the current quote, the same
// soft failure applied to live hook calls; once the tape runs out the last
// quote holds.
type Replay struct {
	name    string
	opening domain.FeeQuote
	frames  [][]byte
	cursor  int
}

var _ domain.Strategy = (*Replay)(nil)

// NewReplay builds a strategy from recorded hook return frames. The opening
// quote prices the pool until the first frame lands.
func NewReplay(name string, opening domain.FeeQuote, frames [][]byte) (*Replay, error) {
	if name == "" {
		return nil, fmt.Errorf("strategy: replay: name required")
	}
	return &Replay{name: name, opening: opening, frames: frames}, nil
}

// Name returns the strategy identifier.
func (r *Replay) Name() string { return r.name }

// AfterInitialize rewinds the tape and sets the opening quote.
func (r *Replay) AfterInitialize(reserveX, reserveY decimal.Decimal) (*domain.FeeQuote, error) {
	r.cursor = 0
	fees := r.opening
	return &fees, nil
}

// AfterSwap pops the next frame.
func (r *Replay) AfterSwap(trade domain.TradeInfo) (*domain.FeeQuote, error) {
	if r.cursor >= len(r.frames) {
		return nil, nil
	}
	frame := r.frames[r.cursor]
	r.cursor++

	quote, ok := hookabi.DecodeFeePair(frame)
	if !ok {
		return nil, nil
	}
	return &quote, nil
}
