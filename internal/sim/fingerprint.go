package sim

import (
	"encoding/hex"
	"fmt"
	"hash"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"

	"github.com/alanyoungcy/ammarena/internal/domain"
)

// Fingerprinter folds a simulation's canonical event stream into a SHA3-256
// digest. The stream is one line per event, pipe-separated, with every amount
// rendered as a decimal string, so two runs share a digest exactly when they
// executed the same trades at the same prices.
type Fingerprinter struct {
	h hash.Hash
}

func NewFingerprinter() *Fingerprinter {
	return &Fingerprinter{h: sha3.New256()}
}

// WriteHeader records the run parameters that frame the event stream.
func (f *Fingerprinter) WriteHeader(seed int64, steps int, pools []string) {
	fmt.Fprintf(f.h, "run|%d|%d", seed, steps)
	for _, p := range pools {
		fmt.Fprintf(f.h, "|%s", p)
	}
	fmt.Fprint(f.h, "\n")
}

// WritePrice records the fair price for one step.
func (f *Fingerprinter) WritePrice(step int, fair decimal.Decimal) {
	fmt.Fprintf(f.h, "%d|price|%s\n", step, fair)
}

// WriteTrade records one executed swap with the pool's post-trade reserves.
func (f *Fingerprinter) WriteTrade(step int, pool string, side domain.TradeSide, amountX, amountY, reserveX, reserveY decimal.Decimal) {
	fmt.Fprintf(f.h, "%d|%s|%s|%s|%s|%s|%s\n", step, pool, side, amountX, amountY, reserveX, reserveY)
}

// Hex returns the digest of everything written so far as lowercase hex.
func (f *Fingerprinter) Hex() string {
	return hex.EncodeToString(f.h.Sum(nil))
}
