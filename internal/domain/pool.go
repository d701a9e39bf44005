package domain

import "github.com/shopspring/decimal"

// Pool is the trading surface a market venue exposes to solvers and the
// simulation engine. Amounts are denominated in the pool's X and Y assets;
// timestamps are logical simulation steps.
//
// Methods follow two failure conventions: structural misuse (trading before
// Initialize, double initialization, a failing strategy callback) returns an
// error, while an infeasible request on a healthy pool (non-positive size,
// output exceeding reserves) returns nil results and a nil error. Callers
// must treat a nil quote or trade as "no fill", not as a fault.
type Pool interface {
	Name() string
	Initialized() bool
	ReserveX() decimal.Decimal
	ReserveY() decimal.Decimal
	Reserves() (x, y decimal.Decimal)
	K() decimal.Decimal
	SpotPrice() decimal.Decimal
	AccumulatedFees() (feesX, feesY decimal.Decimal)
	CurrentFees() FeeQuote
	TradeCount() uint64

	// Initialize obtains the opening fees from the strategy's
	// AfterInitialize hook. Calling it twice returns
	// ErrPoolAlreadyInitialized.
	Initialize() error

	// Flush applies a pending deferred fee update immediately.
	Flush() error

	// QuoteBuyX previews the pool buying amountX of X from a trader.
	QuoteBuyX(amountX decimal.Decimal) (*Quote, error)
	// QuoteSellX previews the pool selling amountX of X to a trader.
	QuoteSellX(amountX decimal.Decimal) (*Quote, error)
	// QuoteXForY previews a trader spending amountY of Y, gross of fees.
	QuoteXForY(amountY decimal.Decimal) (*Quote, error)

	// EstimateBuyX is the float fast path for QuoteBuyX, returning the Y
	// paid out and the X fee. A zero output means the request is
	// infeasible.
	EstimateBuyX(amountX float64) (amountYOut, feeX float64)
	// EstimateSellX is the float fast path for QuoteSellX, returning the
	// gross Y owed and the Y fee.
	EstimateSellX(amountX float64) (amountYIn, feeY float64)
	// EstimateXForY is the float fast path for QuoteXForY, returning the X
	// paid out and the Y fee.
	EstimateXForY(amountY float64) (amountXOut, feeY float64)

	// ExecuteBuyX swaps amountX of X into the pool for Y.
	ExecuteBuyX(amountX decimal.Decimal, ts int64) (*TradeInfo, error)
	// ExecuteSellX swaps Y into the pool for amountX of X out.
	ExecuteSellX(amountX decimal.Decimal, ts int64) (*TradeInfo, error)
	// ExecuteBuyXWithY swaps amountY of Y, gross of fees, into the pool
	// for X.
	ExecuteBuyXWithY(amountY decimal.Decimal, ts int64) (*TradeInfo, error)
}
