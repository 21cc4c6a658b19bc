package common

// All prices and quantities are unsigned fixed-point integers. A submitted
// price or quantity must be an exact multiple of Precision.
const (
	Precision uint64 = 100_000_000
	MinPrice  uint64 = 1 * Precision
	MaxPrice  uint64 = 1_000_000 * Precision
)

type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	switch s {
	case Bid:
		return "bid"
	case Ask:
		return "ask"
	}
	return "unknown"
}

type OrderType uint8

const (
	// Market orders are instructions to buy or sell immediately. They sweep
	// the opposite side regardless of price and never rest; any unfilled
	// remainder is discarded.
	Market OrderType = iota
	// Limit orders execute at the given price or better. Any unfilled
	// remainder rests on the book.
	Limit
	// PostOnly orders rest at their price, but are dropped silently if they
	// would match the best opposite level on arrival.
	PostOnly
	// IOC (immediate-or-cancel) orders match like a limit order but any
	// unfilled remainder is discarded instead of resting.
	IOC
	// FOK (fill-or-kill) orders execute in full immediately or not at all.
	FOK
)

// MakerOnly is a synonym for PostOnly with identical semantics.
const MakerOnly = PostOnly

func (t OrderType) String() string {
	switch t {
	case Market:
		return "market"
	case Limit:
		return "limit"
	case PostOnly:
		return "post-only"
	case IOC:
		return "ioc"
	case FOK:
		return "fok"
	}
	return "unknown"
}
