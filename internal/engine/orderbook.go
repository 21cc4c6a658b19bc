package engine

import (
	"github.com/tidwall/btree"

	"skoll/internal/common"
)

// priceLevel holds the orders resting at one price on one side, as arena
// handles in arrival order (head is oldest).
type priceLevel struct {
	price uint64
	queue []int
}

type priceLevels = btree.BTreeG[*priceLevel]

// OrderBook is the two-sided book for a single symbol. Both sides live in a
// btree of price levels whose comparators are inverted relative to each
// other, so a Scan of either side always visits best price first. The book
// is not safe for concurrent use; the caller serializes every call.
type OrderBook struct {
	bids *priceLevels
	asks *priceLevels

	// Resting orders live in the arena; byID maps an order id to its handle.
	orders arena
	byID   map[uint64]int
}

func NewOrderBook() *OrderBook {
	// Sorted greatest first.
	bids := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price > b.price
	})
	// Sorted least first.
	asks := btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price < b.price
	})
	return &OrderBook{
		bids: bids,
		asks: asks,
		byID: make(map[uint64]int),
	}
}

// SubmitResult is the outcome of one order within a batch.
type SubmitResult struct {
	Fills []common.Fill
	Err   error
}

// Submit validates an incoming order against quantization, range and the
// risk gate, then routes it by order type. Returns the fills produced, in
// execution order. A rejection leaves the book untouched.
//
// Rate credit is consumed for every order that clears the position check,
// including orders the book then declines to fill or rest.
func (book *OrderBook) Submit(ord common.Order, risk *RiskGate) ([]common.Fill, error) {
	if ord.Price%common.Precision != 0 || ord.Qty%common.Precision != 0 ||
		ord.Price < common.MinPrice || ord.Price > common.MaxPrice {
		return nil, common.ErrPriceOutOfRange
	}
	if risk.ExceedsPosition(ord.UserID, ord.Qty) {
		return nil, common.ErrPositionLimit
	}
	if risk.ConsumeRate(ord.UserID) {
		return nil, common.ErrRateLimit
	}

	ord.Remaining = ord.Qty

	var fills []common.Fill
	switch ord.Type {
	case common.Market:
		// Sweep regardless of price; any remainder is discarded.
		fills = book.match(&ord, true)
	case common.Limit:
		fills = book.match(&ord, false)
		if ord.Remaining > 0 {
			book.rest(ord)
		}
	case common.PostOnly:
		// A post-only order that would take liquidity is dropped silently:
		// no fills, no resting order, no error.
		if !book.wouldMatch(ord) {
			book.rest(ord)
		}
	case common.IOC:
		fills = book.match(&ord, false)
	case common.FOK:
		if book.canFullMatch(ord) {
			fills = book.match(&ord, false)
		}
	}
	return fills, nil
}

// BatchSubmit runs each order through Submit independently, in order. A
// failed order does not abort the rest of the batch.
func (book *OrderBook) BatchSubmit(orders []common.Order, risk *RiskGate) []SubmitResult {
	results := make([]SubmitResult, len(orders))
	for i, ord := range orders {
		fills, err := book.Submit(ord, risk)
		results[i] = SubmitResult{Fills: fills, Err: err}
	}
	return results
}

// match walks the opposite side best price first and consumes resting
// liquidity in price-time priority. Resting orders owned by the taker's user
// are skipped in place, not cancelled. With ignorePrice the walk runs until
// the taker is filled or the side is exhausted.
func (book *OrderBook) match(taker *common.Order, ignorePrice bool) []common.Fill {
	opposite := book.asks
	if taker.Side == common.Ask {
		opposite = book.bids
	}

	var fills []common.Fill
	var emptied []*priceLevel
	opposite.Scan(func(level *priceLevel) bool {
		if taker.Remaining == 0 || (!ignorePrice && priceWorse(taker, level.price)) {
			return false
		}

		// Walk the queue head to tail, compacting consumed makers out of it
		// in place. Skipped and partially filled makers keep their slot.
		kept := level.queue[:0]
		for _, h := range level.queue {
			maker := book.orders.at(h)
			if taker.Remaining == 0 || maker.UserID == taker.UserID {
				kept = append(kept, h)
				continue
			}

			fillQty := min(taker.Remaining, maker.Remaining)
			taker.Remaining -= fillQty
			maker.Remaining -= fillQty
			fills = append(fills, common.Fill{
				MakerID: maker.ID,
				TakerID: taker.ID,
				Price:   level.price,
				Qty:     fillQty,
			})

			if maker.Remaining == 0 {
				delete(book.byID, maker.ID)
				book.orders.remove(h)
			} else {
				kept = append(kept, h)
			}
		}
		level.queue = kept

		// Deleting mid-scan would invalidate the iteration; collect the
		// empty levels and drop them after.
		if len(level.queue) == 0 {
			emptied = append(emptied, level)
		}
		return taker.Remaining > 0
	})

	for _, level := range emptied {
		opposite.Delete(level)
	}
	return fills
}

// wouldMatch reports whether the order would trade against the best opposite
// level. Only the best level matters: a crossing order always crosses the
// best first.
func (book *OrderBook) wouldMatch(ord common.Order) bool {
	switch ord.Side {
	case common.Bid:
		if best, ok := book.asks.Min(); ok {
			return ord.Price >= best.price
		}
	case common.Ask:
		// Min is the highest bid, the comparator is inverted.
		if best, ok := book.bids.Min(); ok {
			return ord.Price <= best.price
		}
	}
	return false
}

// canFullMatch pre-scans the opposite side and reports whether the order's
// full quantity is covered at acceptable prices. Resting quantity owned by
// the same user is excluded, since the match would skip it; counting it
// would let a fill-or-kill pass the scan and then under-fill.
func (book *OrderBook) canFullMatch(ord common.Order) bool {
	opposite := book.asks
	if ord.Side == common.Ask {
		opposite = book.bids
	}

	needed := ord.Qty
	opposite.Scan(func(level *priceLevel) bool {
		if priceWorse(&ord, level.price) {
			return false
		}
		for _, h := range level.queue {
			maker := book.orders.at(h)
			if maker.UserID == ord.UserID {
				continue
			}
			if maker.Remaining >= needed {
				needed = 0
				return false
			}
			needed -= maker.Remaining
		}
		return true
	})
	return needed == 0
}

// Cancel removes a resting order and returns its descriptor, including the
// remaining quantity at the time of removal.
func (book *OrderBook) Cancel(id uint64) (common.Order, bool) {
	h, ok := book.byID[id]
	if !ok {
		return common.Order{}, false
	}
	ord := *book.orders.at(h)

	side := book.bids
	if ord.Side == common.Ask {
		side = book.asks
	}
	if level, ok := side.GetMut(&priceLevel{price: ord.Price}); ok {
		for i, qh := range level.queue {
			if qh == h {
				level.queue = append(level.queue[:i], level.queue[i+1:]...)
				break
			}
		}
		if len(level.queue) == 0 {
			side.Delete(level)
		}
	}

	delete(book.byID, id)
	book.orders.remove(h)
	return ord, true
}

// Modify cancels and re-adds a resting order with the updated fields, without
// re-running the risk gate and without rematching. Zero means leave the field
// unchanged (zero is never a valid price; a quantity cannot be modified to
// zero). The order always loses
// its time priority; a new quantity resets both qty and remaining. Unknown
// ids are a no-op.
func (book *OrderBook) Modify(id uint64, newPrice, newQty uint64) {
	ord, ok := book.Cancel(id)
	if !ok {
		return
	}
	if newPrice != 0 {
		ord.Price = newPrice
	}
	if newQty != 0 {
		ord.Qty = newQty
		ord.Remaining = newQty
	}
	book.rest(ord)
}

// L2Snapshot aggregates remaining quantity per price level, up to depth best
// levels per side. Bids come back in descending price order, asks ascending.
func (book *OrderBook) L2Snapshot(depth int) (bids, asks []common.Level) {
	return book.aggregate(book.bids, depth), book.aggregate(book.asks, depth)
}

func (book *OrderBook) aggregate(side *priceLevels, depth int) []common.Level {
	levels := make([]common.Level, 0, depth)
	side.Scan(func(level *priceLevel) bool {
		if len(levels) == depth {
			return false
		}
		var total uint64
		for _, h := range level.queue {
			total += book.orders.at(h).Remaining
		}
		levels = append(levels, common.Level{Price: level.price, Qty: total})
		return true
	})
	return levels
}

// rest parks an order on its own side at its price, creating the level if
// this is the first order there.
func (book *OrderBook) rest(ord common.Order) {
	h := book.orders.insert(ord)
	book.byID[ord.ID] = h

	side := book.bids
	if ord.Side == common.Ask {
		side = book.asks
	}
	// The comparator only looks at price, so a probe level finds the slot.
	if level, ok := side.GetMut(&priceLevel{price: ord.Price}); ok {
		level.queue = append(level.queue, h)
	} else {
		side.Set(&priceLevel{price: ord.Price, queue: []int{h}})
	}
}

// priceWorse reports whether the level price is unacceptable to the taker:
// a bid below the ask level, or an ask above the bid level.
func priceWorse(taker *common.Order, levelPrice uint64) bool {
	if taker.Side == common.Bid {
		return taker.Price < levelPrice
	}
	return taker.Price > levelPrice
}
