package engine

import "skoll/internal/common"

// Engine routes operations to per-symbol books and owns the one risk gate
// shared across them. Symbols are opaque strings; a book is created lazily
// on the first submit and lives for the life of the engine.
//
// The engine is single-writer: the caller serializes every call.
type Engine struct {
	books map[string]*OrderBook
	risk  *RiskGate
}

func New() *Engine {
	return NewWithGate(NewRiskGate(DefaultRateCredit))
}

func NewWithGate(risk *RiskGate) *Engine {
	return &Engine{
		books: make(map[string]*OrderBook),
		risk:  risk,
	}
}

func (e *Engine) SetPositionLimit(user, maxQty uint64) {
	e.risk.SetPositionLimit(user, maxQty)
}

func (e *Engine) SetRateLimit(user, credit uint64) {
	e.risk.SetRateCredit(user, credit)
}

// Submit routes an order to its symbol's book, creating the book if this is
// the first order for the symbol.
func (e *Engine) Submit(symbol string, ord common.Order) ([]common.Fill, error) {
	book, ok := e.books[symbol]
	if !ok {
		book = NewOrderBook()
		e.books[symbol] = book
	}
	return book.Submit(ord, e.risk)
}

// Cancel removes a resting order. Unknown symbols and unknown ids both
// report not found.
func (e *Engine) Cancel(symbol string, id uint64) (common.Order, bool) {
	book, ok := e.books[symbol]
	if !ok {
		return common.Order{}, false
	}
	return book.Cancel(id)
}

// Modify is a no-op for unknown symbols and unknown ids.
func (e *Engine) Modify(symbol string, id uint64, newPrice, newQty uint64) {
	if book, ok := e.books[symbol]; ok {
		book.Modify(id, newPrice, newQty)
	}
}

// BatchSubmit submits the orders independently in order. Unlike Submit, an
// unknown symbol does not create a book; the result is empty.
func (e *Engine) BatchSubmit(symbol string, orders []common.Order) []SubmitResult {
	book, ok := e.books[symbol]
	if !ok {
		return nil
	}
	return book.BatchSubmit(orders, e.risk)
}

// L2Snapshot returns up to depth aggregated levels per side, best first.
func (e *Engine) L2Snapshot(symbol string, depth int) (bids, asks []common.Level, ok bool) {
	book, ok := e.books[symbol]
	if !ok {
		return nil, nil, false
	}
	bids, asks = book.L2Snapshot(depth)
	return bids, asks, true
}
