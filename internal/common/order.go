package common

import "fmt"

type Order struct {
	ID        uint64    // Globally unique order identifier
	UserID    uint64    // Who owns this order
	Type      OrderType // Order type
	Side      Side      // Order side
	Price     uint64    // Limiting price, Precision units
	Qty       uint64    // Total volume requested
	Remaining uint64    // Remaining quantity
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s #%d user=%d %d@%d (remaining %d)",
		o.Type, o.Side, o.ID, o.UserID, o.Qty, o.Price, o.Remaining)
}
