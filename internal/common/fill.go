package common

import "fmt"

// Fill records one trade between a resting maker and an incoming taker.
// The price is always the maker's resting price.
type Fill struct {
	MakerID uint64
	TakerID uint64
	Price   uint64
	Qty     uint64
}

func (f Fill) String() string {
	return fmt.Sprintf("fill maker=%d taker=%d %d@%d", f.MakerID, f.TakerID, f.Qty, f.Price)
}

// Level is one aggregated price level of an L2 snapshot: the sum of the
// remaining quantities of every order resting at Price.
type Level struct {
	Price uint64
	Qty   uint64
}
