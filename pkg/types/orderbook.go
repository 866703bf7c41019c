package types

// PriceLevel is a single level of one side of an orderbook.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// Orderbook is a normalized top-of-book snapshot for one outcome token.
// Asks are sorted ascending by price, bids descending. BestAsk/BestBid
// are 0 when the corresponding side is empty.
type Orderbook struct {
	Asks      []PriceLevel `json:"asks"`
	Bids      []PriceLevel `json:"bids"`
	BestAsk   float64      `json:"best_ask"`
	BestBid   float64      `json:"best_bid"`
	SpreadPct float64      `json:"spread_pct"`
	AsksDepth float64      `json:"asks_depth"`
	BidsDepth float64      `json:"bids_depth"`
}

// HasAsk reports whether the book has at least one ask level.
func (o *Orderbook) HasAsk() bool {
	return o != nil && o.BestAsk > 0
}

// HasAskDepth reports whether the cumulative ask size across levels
// covers the required token count.
func (o *Orderbook) HasAskDepth(requiredTokens float64) bool {
	if o == nil {
		return false
	}
	var cumulative float64
	for _, level := range o.Asks {
		cumulative += level.Size
		if cumulative >= requiredTokens {
			return true
		}
	}
	return false
}
