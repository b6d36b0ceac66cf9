// Package state holds the bot's derived view of the market: order book,
// position, and price series. Every type mutates only through Apply-style
// methods called on the engine's single sequential path, so none of them
// carries a lock.
package state

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
)

// OrderBook maintains bid and ask levels for one symbol. Levels are unique
// by price; bids are kept descending and asks ascending so the best level of
// either side is index 0. Lookups are binary searches; a delta touches at
// most one level.
type OrderBook struct {
	symbol string
	bids   []domain.BookLevel
	asks   []domain.BookLevel
}

// NewOrderBook creates an empty book for symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{symbol: symbol}
}

// Symbol returns the symbol this book tracks.
func (b *OrderBook) Symbol() string { return b.symbol }

// ApplySnapshot replaces the whole book. Zero-quantity levels in the
// snapshot are discarded and each side is re-sorted, so a malformed feed
// snapshot cannot leave the book out of order.
func (b *OrderBook) ApplySnapshot(snap domain.BookSnapshot) {
	b.bids = normalizeLevels(snap.Bids, true)
	b.asks = normalizeLevels(snap.Asks, false)
}

// ApplyDelta inserts or overwrites one price level, or removes it when the
// delta quantity is zero.
func (b *OrderBook) ApplyDelta(d domain.BookDelta) {
	if d.Side == domain.SideBuy {
		b.bids = applyLevel(b.bids, d.Price, d.Qty, true)
	} else {
		b.asks = applyLevel(b.asks, d.Price, d.Qty, false)
	}
}

// BestBid returns the highest bid level.
func (b *OrderBook) BestBid() (domain.BookLevel, bool) {
	if len(b.bids) == 0 {
		return domain.BookLevel{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest ask level.
func (b *OrderBook) BestAsk() (domain.BookLevel, bool) {
	if len(b.asks) == 0 {
		return domain.BookLevel{}, false
	}
	return b.asks[0], true
}

// MidPrice returns the midpoint between best bid and best ask. It is absent
// until both sides of the book have at least one level.
func (b *OrderBook) MidPrice() (decimal.Decimal, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Depth returns the number of levels on each side.
func (b *OrderBook) Depth() (bids, asks int) {
	return len(b.bids), len(b.asks)
}

// Bids returns a copy of the bid levels, best first.
func (b *OrderBook) Bids() []domain.BookLevel {
	out := make([]domain.BookLevel, len(b.bids))
	copy(out, b.bids)
	return out
}

// Asks returns a copy of the ask levels, best first.
func (b *OrderBook) Asks() []domain.BookLevel {
	out := make([]domain.BookLevel, len(b.asks))
	copy(out, b.asks)
	return out
}

// levelIndex finds the position of price in levels, which are sorted best
// first. It returns the index and whether the price is already present.
func levelIndex(levels []domain.BookLevel, price decimal.Decimal, isBid bool) (int, bool) {
	i := sort.Search(len(levels), func(i int) bool {
		if isBid {
			return levels[i].Price.LessThanOrEqual(price)
		}
		return levels[i].Price.GreaterThanOrEqual(price)
	})
	found := i < len(levels) && levels[i].Price.Equal(price)
	return i, found
}

func applyLevel(levels []domain.BookLevel, price, qty decimal.Decimal, isBid bool) []domain.BookLevel {
	i, found := levelIndex(levels, price, isBid)

	if qty.IsZero() || qty.IsNegative() {
		if !found {
			return levels
		}
		return append(levels[:i], levels[i+1:]...)
	}

	if found {
		levels[i].Qty = qty
		return levels
	}

	levels = append(levels, domain.BookLevel{})
	copy(levels[i+1:], levels[i:])
	levels[i] = domain.BookLevel{Price: price, Qty: qty}
	return levels
}

func normalizeLevels(src []domain.BookLevel, isBid bool) []domain.BookLevel {
	out := make([]domain.BookLevel, 0, len(src))
	for _, lvl := range src {
		if lvl.Qty.IsPositive() {
			out = append(out, lvl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if isBid {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}
