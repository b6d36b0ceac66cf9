// Package paper implements the simulated exchange: a resting-order book for
// the bot's own orders, a trade-driven matching engine with price-time
// priority, and the executor that feeds it. Everything here mutates only on
// the engine's single sequential path; ordering, not locking, is what makes
// cancel-versus-match races impossible.
package paper

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/driftline/driftbot/internal/domain"
)

// level is one price level of resting orders, FIFO by insertion.
type level struct {
	price decimal.Decimal
	queue []domain.OrderID
}

// restingBook indexes the bot's open orders by (side, price) with FIFO
// ordering inside a level. Bids are kept descending and asks ascending so
// the best eligible price of either side is index 0.
type restingBook struct {
	bids   []level
	asks   []level
	orders map[domain.OrderID]*domain.Order
}

func newRestingBook() *restingBook {
	return &restingBook{orders: make(map[domain.OrderID]*domain.Order)}
}

func (b *restingBook) get(id domain.OrderID) (*domain.Order, bool) {
	o, ok := b.orders[id]
	return o, ok
}

func (b *restingBook) len() int { return len(b.orders) }

// insert rests an order. Orders arriving later at the same price queue
// behind earlier ones.
func (b *restingBook) insert(o *domain.Order) {
	b.orders[o.ID] = o
	side := b.sideLevels(o.Side)
	i, found := b.findLevel(o.Side, o.Price)
	if found {
		(*side)[i].queue = append((*side)[i].queue, o.ID)
		return
	}
	*side = append(*side, level{})
	copy((*side)[i+1:], (*side)[i:])
	(*side)[i] = level{price: o.Price, queue: []domain.OrderID{o.ID}}
}

// remove deletes an order from the book, dropping its level when it empties.
func (b *restingBook) remove(id domain.OrderID) (*domain.Order, bool) {
	o, ok := b.orders[id]
	if !ok {
		return nil, false
	}
	delete(b.orders, id)

	side := b.sideLevels(o.Side)
	i, found := b.findLevel(o.Side, o.Price)
	if !found {
		return o, true
	}
	q := (*side)[i].queue
	for j, qid := range q {
		if qid == id {
			(*side)[i].queue = append(q[:j], q[j+1:]...)
			break
		}
	}
	if len((*side)[i].queue) == 0 {
		*side = append((*side)[:i], (*side)[i+1:]...)
	}
	return o, true
}

// eligible returns order ids whose limit crosses the trade price, best
// price first and FIFO within a price level. Buys are eligible at limit ≥
// price, sells at limit ≤ price.
func (b *restingBook) eligible(side domain.Side, price decimal.Decimal) []domain.OrderID {
	var out []domain.OrderID
	levels := b.bids
	if side == domain.SideSell {
		levels = b.asks
	}
	for _, lvl := range levels {
		if side == domain.SideBuy && lvl.price.LessThan(price) {
			break
		}
		if side == domain.SideSell && lvl.price.GreaterThan(price) {
			break
		}
		out = append(out, lvl.queue...)
	}
	return out
}

// all returns every resting order, bids best-first then asks best-first.
func (b *restingBook) all() []domain.Order {
	out := make([]domain.Order, 0, len(b.orders))
	for _, levels := range [][]level{b.bids, b.asks} {
		for _, lvl := range levels {
			for _, id := range lvl.queue {
				if o, ok := b.orders[id]; ok {
					out = append(out, *o)
				}
			}
		}
	}
	return out
}

func (b *restingBook) sideLevels(side domain.Side) *[]level {
	if side == domain.SideBuy {
		return &b.bids
	}
	return &b.asks
}

// findLevel locates price within a side's levels (sorted best first),
// returning the insertion index and whether the level already exists.
func (b *restingBook) findLevel(side domain.Side, price decimal.Decimal) (int, bool) {
	levels := *b.sideLevels(side)
	i := sort.Search(len(levels), func(i int) bool {
		if side == domain.SideBuy {
			return levels[i].price.LessThanOrEqual(price)
		}
		return levels[i].price.GreaterThanOrEqual(price)
	})
	found := i < len(levels) && levels[i].price.Equal(price)
	return i, found
}
