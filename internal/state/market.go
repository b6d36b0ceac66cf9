package state

import "github.com/driftline/driftbot/internal/domain"

// Market is the bot's full derived view of one instrument. Apply is total:
// events for other symbols and malformed events are ignored rather than
// rejected, so a noisy feed cannot halt the pipeline.
type Market struct {
	book     *OrderBook
	position *Position
	prices   *PriceSeries
}

// NewMarket creates a Market for symbol retaining up to maxPricePoints
// price observations.
func NewMarket(symbol string, maxPricePoints int) *Market {
	return &Market{
		book:     NewOrderBook(symbol),
		position: NewPosition(symbol),
		prices:   NewPriceSeries(maxPricePoints),
	}
}

// Book returns the order book view.
func (m *Market) Book() *OrderBook { return m.book }

// Position returns the position view.
func (m *Market) Position() *Position { return m.position }

// Prices returns the price series view.
func (m *Market) Prices() *PriceSeries { return m.prices }

// Symbol returns the instrument this state tracks.
func (m *Market) Symbol() string { return m.book.Symbol() }

// Apply folds one event into the market view.
func (m *Market) Apply(ev domain.Event) {
	switch e := ev.(type) {
	case domain.BookSnapshot:
		if e.Symbol == m.Symbol() {
			m.book.ApplySnapshot(e)
		}
	case domain.BookDelta:
		if e.Symbol == m.Symbol() {
			m.book.ApplyDelta(e)
		}
	case domain.Trade:
		if e.Symbol == m.Symbol() {
			m.prices.observeEvent(e)
		}
	case domain.PriceTick:
		if e.Symbol == m.Symbol() {
			m.prices.observeEvent(e)
			m.position.Mark(e.Price)
		}
	case domain.Fill:
		if e.Symbol == m.Symbol() {
			m.position.ApplyFill(e)
		}
	}
}
