package indicator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNATR_ReferenceSeries(t *testing.T) {
	natr := NewNATR(4, 1000)

	prices := []string{
		"100", // seeds the first candle
		// Candle 1: open 100, high 102, low 98, close 100 -> TR 4
		"100", "102", "98", "100",
		// Candle 2: open 100, high 105, low 99, close 102 -> TR 6
		"102", "105", "99", "102",
		// Candle 3: open 102, high 107, low 100, close 105 -> TR 7
		"105", "107", "100", "105",
		// Candle 4: open 105, high 106, low 101, close 103 -> TR 5
		"103", "106", "101", "103",
	}

	for i, p := range prices {
		natr.Update(decimal.RequireFromString(p), 1+int64(i)*250)
	}

	// ATR = (4+6+7+5)/4 = 5.5; NATR = 5.5/103*100.
	v, ok := natr.Value()
	require.True(t, ok)
	assert.True(t, v.Round(4).Equal(decimal.RequireFromString("5.3398")), "got %s", v)
}

func TestNATR_NotReadyBeforePeriodCandles(t *testing.T) {
	natr := NewNATR(4, 1000)

	// Three full candles only.
	for i := 0; i < 13; i++ {
		natr.Update(decimal.NewFromInt(100), 1+int64(i)*250)
	}
	_, ok := natr.Value()
	assert.False(t, ok)
}

func TestNATR_FlatPricesReadZero(t *testing.T) {
	natr := NewNATR(2, 1000)

	for i := 0; i < 9; i++ {
		natr.Update(decimal.NewFromInt(100), 1+int64(i)*250)
	}

	v, ok := natr.Value()
	require.True(t, ok)
	assert.True(t, v.IsZero())
}

func TestNATR_Reset(t *testing.T) {
	natr := NewNATR(1, 1000)
	natr.Update(decimal.NewFromInt(100), 1)
	natr.Update(decimal.NewFromInt(104), 1001)
	_, ok := natr.Value()
	require.True(t, ok)

	natr.Reset()
	_, ok = natr.Value()
	assert.False(t, ok)
}
