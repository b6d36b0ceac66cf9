package domain

// Side indicates whether an order or trade is on the buy or sell side.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign returns +1 for buys and -1 for sells, the convention used for
// signed position arithmetic.
func (s Side) Sign() int64 {
	if s == SideBuy {
		return 1
	}
	return -1
}
