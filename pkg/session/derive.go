package session

import (
	"math"

	"github.com/dustin/go-humanize"
)

// Derive returns balance * price rounded to two fraction digits
func Derive(balance, price float64) float64 {
	return math.Round(balance*price*100) / 100
}

// FormatUSD renders a USD amount with thousands separators and two fraction digits
func FormatUSD(v float64) string {
	return humanize.FormatFloat("#,###.##", v)
}
