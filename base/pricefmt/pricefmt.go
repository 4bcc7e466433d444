// Package pricefmt converts smallest-unit integer amounts into display
// prices. Comparisons never go through this package; amounts stay big.Int
// wherever they are ordered or deduplicated.
package pricefmt

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/songgrid/goapi/domain/listing"
)

// FromWei returns the display-unit price for a smallest-unit amount.
func FromWei(amount *big.Int, decimals int32) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -decimals)
}

// FormatListing renders the listing's price in display units, e.g. "1.95"
// for 1950000000000000000 wei at 18 decimals.
func FormatListing(l listing.Listing) string {
	return FromWei(l.PriceAmount, l.PriceDecimals).String()
}
