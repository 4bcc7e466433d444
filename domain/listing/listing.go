package listing

import (
	"fmt"
	"math/big"
	"time"

	"github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/domain"
)

// Listing is one active sell order for one song, normalized at the
// marketplace boundary. PriceAmount is the smallest currency unit and is
// never routed through a floating-point representation.
type Listing struct {
	TokenId       domain.TokenId   `json:"tokenId,omitempty"`
	OrderHash     domain.OrderHash `json:"orderHash,omitempty"`
	PriceAmount   *big.Int         `json:"priceAmount"`
	PriceCurrency string           `json:"priceCurrency"`
	PriceDecimals int32            `json:"priceDecimals"`
	Source        string           `json:"source,omitempty"`
	CreatedAt     time.Time        `json:"createdAt"`
}

// HasTokenId reports whether the marketplace response carried a resolvable
// token id. Listings without one cannot be deduplicated.
func (l Listing) HasTokenId() bool {
	return l.TokenId != ""
}

// Amount returns the price, treating a missing amount as zero so comparisons
// stay total.
func (l Listing) Amount() *big.Int {
	if l.PriceAmount == nil {
		return new(big.Int)
	}
	return l.PriceAmount
}

// PriceClusterKey groups listings with identical prices. Groups reaching the
// cluster threshold are assumed to be bulk-vault artifacts, not genuine
// distinct offers. Empty when the listing carries no price.
func (l Listing) PriceClusterKey() string {
	if l.PriceAmount == nil {
		return ""
	}
	return fmt.Sprintf("%s-%s-%d", l.PriceAmount.String(), l.PriceCurrency, l.PriceDecimals)
}

// TieBreak picks the survivor when two listings for the same song carry
// exactly the same price.
type TieBreak int

const (
	// TieBreakFirstSeen keeps the incumbent; used on the crawl-cache path
	TieBreakFirstSeen TieBreak = iota
	// TieBreakMostRecent prefers the newer CreatedAt; used on the for-sale view
	TieBreakMostRecent
)

// SaleEvent is one marketplace activity record for the collection
type SaleEvent struct {
	TokenId       domain.TokenId `json:"tokenId,omitempty"`
	EventType     string         `json:"eventType"`
	PriceAmount   *big.Int       `json:"priceAmount,omitempty"`
	PriceCurrency string         `json:"priceCurrency,omitempty"`
	PriceDecimals int32          `json:"priceDecimals,omitempty"`
	Seller        domain.Address `json:"seller,omitempty"`
	Buyer         domain.Address `json:"buyer,omitempty"`
	TxHash        domain.TxHash  `json:"txHash,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// ForSaleItem is a cheapest listing decorated for display
type ForSaleItem struct {
	Listing      Listing `json:"listing"`
	DisplayPrice string  `json:"displayPrice"`
	SongName     string  `json:"songName,omitempty"`
}

// ProgressFunc reports a monotonically non-decreasing fraction in [0,1] and a
// human-readable status. Purely observational; it must not affect results.
type ProgressFunc func(progress float64, status string)

type Usecase interface {
	// GetCheapestListings returns at most one listing per song, cheapest
	// first selected, sharing one crawl across concurrent callers
	GetCheapestListings(ctx.Ctx, domain.Address) ([]Listing, error)
	// GetForSale returns cheapest listings sorted by price ascending,
	// decorated with display prices and song titles when available
	GetForSale(ctx.Ctx, domain.Address) ([]ForSaleItem, error)
	// CountListedTokens returns the number of distinct songs with at least
	// one active listing from an allowed source
	CountListedTokens(ctx.Ctx, domain.Address) (int, error)
	// GetTokenListing returns the best listing for one song, nil when the
	// song is not for sale
	GetTokenListing(ctx.Ctx, domain.Address, domain.TokenId) (*Listing, error)
	// GetActivity returns recent marketplace events for the collection
	GetActivity(c ctx.Ctx, contract domain.Address, eventType string, limit int) ([]SaleEvent, error)
	// RefreshListings drops the session cache so the next call crawls anew
	RefreshListings(ctx.Ctx, domain.Address) error
}
