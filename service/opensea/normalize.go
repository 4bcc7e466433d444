package opensea

import (
	"math/big"
	"time"

	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/listing"
)

// normalizeListing converts a wire listing into the canonical domain type.
// All the optional-field fallbacks live here so downstream logic never
// touches raw marketplace shapes.
func normalizeListing(raw rawListing) listing.Listing {
	l := listing.Listing{
		OrderHash:     domain.OrderHash(raw.OrderHash),
		PriceCurrency: raw.Price.Current.Currency,
		PriceDecimals: raw.Price.Current.Decimals,
		PriceAmount:   parseAmount(raw.Price.Current.Value),
		Source:        listingSource(raw),
		CreatedAt:     listingCreatedAt(raw),
	}

	if offers := raw.ProtocolData.Parameters.Offer; len(offers) > 0 {
		if id, err := domain.TokenId(offers[0].IdentifierOrCriteria).Normalize(); err == nil {
			l.TokenId = id
		}
	}

	return l
}

// parseAmount never yields nil; a missing or unparseable value becomes zero
// so price comparisons stay total
func parseAmount(value string) *big.Int {
	if value == "" {
		return new(big.Int)
	}
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return new(big.Int)
	}
	return amount
}

// listingSource returns the first recorded marketplace name; different order
// versions populate different fields
func listingSource(raw rawListing) string {
	for _, src := range []string{raw.OrderSource, raw.OrderSourceName, raw.OrderProvider} {
		if src != "" {
			return src
		}
	}
	return ""
}

// listingCreatedAt returns the first parseable creation timestamp, zero when
// the order carries none. Only used as a tie-break so zero is harmless.
func listingCreatedAt(raw rawListing) time.Time {
	layouts := []string{time.RFC3339, "2006-01-02T15:04:05"}
	for _, candidate := range []string{raw.CreatedDate, raw.OrderCreatedDate, raw.ListingDate, raw.UpdatedDate} {
		if candidate == "" {
			continue
		}
		for _, layout := range layouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}

func normalizeEvent(raw rawEvent) listing.SaleEvent {
	ev := listing.SaleEvent{
		EventType:     raw.EventType,
		PriceCurrency: raw.Payment.Symbol,
		PriceDecimals: raw.Payment.Decimals,
		Seller:        domain.Address(raw.Seller).ToLower(),
		Buyer:         domain.Address(raw.Buyer).ToLower(),
		TxHash:        domain.TxHash(raw.Transaction),
	}
	if raw.Payment.Quantity != "" {
		ev.PriceAmount = parseAmount(raw.Payment.Quantity)
	}
	if raw.EventTimestamp > 0 {
		ev.Timestamp = time.Unix(raw.EventTimestamp, 0).UTC()
	}
	if id, err := domain.TokenId(raw.Nft.Identifier).Normalize(); err == nil {
		ev.TokenId = id
	}
	return ev
}
