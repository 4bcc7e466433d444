package usecase

import (
	"strings"

	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/listing"
)

// DefaultClusterThreshold is the price-cluster size at which listings are
// assumed to be bulk-vault artifacts rather than genuine distinct offers
const DefaultClusterThreshold = 10

// FilterListings applies the source allow-list and then the price-cluster
// filter. A listing with no recorded source survives the source filter; an
// empty allow-list keeps everything. A threshold of zero or less disables
// the cluster filter.
func FilterListings(ls []listing.Listing, allowedSources []string, clusterThreshold int) []listing.Listing {
	filtered := make([]listing.Listing, 0, len(ls))
	for _, l := range ls {
		if sourceAllowed(l.Source, allowedSources) {
			filtered = append(filtered, l)
		}
	}

	if clusterThreshold <= 0 {
		return filtered
	}

	clusterSize := map[string]int{}
	for _, l := range filtered {
		if key := l.PriceClusterKey(); key != "" {
			clusterSize[key]++
		}
	}

	out := make([]listing.Listing, 0, len(filtered))
	for _, l := range filtered {
		key := l.PriceClusterKey()
		if key != "" && clusterSize[key] >= clusterThreshold {
			continue
		}
		out = append(out, l)
	}
	return out
}

func sourceAllowed(source string, allowedSources []string) bool {
	if source == "" || len(allowedSources) == 0 {
		return true
	}
	lowered := strings.ToLower(source)
	for _, allowed := range allowedSources {
		if strings.Contains(lowered, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}

// ReduceCheapest keeps at most one listing per song, the one with the lowest
// price. Listings whose token id could not be resolved pass through
// untouched. Equal prices resolve per the tie-break policy. Output order is
// the first-appearance order of each song.
func ReduceCheapest(ls []listing.Listing, tie listing.TieBreak) []listing.Listing {
	out := make([]listing.Listing, 0, len(ls))
	index := map[domain.TokenId]int{}

	for _, l := range ls {
		if !l.HasTokenId() {
			out = append(out, l)
			continue
		}

		at, seen := index[l.TokenId]
		if !seen {
			index[l.TokenId] = len(out)
			out = append(out, l)
			continue
		}

		incumbent := out[at]
		switch cmp := l.Amount().Cmp(incumbent.Amount()); {
		case cmp < 0:
			out[at] = l
		case cmp == 0 && tie == listing.TieBreakMostRecent && l.CreatedAt.After(incumbent.CreatedAt):
			out[at] = l
		}
	}
	return out
}

// CountUniqueTokens counts distinct resolvable songs among the listings
func CountUniqueTokens(ls []listing.Listing) int {
	seen := map[domain.TokenId]struct{}{}
	for _, l := range ls {
		if l.HasTokenId() {
			seen[l.TokenId] = struct{}{}
		}
	}
	return len(seen)
}
