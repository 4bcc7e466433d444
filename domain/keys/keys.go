package keys

import (
	"crypto/md5"
	"fmt"
	"strings"
)

const (
	// PfxCheapestListings prefixes the session cache of the cheapest-listings crawl
	PfxCheapestListings = "cheapestListings"
	// PfxCollectionSlug prefixes resolved collection slugs
	PfxCollectionSlug = "collectionSlug"
	// PfxForSale prefixes the for-sale view reduction
	PfxForSale = "forSale"
	// PfxListedCount prefixes unique listed-token counts
	PfxListedCount = "listedCount"
	// PfxCollectors prefixes ownership reconstruction results
	PfxCollectors = "collectors"
	// PfxSongTitles prefixes search-index title lookups
	PfxSongTitles = "songTitles"
	// PfxHealthCheck prefixes healthcheck roundtrip pings
	PfxHealthCheck = "healthCheck"
)

// MD5 hashes the data with md5
func MD5(data string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(data)))
}

// CustomKey is used to join the customized key by componets with specified delimiter
func CustomKey(delimiter string, components ...string) string {
	return strings.Join(components, delimiter)
}

// CacheKey is used to join the cache key by componets
func CacheKey(components ...string) string {
	return CustomKey(":", components...)
}
