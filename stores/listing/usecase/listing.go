package usecase

import (
	"sort"
	"time"

	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/log"
	"github.com/songgrid/goapi/base/metrics"
	"github.com/songgrid/goapi/base/pricefmt"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/keys"
	"github.com/songgrid/goapi/domain/listing"
	"github.com/songgrid/goapi/domain/search"
	"github.com/songgrid/goapi/service/cache"
	"github.com/songgrid/goapi/service/cache/provider"
	"github.com/songgrid/goapi/service/opensea"
)

type ListingUseCaseCfg struct {
	Opensea opensea.Client
	// Search decorates for-sale rows with song titles; nil disables the
	// decoration without affecting listings
	Search        search.Usecase
	CacheProvider provider.Provider
	// CacheTtl of zero keeps crawl results for the process lifetime
	CacheTtl time.Duration
	// AllowedSources keeps only listings whose marketplace name contains one
	// of these substrings; empty keeps everything
	AllowedSources []string
	// ClusterThreshold drops price groups of this size and larger; zero means
	// DefaultClusterThreshold, negative disables the filter
	ClusterThreshold int
	PageSize         int
	MaxPages         int
	PageDelay        time.Duration
}

type impl struct {
	opensea          opensea.Client
	search           search.Usecase
	cheapestCache    cache.Service
	forSaleCache     cache.Service
	countCache       cache.Service
	slugCache        cache.Service
	flights          *flightGroup
	metrics          metrics.Service
	allowedSources   []string
	clusterThreshold int
	pageSize         int
	maxPages         int
	pageDelay        time.Duration
}

func New(cfg *ListingUseCaseCfg) listing.Usecase {
	threshold := cfg.ClusterThreshold
	if threshold == 0 {
		threshold = DefaultClusterThreshold
	}
	newCache := func(pfx string) cache.Service {
		return cache.New(cache.ServiceConfig{
			Ttl:   cfg.CacheTtl,
			Pfx:   pfx,
			Cache: cfg.CacheProvider,
		})
	}
	return &impl{
		opensea:          cfg.Opensea,
		search:           cfg.Search,
		cheapestCache:    newCache(keys.PfxCheapestListings),
		forSaleCache:     newCache(keys.PfxForSale),
		countCache:       newCache(keys.PfxListedCount),
		slugCache:        newCache(keys.PfxCollectionSlug),
		flights:          newFlightGroup(),
		metrics:          metrics.New("listing"),
		allowedSources:   cfg.AllowedSources,
		clusterThreshold: threshold,
		pageSize:         cfg.PageSize,
		maxPages:         cfg.MaxPages,
		pageDelay:        cfg.PageDelay,
	}
}

func (im *impl) GetCheapestListings(ctx bCtx.Ctx, contract domain.Address) ([]listing.Listing, error) {
	key := contract.ToLowerStr()

	var cached []listing.Listing
	if err := im.cheapestCache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	return im.flights.do(keys.CacheKey(keys.PfxCheapestListings, key), func() ([]listing.Listing, error) {
		// a finished flight may have filled the cache while we queued
		var cached []listing.Listing
		if err := im.cheapestCache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		}

		ls, err := im.crawlCheapest(ctx, contract)
		if err != nil {
			return nil, err
		}
		if err := im.cheapestCache.Set(ctx, key, ls); err != nil {
			ctx.WithFields(log.Fields{"key": key, "err": err}).Warn("cheapest cache set failed")
		}
		return ls, nil
	})
}

// crawlCheapest tries the server-side best-listing pages first and falls back
// to a full crawl when they fail or come back empty. Best-page output is still
// filtered and reduced; upstreams have served duplicates there before.
func (im *impl) crawlCheapest(ctx bCtx.Ctx, contract domain.Address) ([]listing.Listing, error) {
	defer im.metrics.BumpTime("crawl.time").End()

	slug, err := im.collectionSlug(ctx, contract)
	if err != nil {
		return nil, err
	}

	best, err := im.opensea.GetBestListings(ctx, slug, im.pageOptions()...)
	if err == nil && len(best) > 0 {
		im.metrics.BumpSum("crawl.best", 1)
		return ReduceCheapest(FilterListings(best, im.allowedSources, im.clusterThreshold), listing.TieBreakFirstSeen), nil
	}
	if err != nil {
		ctx.WithFields(log.Fields{"contract": contract, "err": err}).Warn("best listings fetch failed, falling back to full crawl")
	} else {
		ctx.WithFields(log.Fields{"contract": contract}).Warn("best listings came back empty, falling back to full crawl")
	}
	im.metrics.BumpSum("crawl.fallback", 1)

	all, err := im.opensea.GetAllListings(ctx, slug, im.pageOptions()...)
	if err != nil {
		ctx.WithFields(log.Fields{"contract": contract, "err": err}).Error("full listings crawl failed")
		return nil, err
	}
	// the cluster filter stays off on the fallback path; reduction alone
	// already collapses the bulk-listed duplicates
	return ReduceCheapest(FilterListings(all, im.allowedSources, 0), listing.TieBreakFirstSeen), nil
}

func (im *impl) GetForSale(ctx bCtx.Ctx, contract domain.Address) ([]listing.ForSaleItem, error) {
	key := contract.ToLowerStr()

	var cheapest []listing.Listing
	if err := im.forSaleCache.Get(ctx, key, &cheapest); err != nil {
		var ferr error
		cheapest, ferr = im.flights.do(keys.CacheKey(keys.PfxForSale, key), func() ([]listing.Listing, error) {
			var cached []listing.Listing
			if err := im.forSaleCache.Get(ctx, key, &cached); err == nil {
				return cached, nil
			}

			slug, err := im.collectionSlug(ctx, contract)
			if err != nil {
				return nil, err
			}
			all, err := im.opensea.GetAllListings(ctx, slug, im.pageOptions()...)
			if err != nil {
				return nil, err
			}

			ls := ReduceCheapest(FilterListings(all, im.allowedSources, im.clusterThreshold), listing.TieBreakMostRecent)
			sort.SliceStable(ls, func(i, j int) bool {
				return ls[i].Amount().Cmp(ls[j].Amount()) < 0
			})

			if err := im.forSaleCache.Set(ctx, key, ls); err != nil {
				ctx.WithFields(log.Fields{"key": key, "err": err}).Warn("for-sale cache set failed")
			}
			return ls, nil
		})
		if ferr != nil {
			return nil, ferr
		}
	}

	return im.decorate(ctx, cheapest), nil
}

// decorate attaches display prices and, when the search index is available,
// song titles. Title lookup failures degrade to unnamed rows.
func (im *impl) decorate(ctx bCtx.Ctx, ls []listing.Listing) []listing.ForSaleItem {
	items := make([]listing.ForSaleItem, 0, len(ls))
	for _, l := range ls {
		items = append(items, listing.ForSaleItem{
			Listing:      l,
			DisplayPrice: pricefmt.FormatListing(l),
		})
	}

	if im.search == nil {
		return items
	}

	ids := make([]domain.TokenId, 0, len(ls))
	for _, l := range ls {
		if l.HasTokenId() {
			ids = append(ids, l.TokenId)
		}
	}
	titles, err := im.search.SongTitles(ctx, ids)
	if err != nil {
		ctx.WithField("err", err).Warn("song title lookup failed")
		return items
	}
	for i := range items {
		items[i].SongName = titles[items[i].Listing.TokenId]
	}
	return items
}

func (im *impl) CountListedTokens(ctx bCtx.Ctx, contract domain.Address) (int, error) {
	key := contract.ToLowerStr()

	var count int
	err := im.countCache.GetByFunc(ctx, key, &count, func() (interface{}, error) {
		slug, err := im.collectionSlug(ctx, contract)
		if err != nil {
			return nil, err
		}
		all, err := im.opensea.GetAllListings(ctx, slug, im.pageOptions()...)
		if err != nil {
			return nil, err
		}
		// count follows the source filter only; clustered prices still
		// represent listed songs
		c := CountUniqueTokens(FilterListings(all, im.allowedSources, 0))
		return &c, nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (im *impl) GetTokenListing(ctx bCtx.Ctx, contract domain.Address, tokenId domain.TokenId) (*listing.Listing, error) {
	slug, err := im.collectionSlug(ctx, contract)
	if err != nil {
		return nil, err
	}
	normalized, err := tokenId.Normalize()
	if err != nil {
		return nil, domain.ErrBadParamInput
	}
	return im.opensea.GetBestListingForToken(ctx, slug, normalized)
}

func (im *impl) GetActivity(ctx bCtx.Ctx, contract domain.Address, eventType string, limit int) ([]listing.SaleEvent, error) {
	slug, err := im.collectionSlug(ctx, contract)
	if err != nil {
		return nil, err
	}
	return im.opensea.GetCollectionEvents(ctx, slug, eventType, limit)
}

func (im *impl) RefreshListings(ctx bCtx.Ctx, contract domain.Address) error {
	key := contract.ToLowerStr()
	var firstErr error
	for _, c := range []cache.Service{im.cheapestCache, im.forSaleCache, im.countCache} {
		if err := c.Del(ctx, key); err != nil {
			ctx.WithFields(log.Fields{"key": key, "err": err}).Error("cache del failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// collectionSlug resolves the contract's slug once per session
func (im *impl) collectionSlug(ctx bCtx.Ctx, contract domain.Address) (domain.CollectionSlug, error) {
	var slug domain.CollectionSlug
	err := im.slugCache.GetByFunc(ctx, contract.ToLowerStr(), &slug, func() (interface{}, error) {
		s, err := im.opensea.GetCollectionSlug(ctx, contract)
		if err != nil {
			return nil, err
		}
		return &s, nil
	})
	if err != nil {
		return "", err
	}
	return slug, nil
}

func (im *impl) pageOptions() []opensea.PageOptionsFunc {
	var opts []opensea.PageOptionsFunc
	if im.pageSize > 0 {
		opts = append(opts, opensea.WithPageSize(im.pageSize))
	}
	if im.maxPages > 0 {
		opts = append(opts, opensea.WithMaxPages(im.maxPages))
	}
	if im.pageDelay > 0 {
		opts = append(opts, opensea.WithPageDelay(im.pageDelay))
	}
	return opts
}
