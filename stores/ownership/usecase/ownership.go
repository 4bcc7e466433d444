package usecase

import (
	"fmt"
	"sort"
	"time"

	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/log"
	"github.com/songgrid/goapi/base/metrics"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/keys"
	"github.com/songgrid/goapi/domain/ownership"
	"github.com/songgrid/goapi/service/cache"
	"github.com/songgrid/goapi/service/cache/provider"
	"github.com/songgrid/goapi/service/etherscan"
	"github.com/songgrid/goapi/service/opensea"
)

const (
	defaultPageSize = etherscan.MaxTransfersPerPage
	defaultMaxPages = 25

	// stagnantPageLimit stops a newest-first scan once this many consecutive
	// pages contribute no unseen tokens; deep history past that point only
	// repeats owners that later transfers already overrode
	stagnantPageLimit = 3
)

type OwnershipUseCaseCfg struct {
	// Etherscan may be nil when no history key is configured; the usecase
	// then falls back to the marketplace owner sample
	Etherscan     etherscan.Client
	Opensea       opensea.Client
	CacheProvider provider.Provider
	CacheTtl      time.Duration
	PageSize      int
	MaxPages      int
}

type impl struct {
	etherscan etherscan.Client
	opensea   opensea.Client
	cache     cache.Service
	metrics   metrics.Service
	pageSize  int
	maxPages  int
}

func New(cfg *OwnershipUseCaseCfg) ownership.Usecase {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > etherscan.MaxTransfersPerPage {
		pageSize = defaultPageSize
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	return &impl{
		etherscan: cfg.Etherscan,
		opensea:   cfg.Opensea,
		cache: cache.New(cache.ServiceConfig{
			Ttl:   cfg.CacheTtl,
			Pfx:   keys.PfxCollectors,
			Cache: cfg.CacheProvider,
		}),
		metrics:  metrics.New("ownership"),
		pageSize: pageSize,
		maxPages: maxPages,
	}
}

func (im *impl) GetCollectors(ctx bCtx.Ctx, contract domain.Address, optFns ...ownership.GetCollectorsOptionsFunc) (*ownership.Result, error) {
	opts, err := ownership.GetGetCollectorsOptions(optFns...)
	if err != nil {
		return nil, err
	}

	pageSize := im.pageSize
	if opts.PageSize != nil && *opts.PageSize > 0 && *opts.PageSize <= etherscan.MaxTransfersPerPage {
		pageSize = *opts.PageSize
	}
	maxPages := im.maxPages
	if opts.MaxPages != nil && *opts.MaxPages > 0 {
		maxPages = *opts.MaxPages
	}
	sortDir := domain.SortDirDesc
	if opts.Sort != nil {
		sortDir = *opts.Sort
	}

	if im.etherscan == nil {
		return im.sampleCollectors(ctx, contract, opts.Progress)
	}

	key := keys.CacheKey(contract.ToLowerStr(), string(sortDir), fmt.Sprint(pageSize), fmt.Sprint(maxPages))
	var res ownership.Result
	err = im.cache.GetByFunc(ctx, key, &res, func() (interface{}, error) {
		defer im.metrics.BumpTime("replay.time").End()
		r, err := im.replay(ctx, contract, pageSize, maxPages, sortDir, opts.Progress)
		if err != nil {
			return nil, err
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// replay walks the transfer log page by page and reduces it to the current
// owner of every token. Newest-first scans take the first occurrence of each
// token as its owner and can stop early; oldest-first scans replay every
// transfer, removing tokens from senders as they move.
func (im *impl) replay(ctx bCtx.Ctx, contract domain.Address, pageSize, maxPages int, sortDir domain.SortDir, progress func(float64, string)) (*ownership.Result, error) {
	holdings := map[domain.Address]map[domain.TokenId]struct{}{}
	seen := map[domain.TokenId]struct{}{}
	totalScanned := 0
	stagnantPages := 0

	for page := 1; page <= maxPages; page++ {
		if progress != nil {
			progress(float64(page-1)/float64(maxPages),
				fmt.Sprintf("Scanning transfer page %d of %d...", page, maxPages))
		}

		transfers, err := im.etherscan.GetTokenTransfers(ctx, contract, page, pageSize, sortDir)
		if err != nil {
			ctx.WithFields(log.Fields{"contract": contract, "page": page, "err": err}).Error("transfer page fetch failed")
			return nil, err
		}
		totalScanned += len(transfers)

		if sortDir == domain.SortDirDesc {
			unseen := 0
			for _, t := range transfers {
				if t.TokenId == "" {
					continue
				}
				if _, ok := seen[t.TokenId]; ok {
					continue
				}
				seen[t.TokenId] = struct{}{}
				unseen++
				if !t.To.IsBurn() {
					addHolding(holdings, t.To, t.TokenId)
				}
			}
			if unseen == 0 {
				stagnantPages++
			} else {
				stagnantPages = 0
			}
			if stagnantPages >= stagnantPageLimit {
				break
			}
		} else {
			for _, t := range transfers {
				if t.TokenId == "" {
					continue
				}
				if set, ok := holdings[t.From]; ok {
					delete(set, t.TokenId)
					if len(set) == 0 {
						delete(holdings, t.From)
					}
				}
				if !t.To.IsBurn() {
					addHolding(holdings, t.To, t.TokenId)
				}
			}
		}

		// a short page means the history is exhausted
		if len(transfers) < pageSize {
			break
		}
	}

	if progress != nil {
		progress(1.0, fmt.Sprintf("Scanned %d transfers", totalScanned))
	}

	res := &ownership.Result{
		Collectors:   buildCollectors(holdings),
		TotalScanned: totalScanned,
	}
	im.metrics.BumpHistogram("replay.collectors", float64(len(res.Collectors)))
	return res, nil
}

// sampleCollectors approximates the collector list from the marketplace
// owner endpoint when no transfer-history key is configured
func (im *impl) sampleCollectors(ctx bCtx.Ctx, contract domain.Address, progress func(float64, string)) (*ownership.Result, error) {
	slug, err := im.opensea.GetCollectionSlug(ctx, contract)
	if err != nil {
		return nil, err
	}

	sample, err := im.opensea.GetOwnersSample(ctx, slug, opensea.MaxNftsPerPage)
	if err != nil {
		ctx.WithFields(log.Fields{"contract": contract, "err": err}).Error("owner sample fetch failed")
		return nil, err
	}

	holdings := map[domain.Address]map[domain.TokenId]struct{}{}
	for _, o := range sample {
		if o.Owner.IsEmpty() || o.Owner.IsBurn() {
			continue
		}
		addHolding(holdings, o.Owner, o.TokenId)
	}

	if progress != nil {
		progress(1.0, fmt.Sprintf("Sampled %d owners", len(sample)))
	}

	return &ownership.Result{
		Collectors:   buildCollectors(holdings),
		TotalScanned: len(sample),
	}, nil
}

func addHolding(holdings map[domain.Address]map[domain.TokenId]struct{}, owner domain.Address, tokenId domain.TokenId) {
	owner = owner.ToLower()
	if holdings[owner] == nil {
		holdings[owner] = map[domain.TokenId]struct{}{}
	}
	holdings[owner][tokenId] = struct{}{}
}

// buildCollectors flattens the holdings map, most songs first. Ties order by
// address so the output is stable.
func buildCollectors(holdings map[domain.Address]map[domain.TokenId]struct{}) []ownership.Collector {
	collectors := make([]ownership.Collector, 0, len(holdings))
	for addr, set := range holdings {
		tokens := make([]domain.TokenId, 0, len(set))
		for id := range set {
			tokens = append(tokens, id)
		}
		sort.Slice(tokens, func(i, j int) bool { return tokens[i] < tokens[j] })
		collectors = append(collectors, ownership.Collector{
			Address: addr,
			Tokens:  tokens,
			Count:   len(tokens),
		})
	}
	sort.Slice(collectors, func(i, j int) bool {
		if collectors[i].Count != collectors[j].Count {
			return collectors[i].Count > collectors[j].Count
		}
		return collectors[i].Address < collectors[j].Address
	})
	return collectors
}
