package usecase

import (
	"strings"
	"time"

	bCtx "github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/keys"
	"github.com/songgrid/goapi/domain/search"
	"github.com/songgrid/goapi/service/cache"
	"github.com/songgrid/goapi/service/cache/provider"
	"github.com/songgrid/goapi/service/songsearch"
)

type SearchUseCaseCfg struct {
	Client        songsearch.Client
	CacheProvider provider.Provider
	CacheTtl      time.Duration
}

type impl struct {
	client     songsearch.Client
	titleCache cache.Service
}

func New(cfg *SearchUseCaseCfg) search.Usecase {
	return &impl{
		client: cfg.Client,
		titleCache: cache.New(cache.ServiceConfig{
			Ttl:   cfg.CacheTtl,
			Pfx:   keys.PfxSongTitles,
			Cache: cfg.CacheProvider,
		}),
	}
}

func (im *impl) Search(ctx bCtx.Ctx, keyword string, facetFilters []string) (*search.Result, error) {
	return im.client.Query(ctx, keyword, facetFilters)
}

// SongTitles maps token ids to song names. An unconfigured index yields an
// empty map so callers can treat titles as optional decoration.
func (im *impl) SongTitles(ctx bCtx.Ctx, tokenIds []domain.TokenId) (map[domain.TokenId]string, error) {
	if im.client == nil || !im.client.Configured() || len(tokenIds) == 0 {
		return map[domain.TokenId]string{}, nil
	}

	ids := make([]string, 0, len(tokenIds))
	for _, id := range tokenIds {
		ids = append(ids, id.String())
	}

	key := keys.MD5(strings.Join(ids, ","))
	var titles map[domain.TokenId]string
	err := im.titleCache.GetByFunc(ctx, key, &titles, func() (interface{}, error) {
		hits, err := im.client.GetObjects(ctx, ids)
		if err != nil {
			return nil, err
		}
		m := map[domain.TokenId]string{}
		for _, hit := range hits {
			if hit.Name == "" {
				continue
			}
			if id, err := domain.TokenId(hit.ObjectID).Normalize(); err == nil {
				m[id] = hit.Name
			}
		}
		return &m, nil
	})
	if err != nil {
		return nil, err
	}
	return titles, nil
}
