package repository

import (
	"bytes"
	"time"

	"github.com/songgrid/goapi/base/ctx"
	hcdomain "github.com/songgrid/goapi/domain/healthcheck"
	"github.com/songgrid/goapi/domain/keys"
	"github.com/songgrid/goapi/service/cache/provider"
)

type impl struct {
	cache provider.Provider
}

// New creates new healthCheckRepo object representation of HealthCheckRepo interface
func New(cache provider.Provider) hcdomain.HealthCheckRepo {
	return &impl{cache: cache}
}

func (im *impl) PingCache(context ctx.Ctx) error {
	ctx, cancel := ctx.WithTimeout(context, 2*time.Second)
	defer cancel()

	key := keys.CacheKey(keys.PfxHealthCheck, "testset")
	if err := im.cache.Set(ctx, key, []byte("1"), 30*time.Second); err != nil {
		context.WithField("err", err).Error("healthcheck cache set failed")
		return err
	}
	if val, _, err := im.cache.Get(ctx, key); err != nil {
		context.WithField("err", err).Error("healthcheck cache get failed")
		return err
	} else if !bytes.Equal(val, []byte("1")) {
		context.Error("healthcheck cache roundtrip mismatch")
		return hcdomain.ErrUnhealthy
	}
	return nil
}
