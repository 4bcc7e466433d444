package healthcheck

import (
	"errors"

	"github.com/songgrid/goapi/base/ctx"
)

// ErrUnhealthy signals a failed dependency roundtrip
var ErrUnhealthy = errors.New("unhealthy")

// HealthCheckRepo represent the healthcheck's repository contract
type HealthCheckRepo interface {
	PingCache(ctx.Ctx) error
}

// HealthCheckUsecase represent the healthcheck's usecase contract
type HealthCheckUsecase interface {
	Check(ctx.Ctx) error
}
