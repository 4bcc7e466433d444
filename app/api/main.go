package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/viper"

	"github.com/go-playground/validator/v10"
	"github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/goroutine"
	"github.com/songgrid/goapi/base/log"
	bValidator "github.com/songgrid/goapi/base/validator"
	"github.com/songgrid/goapi/domain"
	mmiddleware "github.com/songgrid/goapi/middleware"
	"github.com/songgrid/goapi/service/cache/provider/primitive"
	"github.com/songgrid/goapi/service/etherscan"
	"github.com/songgrid/goapi/service/opensea"
	"github.com/songgrid/goapi/service/songsearch"
	hc_delivery "github.com/songgrid/goapi/stores/healthcheck/delivery/http"
	hc_repo "github.com/songgrid/goapi/stores/healthcheck/repository"
	hc_usecase "github.com/songgrid/goapi/stores/healthcheck/usecase"
	listing_delivery "github.com/songgrid/goapi/stores/listing/delivery/http"
	listing_usecase "github.com/songgrid/goapi/stores/listing/usecase"
	ownership_delivery "github.com/songgrid/goapi/stores/ownership/delivery/http"
	ownership_usecase "github.com/songgrid/goapi/stores/ownership/usecase"
	search_delivery "github.com/songgrid/goapi/stores/search/delivery/http"
	search_usecase "github.com/songgrid/goapi/stores/search/usecase"
)

func init() {
	viper.SetConfigType("yaml")
	viper.SetConfigFile(`infra/configs/config.yaml`)
	err := viper.ReadInConfig()
	if err != nil {
		panic(err)
	}

	if viper.GetBool(`debug`) {
		log.EnableDebug()
		log.Log().Info("Service RUN on DEBUG mode")
	}
}

func main() {
	// init echo
	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{}))
	e.Use(middleware.RequestID())
	middL := mmiddleware.InitMiddleware()
	e.Use(middL.ResponseLogger())
	e.Use(middL.AddContext())
	e.Use(middL.CORS)
	e.Validator = bValidator.NewCustomValidator(validator.New())

	context := ctx.Background()

	context.Info("init cache")
	cacheProvider := primitive.NewPrimitive("songgrid", viper.GetInt("cache.size"))

	context.Info("init marketplace client")
	openseaClient := opensea.NewClient(&opensea.ClientCfg{
		HttpClient:        http.Client{},
		Timeout:           viper.GetDuration("opensea.timeout"),
		Apikey:            viper.GetString("opensea.apikey"),
		Chain:             viper.GetString("opensea.chain"),
		MaxRetries:        viper.GetInt("opensea.maxRetries"),
		RetryInitialDelay: viper.GetDuration("opensea.retryInitialDelay"),
		RetryMaxDelay:     viper.GetDuration("opensea.retryMaxDelay"),
	})

	var etherscanClient etherscan.Client
	if viper.GetString("etherscan.apikey") != "" {
		context.Info("init transfer history client")
		etherscanClient = etherscan.NewClient(&etherscan.ClientCfg{
			HttpClient: http.Client{},
			Timeout:    viper.GetDuration("etherscan.timeout"),
			Apikey:     viper.GetString("etherscan.apikey"),
		})
	} else {
		context.Info("no transfer history key, collectors will use the owner sample")
	}

	searchClient := songsearch.NewClient(&songsearch.ClientCfg{
		HttpClient: http.Client{},
		Timeout:    viper.GetDuration("songsearch.timeout"),
		AppId:      viper.GetString("songsearch.appId"),
		Apikey:     viper.GetString("songsearch.apikey"),
		IndexName:  viper.GetString("songsearch.index"),
	})

	searchUsecase := search_usecase.New(&search_usecase.SearchUseCaseCfg{
		Client:        searchClient,
		CacheProvider: cacheProvider,
		CacheTtl:      viper.GetDuration("songsearch.cacheTtl"),
	})

	listingUsecase := listing_usecase.New(&listing_usecase.ListingUseCaseCfg{
		Opensea:          openseaClient,
		Search:           searchUsecase,
		CacheProvider:    cacheProvider,
		CacheTtl:         viper.GetDuration("listing.cacheTtl"),
		AllowedSources:   viper.GetStringSlice("listing.allowedSources"),
		ClusterThreshold: viper.GetInt("listing.clusterThreshold"),
		PageSize:         viper.GetInt("listing.pageSize"),
		MaxPages:         viper.GetInt("listing.maxPages"),
		PageDelay:        viper.GetDuration("listing.pageDelay"),
	})

	ownershipUsecase := ownership_usecase.New(&ownership_usecase.OwnershipUseCaseCfg{
		Etherscan:     etherscanClient,
		Opensea:       openseaClient,
		CacheProvider: cacheProvider,
		CacheTtl:      viper.GetDuration("ownership.cacheTtl"),
		PageSize:      viper.GetInt("ownership.pageSize"),
		MaxPages:      viper.GetInt("ownership.maxPages"),
	})

	healthCheckRepo := hc_repo.New(cacheProvider)
	healthCheckUsecase := hc_usecase.New(healthCheckRepo)

	hc_delivery.New(e, healthCheckUsecase)
	listing_delivery.New(e, listingUsecase)
	ownership_delivery.New(e, ownershipUsecase)
	search_delivery.New(e, searchUsecase)

	// pre-warm the listings crawl so the first page load is served from cache
	if contract := domain.Address(viper.GetString("listing.warmupContract")); !contract.IsEmpty() {
		goroutine.RecoverableGo(func() {
			warmCtx := ctx.Background()
			if _, err := listingUsecase.GetCheapestListings(warmCtx, contract); err != nil {
				warmCtx.WithField("err", err).Warn("listings warm-up failed")
			}
		})
	}

	go func() {
		if err := e.Start(viper.GetString("server.address")); err != nil && err != http.ErrServerClosed {
			log.Log().WithField("err", err).Error("shutting down the server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 10 seconds.
	// Use a buffered channel to avoid missing signals as recommended for signal.Notify
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	sig := <-quit
	log.Log().WithField("signal", sig).Info("received signal")
	ctx, cancel := ctx.WithTimeout(context, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Log().WithField("err", err).Error("shutting down the server")
	} else {
		log.Log().Info("shutdown server successfully")
	}
}
