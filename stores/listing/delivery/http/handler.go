package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/delivery"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/listing"
	"github.com/songgrid/goapi/middleware"
)

type handler struct {
	listing listing.Usecase
}

func New(e *echo.Echo, listing listing.Usecase) {
	h := &handler{listing: listing}

	g := e.Group("/collections/:address", middleware.IsValidAddress("address"))

	g.GET("/listings", h.getListings)

	g.GET("/listings/count", h.countListings)

	g.POST("/listings/refresh", h.refreshListings)

	g.GET("/tokens/:tokenId/listing", h.getTokenListing)

	g.GET("/activity", h.getActivity)
}

func (h *handler) getListings(c echo.Context) error {
	type params struct {
		Address domain.Address `param:"address"`
		// Format display returns rows decorated with display prices and
		// song titles, sorted cheapest first
		Format string `query:"format"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	ctx := c.Get("ctx").(ctx.Ctx)

	if p.Format == "display" {
		if res, err := h.listing.GetForSale(ctx, p.Address); err != nil {
			return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
		} else {
			return delivery.MakeJsonResp(c, http.StatusOK, res)
		}
	}

	if res, err := h.listing.GetCheapestListings(ctx, p.Address); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}

func (h *handler) countListings(c echo.Context) error {
	type params struct {
		Address domain.Address `param:"address"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	ctx := c.Get("ctx").(ctx.Ctx)

	if count, err := h.listing.CountListedTokens(ctx, p.Address); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, map[string]int{"count": count})
	}
}

func (h *handler) refreshListings(c echo.Context) error {
	type params struct {
		Address domain.Address `param:"address"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	ctx := c.Get("ctx").(ctx.Ctx)

	if err := h.listing.RefreshListings(ctx, p.Address); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	}
	return delivery.MakeJsonResp(c, http.StatusOK, "refreshed")
}

func (h *handler) getTokenListing(c echo.Context) error {
	type params struct {
		Address domain.Address `param:"address"`
		TokenId domain.TokenId `param:"tokenId"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	ctx := c.Get("ctx").(ctx.Ctx)

	if res, err := h.listing.GetTokenListing(ctx, p.Address, p.TokenId); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else if res == nil {
		return delivery.MakeJsonResp(c, http.StatusNotFound, domain.ErrNotFound)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}

func (h *handler) getActivity(c echo.Context) error {
	type params struct {
		Address   domain.Address `param:"address"`
		EventType string         `query:"eventType"`
		Limit     int            `query:"limit"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	ctx := c.Get("ctx").(ctx.Ctx)

	if res, err := h.listing.GetActivity(ctx, p.Address, p.EventType, p.Limit); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}
