package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/delivery"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/ownership"
	"github.com/songgrid/goapi/middleware"
)

type handler struct {
	ownership ownership.Usecase
}

func New(e *echo.Echo, ownership ownership.Usecase) {
	h := &handler{ownership: ownership}

	g := e.Group("/collections/:address", middleware.IsValidAddress("address"))

	g.GET("/collectors", h.getCollectors)
}

func (h *handler) getCollectors(c echo.Context) error {
	type params struct {
		Address  domain.Address `param:"address"`
		Sort     domain.SortDir `query:"sort"`
		PageSize int            `query:"pageSize"`
		MaxPages int            `query:"maxPages"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	if p.Sort != "" && p.Sort != domain.SortDirAsc && p.Sort != domain.SortDirDesc {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, domain.ErrBadParamInput)
	}

	ctx := c.Get("ctx").(ctx.Ctx)

	opts := []ownership.GetCollectorsOptionsFunc{}
	if p.Sort != "" {
		opts = append(opts, ownership.WithSort(p.Sort))
	}
	if p.PageSize > 0 {
		opts = append(opts, ownership.WithPageSize(p.PageSize))
	}
	if p.MaxPages > 0 {
		opts = append(opts, ownership.WithMaxPages(p.MaxPages))
	}

	if res, err := h.ownership.GetCollectors(ctx, p.Address, opts...); err != nil {
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}
