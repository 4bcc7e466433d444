package http

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/songgrid/goapi/base/ctx"
	"github.com/songgrid/goapi/base/delivery"
	"github.com/songgrid/goapi/domain"
	"github.com/songgrid/goapi/domain/search"
)

type handler struct {
	search search.Usecase
}

func New(e *echo.Echo, search search.Usecase) {
	h := &handler{search: search}

	g := e.Group("/search")

	g.GET("", h.doSearch)
}

func (h *handler) doSearch(c echo.Context) error {
	type params struct {
		Keyword string   `query:"q"`
		Facets  []string `query:"facets"`
	}

	p := &params{}

	if err := c.Bind(p); err != nil {
		return delivery.MakeJsonResp(c, http.StatusBadRequest, "invalid params")
	}

	ctx := c.Get("ctx").(ctx.Ctx)

	if res, err := h.search.Search(ctx, p.Keyword, p.Facets); err != nil {
		if err == domain.ErrConfigurationMissing {
			return delivery.MakeJsonResp(c, http.StatusServiceUnavailable, err)
		}
		return delivery.MakeJsonResp(c, http.StatusInternalServerError, err)
	} else {
		return delivery.MakeJsonResp(c, http.StatusOK, res)
	}
}
