package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/service"
)

type StatusHandler struct {
	Service *service.StatusService
}

func (h *StatusHandler) Register(g *gin.RouterGroup) {
	group := g.Group("/status")
	group.GET("/:label/latest", h.latest)
	group.GET("/:label/events", h.events)
}

func (h *StatusHandler) latest(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "status service unavailable", nil)
		return
	}
	view, err := h.Service.Latest(c.Request.Context(), c.Param("label"))
	if err != nil {
		serviceError(c, err)
		return
	}
	if view == nil {
		Error(c, http.StatusNotFound, "no transitions recorded", nil)
		return
	}
	Ok(c, view, nil)
}

func (h *StatusHandler) events(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "status service unavailable", nil)
		return
	}
	limit := intQuery(c, "limit", 20)
	items, err := h.Service.Recent(c.Request.Context(), c.Param("label"), limit)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, items, map[string]any{"limit": limit, "count": len(items)})
}
