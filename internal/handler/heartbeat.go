package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/service"
)

// HeartbeatHandler is the ingress the heartbeat agent pings.
type HeartbeatHandler struct {
	Service *service.HeartbeatService
	Path    string
	Token   string
	Now     func() time.Time
}

func (h *HeartbeatHandler) Register(r *gin.Engine) {
	path := h.Path
	if path == "" {
		path = "/heartbeat"
	}
	r.GET(path, RequireBearer(h.Token), h.record)
}

func (h *HeartbeatHandler) record(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "heartbeat store unavailable", nil)
		return
	}
	raw := strings.TrimSpace(c.Query("timestamp"))
	if raw == "" {
		Error(c, http.StatusBadRequest, "timestamp required", nil)
		return
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ts <= 0 {
		Error(c, http.StatusBadRequest, "timestamp must be a unix integer", nil)
		return
	}
	hb, err := h.Service.Record(c.Request.Context(), c.Query("label"), ts)
	if err != nil {
		serviceError(c, err)
		return
	}
	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"label":       hb.Label,
		"timestamp":   time.Unix(ts, 0).UTC().Format(time.RFC3339),
		"received_at": now.Format(time.RFC3339),
	})
}
