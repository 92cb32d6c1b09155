package handler

import (
	"context"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/notify"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/service"
)

// Telegram rejects longer message texts.
const maxBroadcastRunes = 4096

type TextBroadcaster interface {
	BroadcastText(ctx context.Context, text string, subscribers []models.Subscriber) notify.FanoutReport
}

type BroadcastHandler struct {
	Subscribers *service.SubscriberService
	Fanout      TextBroadcaster
}

func (h *BroadcastHandler) Register(g *gin.RouterGroup) {
	g.POST("/broadcast", h.broadcast)
}

type broadcastRequest struct {
	Text string `json:"text"`
}

func (h *BroadcastHandler) broadcast(c *gin.Context) {
	if h.Subscribers == nil || h.Fanout == nil {
		Error(c, http.StatusServiceUnavailable, "broadcast disabled", nil)
		return
	}
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		Error(c, http.StatusBadRequest, "text required", nil)
		return
	}
	if utf8.RuneCountInString(text) > maxBroadcastRunes {
		Error(c, http.StatusBadRequest, "text too long", map[string]any{"max_runes": maxBroadcastRunes})
		return
	}
	subs, err := h.Subscribers.Notifiable(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	report := h.Fanout.BroadcastText(c.Request.Context(), text, subs)
	Ok(c, report, nil)
}
