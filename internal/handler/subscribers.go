package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/repository"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/service"
)

type SubscriberHandler struct {
	Service *service.SubscriberService
}

func (h *SubscriberHandler) Register(g *gin.RouterGroup) {
	group := g.Group("/subscribers")
	group.GET("", h.list)
	group.POST("", h.register)
	group.GET("/:id/preferences", h.preferences)
	group.PUT("/:id/preferences", h.updatePreferences)
}

func (h *SubscriberHandler) list(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "subscriber service unavailable", nil)
		return
	}
	if !boolQueryDefault(c, "notifiable", true) {
		Error(c, http.StatusBadRequest, "only notifiable=true is supported", nil)
		return
	}
	items, err := h.Service.Notifiable(c.Request.Context())
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, items, map[string]any{"total": len(items)})
}

func (h *SubscriberHandler) register(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "subscriber service unavailable", nil)
		return
	}
	var req service.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Service.Register(c.Request.Context(), req)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, item, nil)
}

type preferencesBody struct {
	NotifsEnabled     *bool   `json:"notifs_enabled"`
	NightSoundEnabled *bool   `json:"night_sound_enabled"`
	LanguageCode      *string `json:"language_code"`
}

func preferencesOf(item *models.Subscriber) preferencesBody {
	return preferencesBody{
		NotifsEnabled:     &item.NotifsEnabled,
		NightSoundEnabled: &item.NightSoundEnabled,
		LanguageCode:      &item.LanguageCode,
	}
}

func (h *SubscriberHandler) preferences(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "subscriber service unavailable", nil)
		return
	}
	id, ok := subscriberID(c)
	if !ok {
		return
	}
	item, err := h.Service.Preferences(c.Request.Context(), id)
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, preferencesOf(item), nil)
}

func (h *SubscriberHandler) updatePreferences(c *gin.Context) {
	if h.Service == nil {
		Error(c, http.StatusInternalServerError, "subscriber service unavailable", nil)
		return
	}
	id, ok := subscriberID(c)
	if !ok {
		return
	}
	var req preferencesBody
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	item, err := h.Service.UpdatePreferences(c.Request.Context(), id, repository.SubscriberPreferences{
		NotifsEnabled:     req.NotifsEnabled,
		NightSoundEnabled: req.NightSoundEnabled,
		LanguageCode:      req.LanguageCode,
	})
	if err != nil {
		serviceError(c, err)
		return
	}
	Ok(c, preferencesOf(item), nil)
}

func subscriberID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		Error(c, http.StatusBadRequest, "invalid subscriber id", nil)
		return 0, false
	}
	return id, true
}
