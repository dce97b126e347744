package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-trigger-engine/internal/automation"
	"chat-trigger-engine/internal/dispatch"
	"chat-trigger-engine/internal/models"
	"chat-trigger-engine/internal/ws"
)

// Notifier is told when trigger configuration changes.
type Notifier interface {
	BroadcastEvent(eventType string, data interface{})
}

type TriggerHandler struct {
	Configs  *automation.ConfigSource
	Notifier Notifier
}

func NewTriggerHandler(configs *automation.ConfigSource, notifier Notifier) *TriggerHandler {
	return &TriggerHandler{Configs: configs, Notifier: notifier}
}

func (h *TriggerHandler) changed(scope string) {
	if h.Notifier != nil {
		h.Notifier.BroadcastEvent(ws.EventConfigReload, gin.H{"scope": scope})
	}
}

func (h *TriggerHandler) GetGlobal(c *gin.Context) {
	c.JSON(http.StatusOK, h.Configs.Global())
}

func (h *TriggerHandler) PutGlobal(c *gin.Context) {
	var cfg dispatch.TriggerActionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := dispatch.Validate(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Configs.SaveGlobal(cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.changed(models.GlobalScope)

	c.JSON(http.StatusOK, h.Configs.Global())
}

func (h *TriggerHandler) ListGroups(c *gin.Context) {
	c.JSON(http.StatusOK, h.Configs.Groups())
}

// GetGroup returns the stored override (if any) and the config in effect.
func (h *TriggerHandler) GetGroup(c *gin.Context) {
	groupID := c.Param("groupId")
	out := gin.H{"effective": h.Configs.Effective(groupID)}
	if g, ok := h.Configs.Group(groupID); ok {
		out["override"] = g
	}
	c.JSON(http.StatusOK, out)
}

func (h *TriggerHandler) PutGroup(c *gin.Context) {
	var g dispatch.GroupTriggerConfig
	if err := c.ShouldBindJSON(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g.GroupID = c.Param("groupId")
	if err := dispatch.ValidateGroup(&g); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Configs.SaveGroup(g); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.changed(g.GroupID)

	c.JSON(http.StatusOK, gin.H{"override": g, "effective": h.Configs.Effective(g.GroupID)})
}

func (h *TriggerHandler) DeleteGroup(c *gin.Context) {
	groupID := c.Param("groupId")
	if err := h.Configs.DeleteGroup(groupID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.changed(groupID)

	c.JSON(http.StatusOK, gin.H{"message": "Group override removed"})
}
