package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"chat-trigger-engine/internal/accounts"
	"chat-trigger-engine/internal/automation"
	"chat-trigger-engine/internal/models"
	"chat-trigger-engine/internal/template"
	dto "chat-trigger-engine/pkg/models"
)

// BroadcastHandler renders message templates and sends them out, one
// personalised variant per recipient.
type BroadcastHandler struct {
	DB        *gorm.DB
	Expander  *template.Expander
	Sender    automation.Sender
	Directory accounts.Directory
	// Limiter paces broadcast sends; nil sends as fast as the API allows.
	Limiter *rate.Limiter
}

func NewBroadcastHandler(db *gorm.DB, expander *template.Expander, sender automation.Sender, dir accounts.Directory, limiter *rate.Limiter) *BroadcastHandler {
	return &BroadcastHandler{DB: db, Expander: expander, Sender: sender, Directory: dir, Limiter: limiter}
}

func renderFor(e *template.Expander, content, name string, vars map[string]string, spin bool) string {
	merged := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		merged[k] = v
	}
	if _, ok := merged["name"]; !ok {
		merged["name"] = name
	}
	return e.Render(template.Personalize(content, merged["name"]), merged, spin)
}

// PreviewTemplate returns sample renderings so operators can check spintax.
func (h *BroadcastHandler) PreviewTemplate(c *gin.Context) {
	var req dto.PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Count == 0 {
		req.Count = 3
	}

	variants := make([]string, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		variants = append(variants, renderFor(h.Expander, req.Content, req.Name, req.Vars, req.EnableSpintax))
	}

	c.JSON(http.StatusOK, gin.H{"variants": variants})
}

func (h *BroadcastHandler) SendBroadcast(c *gin.Context) {
	var req dto.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.Sender == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WhatsApp sending is not configured"})
		return
	}

	var phoneNumberID string
	if acc, ok := accounts.Lookup(h.Directory, req.AccountID); ok {
		phoneNumberID = acc.PhoneNumberID
	}

	ctx := c.Request.Context()
	successCount := 0
	for _, r := range req.Recipients {
		if h.Limiter != nil {
			if err := h.Limiter.Wait(ctx); err != nil {
				log.Printf("Broadcast interrupted: %v", err)
				break
			}
		}

		body := renderFor(h.Expander, req.Content, r.Name, r.Vars, req.EnableSpintax)
		if _, err := h.Sender.SendMessage(ctx, phoneNumberID, r.WaID, body); err != nil {
			log.Printf("Failed to broadcast to %s: %v", r.WaID, err)
			continue
		}
		successCount++

		if h.DB != nil {
			msg := models.Message{WaID: r.WaID, Sender: "broadcast", AccountID: req.AccountID, Content: body, Type: "text", Status: "sent"}
			if err := h.DB.Create(&msg).Error; err != nil {
				log.Printf("Error saving broadcast message: %v", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "Broadcast processed",
		"sent_to": successCount,
		"total":   len(req.Recipients),
	})
}
