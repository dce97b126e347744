package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"chat-trigger-engine/internal/automation"
	"chat-trigger-engine/internal/conversation"
	"chat-trigger-engine/internal/intent"
	"chat-trigger-engine/internal/models"
	dto "chat-trigger-engine/pkg/models"
)

type Classifier interface {
	Classify(ctx context.Context, message, userID string, useContext bool) *intent.Result
}

type DashboardHandler struct {
	DB         *gorm.DB
	Store      *conversation.Store
	Classifier Classifier
	Sender     automation.Sender
}

func NewDashboardHandler(db *gorm.DB, store *conversation.Store, classifier Classifier, sender automation.Sender) *DashboardHandler {
	return &DashboardHandler{DB: db, Store: store, Classifier: classifier, Sender: sender}
}

func (h *DashboardHandler) GetMessages(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	query := h.DB.Order("created_at DESC").Limit(limit)
	if waID := c.Query("wa_id"); waID != "" {
		query = query.Where("wa_id = ?", waID)
	}

	var messages []models.Message
	if err := query.Find(&messages).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, messages)
}

type SendRequest struct {
	To            string `json:"to" binding:"required"`
	Content       string `json:"content" binding:"required"`
	PhoneNumberID string `json:"phone_number_id"`
}

// SendMessage lets an operator write to a customer directly. The message
// joins the conversation as an assistant turn.
func (h *DashboardHandler) SendMessage(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if h.Sender == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WhatsApp sending is not configured"})
		return
	}

	resp, err := h.Sender.SendMessage(c.Request.Context(), req.PhoneNumberID, req.To, req.Content)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message: " + err.Error()})
		return
	}

	msg := models.Message{WaID: req.To, Sender: "agent", AccountID: req.PhoneNumberID, Content: req.Content, Type: "text", Status: "sent"}
	if err := h.DB.Create(&msg).Error; err != nil {
		log.Printf("Error saving agent message: %v", err)
	}
	if h.Store != nil {
		h.Store.Update(req.To, req.Content, conversation.RoleAssistant, nil)
	}

	c.JSON(http.StatusOK, gin.H{"status": "Message sent", "message_id": resp.MessageID()})
}

func (h *DashboardHandler) summary(userID string) (dto.ConversationSummary, bool) {
	ctx := h.Store.GetContext(userID)
	if ctx == nil {
		return dto.ConversationSummary{}, false
	}
	s := dto.ConversationSummary{
		UserID:        userID,
		Stage:         string(ctx.CurrentStage),
		Score:         ctx.TotalScore,
		Rounds:        ctx.Rounds(),
		ShouldHandoff: h.Store.ShouldHandoff(userID),
		UpdatedAt:     ctx.UpdatedAt,
	}
	if n := len(ctx.Messages); n > 0 {
		s.LastMessage = ctx.Messages[n-1].Content
	}
	return s, true
}

// ListConversations returns tracked conversations, most recently active first.
func (h *DashboardHandler) ListConversations(c *gin.Context) {
	out := []dto.ConversationSummary{}
	for _, id := range h.Store.Users() {
		if s, ok := h.summary(id); ok {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	c.JSON(http.StatusOK, out)
}

func (h *DashboardHandler) GetConversation(c *gin.Context) {
	userID := c.Param("userId")
	ctx := h.Store.GetContext(userID)
	if ctx == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}
	summary, _ := h.summary(userID)
	c.JSON(http.StatusOK, gin.H{"context": ctx, "summary": summary})
}

func (h *DashboardHandler) ClearConversation(c *gin.Context) {
	h.Store.Clear(c.Param("userId"))
	c.JSON(http.StatusOK, gin.H{"status": "Conversation cleared"})
}

// Classify runs the classifier on a sample message. Without a user_id the
// result is not recorded in any conversation.
func (h *DashboardHandler) Classify(c *gin.Context) {
	var req struct {
		Message    string `json:"message" binding:"required"`
		UserID     string `json:"user_id"`
		UseContext bool   `json:"use_context"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.Classifier.Classify(c.Request.Context(), req.Message, req.UserID, req.UseContext))
}
