package webhook

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"chat-trigger-engine/internal/config"
	"chat-trigger-engine/internal/dispatch"
	"chat-trigger-engine/internal/logger"
	"chat-trigger-engine/internal/models"
	wamodels "chat-trigger-engine/pkg/models"
)

var log = logger.Get("webhook")

// DirectGroup is the group id used when the payload names no receiving number.
const DirectGroup = "direct"

// Engine takes inbound events in arrival order and processes them without
// blocking the caller.
type Engine interface {
	Submit(ctx context.Context, ev dispatch.Event)
}

type Handler struct {
	Config *config.Config
	DB     *gorm.DB
	Engine Engine
}

func NewHandler(cfg *config.Config, db *gorm.DB, engine Engine) *Handler {
	return &Handler{
		Config: cfg,
		DB:     db,
		Engine: engine,
	}
}

func (h *Handler) VerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "" && token != "" {
		if mode == "subscribe" && token == h.Config.VerifyToken {
			log.Println("Webhook verified successfully!")
			c.String(http.StatusOK, challenge)
		} else {
			c.Status(http.StatusForbidden)
		}
	} else {
		c.Status(http.StatusBadRequest)
	}
}

func (h *Handler) HandleMessage(c *gin.Context) {
	var payload wamodels.WebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		log.Printf("Error binding JSON: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			h.handleChange(change.Value)
		}
	}

	// WhatsApp retries anything but 200, so processing errors stay internal.
	c.Status(http.StatusOK)
}

func (h *Handler) handleChange(value wamodels.ChangeValue) {
	groupID := value.Metadata.PhoneNumberID
	if groupID == "" {
		groupID = DirectGroup
	}

	names := make(map[string]string, len(value.Contacts))
	for _, ct := range value.Contacts {
		names[ct.WaID] = ct.Profile.Name
	}

	for _, message := range value.Messages {
		content, triggers := describe(message)
		log.Printf("Received %s from %s", message.Type, message.From)

		if h.DB != nil {
			rec := models.Message{
				WaID:      message.From,
				Sender:    "user",
				AccountID: value.Metadata.PhoneNumberID,
				Content:   content,
				Type:      message.Type,
				Status:    "received",
			}
			if err := h.DB.Create(&rec).Error; err != nil {
				log.Printf("Error saving message from %s: %v", message.From, err)
			}
		}

		if h.Engine == nil || !triggers || strings.TrimSpace(content) == "" {
			continue
		}
		h.Engine.Submit(context.Background(), dispatch.Event{
			GroupID:    groupID,
			UserID:     message.From,
			UserName:   names[message.From],
			Message:    content,
			ReceivedAt: time.Now(),
		})
	}
}

// describe flattens a message into stored content. The flag reports whether
// the content is something the customer typed or picked, which is all the
// engine reacts to.
func describe(m wamodels.InboundMessage) (string, bool) {
	switch m.Type {
	case "text":
		return m.Text.Body, true
	case "interactive":
		if m.Interactive != nil {
			if m.Interactive.ButtonReply != nil {
				return m.Interactive.ButtonReply.Title, true
			}
			if m.Interactive.ListReply != nil {
				return m.Interactive.ListReply.Title, true
			}
		}
		return "[interactive]", false
	case "image":
		return media("image", m.Image, m.Image != nil && m.Image.Caption != ""), false
	case "video":
		return media("video", m.Video, m.Video != nil && m.Video.Caption != ""), false
	case "audio":
		return media("audio", m.Audio, false), false
	case "document":
		if m.Document != nil && m.Document.Filename != "" {
			return "[document]:" + m.Document.ID + ":" + m.Document.Filename, false
		}
		return media("document", m.Document, false), false
	default:
		return "[" + m.Type + "]", false
	}
}

func media(kind string, m *wamodels.MediaMessage, withCaption bool) string {
	if m == nil {
		return "[" + kind + "]"
	}
	s := "[" + kind + "]:" + m.ID
	if withCaption {
		s += ":" + m.Caption
	}
	return s
}
