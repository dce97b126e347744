package api

import (
	"encoding/csv"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"chat-trigger-engine/internal/models"
)

type LeadHandler struct {
	DB *gorm.DB
}

func NewLeadHandler(db *gorm.DB) *LeadHandler {
	return &LeadHandler{DB: db}
}

func (h *LeadHandler) leadQuery(c *gin.Context) *gorm.DB {
	query := h.DB.Order("updated_at DESC")
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if group := c.Query("source_group"); group != "" {
		query = query.Where("source_group = ?", group)
	}
	return query
}

func (h *LeadHandler) GetLeads(c *gin.Context) {
	var leads []models.Lead
	if err := h.leadQuery(c).Find(&leads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Return empty array instead of null
	if leads == nil {
		leads = []models.Lead{}
	}

	c.JSON(http.StatusOK, leads)
}

type UpdateLeadRequest struct {
	Name   *string  `json:"name"`
	Tags   []string `json:"tags"`
	Stage  *string  `json:"stage" binding:"omitempty,oneof=initial exploring interested negotiating closing"`
	Status *string  `json:"status" binding:"omitempty,oneof=new handed_off grouped closed"`
}

func (h *LeadHandler) UpdateLead(c *gin.Context) {
	waID := c.Param("waId")
	var req UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var lead models.Lead
	if err := h.DB.First(&lead, "wa_id = ?", waID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}
	if req.Name != nil {
		lead.Name = *req.Name
	}
	if req.Tags != nil {
		lead.Tags = ""
		lead.MergeTags(req.Tags)
	}
	if req.Stage != nil {
		lead.Stage = *req.Stage
	}
	if req.Status != nil {
		lead.Status = *req.Status
	}

	if err := h.DB.Save(&lead).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update lead"})
		return
	}

	c.JSON(http.StatusOK, lead)
}

func (h *LeadHandler) DeleteLead(c *gin.Context) {
	waID := c.Param("waId")

	result := h.DB.Delete(&models.Lead{}, "wa_id = ?", waID)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete lead"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Lead not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "Lead deleted"})
}

func (h *LeadHandler) ExportLeads(c *gin.Context) {
	var leads []models.Lead
	if err := h.leadQuery(c).Find(&leads).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", "attachment; filename=leads.csv")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{"WhatsApp ID", "Name", "Source Group", "Keyword", "Tags", "Stage", "Status", "Created At"})
	for _, l := range leads {
		_ = w.Write([]string{l.WaID, l.Name, l.SourceGroup, l.Keyword, l.Tags, l.Stage, l.Status, l.CreatedAt.Format(time.RFC3339)})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		log.Printf("Error writing leads CSV: %v", err)
	}
}
