package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"chat-trigger-engine/internal/automation"
	"chat-trigger-engine/internal/intent"
	"chat-trigger-engine/internal/logger"
	"chat-trigger-engine/internal/models"
	"chat-trigger-engine/internal/rules"
	dto "chat-trigger-engine/pkg/models"
)

var log = logger.Get("api")

type AutomationHandler struct {
	DB      *gorm.DB
	Rules   *rules.Pool
	Configs *automation.ConfigSource
}

func NewAutomationHandler(db *gorm.DB, pool *rules.Pool, configs *automation.ConfigSource) *AutomationHandler {
	return &AutomationHandler{DB: db, Rules: pool, Configs: configs}
}

// reloadRules refreshes the live rule pool after a write. A failure leaves
// the previous snapshot serving.
func (h *AutomationHandler) reloadRules() {
	if h.Rules == nil {
		return
	}
	if err := automation.LoadRules(h.DB, h.Rules); err != nil {
		log.Printf("Error reloading rules: %v", err)
	}
}

func knownIntent(s string) bool {
	return string(intent.ParseIntent(s)) == s
}

func ruleFromRequest(req dto.RuleRequest) models.SmartRule {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return models.SmartRule{
		ID:            req.ID,
		Name:          req.Name,
		TriggerIntent: req.TriggerIntent,
		Conditions: rules.TriggerConditions{
			IntentScore:        req.TriggerConditions.IntentScore,
			ConversationRounds: req.TriggerConditions.ConversationRounds,
			KeywordMatch:       req.TriggerConditions.KeywordMatch,
		},
		Actions: rules.Actions{
			NotifyHuman: req.Actions.NotifyHuman,
			AutoReply:   req.Actions.AutoReply,
			AddTag:      req.Actions.AddTag,
			ChangeStage: req.Actions.ChangeStage,
			SendOffer:   req.Actions.SendOffer,
		},
		IsActive: active,
		Priority: req.Priority,
	}
}

// GetRules returns all smart rules, highest priority first
func (h *AutomationHandler) GetRules(c *gin.Context) {
	var recs []models.SmartRule
	if err := h.DB.Order("priority DESC, created_at ASC").Find(&recs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, recs)
}

// CreateRule creates a new smart rule
func (h *AutomationHandler) CreateRule(c *gin.Context) {
	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !knownIntent(req.TriggerIntent) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown triggerIntent " + req.TriggerIntent})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	rec := ruleFromRequest(req)
	if err := h.DB.Create(&rec).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.reloadRules()

	c.JSON(http.StatusCreated, gin.H{"id": rec.ID, "message": "Rule created successfully"})
}

// UpdateRule replaces an existing smart rule
func (h *AutomationHandler) UpdateRule(c *gin.Context) {
	id := c.Param("id")

	var req dto.RuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !knownIntent(req.TriggerIntent) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown triggerIntent " + req.TriggerIntent})
		return
	}

	var existing models.SmartRule
	if err := h.DB.First(&existing, "id = ?", id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}

	req.ID = id
	rec := ruleFromRequest(req)
	rec.CreatedAt = existing.CreatedAt
	if err := h.DB.Save(&rec).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.reloadRules()

	c.JSON(http.StatusOK, gin.H{"message": "Rule updated successfully"})
}

// DeleteRule deletes a smart rule
func (h *AutomationHandler) DeleteRule(c *gin.Context) {
	id := c.Param("id")

	result := h.DB.Delete(&models.SmartRule{}, "id = ?", id)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}
	h.reloadRules()

	c.JSON(http.StatusOK, gin.H{"message": "Rule deleted successfully"})
}

// ToggleRule enables or disables a rule
func (h *AutomationHandler) ToggleRule(c *gin.Context) {
	id := c.Param("id")

	var req struct {
		IsActive bool `json:"isActive"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result := h.DB.Model(&models.SmartRule{}).Where("id = ?", id).Update("is_active", req.IsActive)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": result.Error.Error()})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
		return
	}
	h.reloadRules()

	c.JSON(http.StatusOK, gin.H{"message": "Rule toggled successfully"})
}

// GetLogs returns dispatch decisions, newest first
func (h *AutomationHandler) GetLogs(c *gin.Context) {
	limitInt, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limitInt <= 0 {
		limitInt = 50
	}

	query := h.DB.Order("created_at DESC").Limit(limitInt)
	if t := c.Query("type"); t != "" {
		query = query.Where("action_type = ?", t)
	}
	if waID := c.Query("wa_id"); waID != "" {
		query = query.Where("wa_id = ?", waID)
	}

	var logs []models.ActionLog
	if err := query.Find(&logs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, logs)
}

type countRow struct {
	Label string
	Count int64
}

func (h *AutomationHandler) countBy(column string) (map[string]int64, error) {
	var rows []countRow
	err := h.DB.Model(&models.ActionLog{}).
		Select(column + " AS label, COUNT(*) AS count").
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Label] = r.Count
	}
	return out, nil
}

// GetAnalytics returns rule and action totals
func (h *AutomationHandler) GetAnalytics(c *gin.Context) {
	var stats dto.AnalyticsSummary

	h.DB.Model(&models.SmartRule{}).Count(&stats.TotalRules)
	h.DB.Model(&models.SmartRule{}).Where("is_active = ?", true).Count(&stats.ActiveRules)
	h.DB.Model(&models.ActionLog{}).Count(&stats.TotalActions)
	h.DB.Model(&models.ActionLog{}).Where("success = ?", true).Count(&stats.SuccessfulActs)
	h.DB.Model(&models.ActionLog{}).Where("success = ?", false).Count(&stats.FailedActs)
	h.DB.Model(&models.ActionLog{}).Where("executed = ?", true).Count(&stats.ExecutedActions)
	h.DB.Model(&models.Lead{}).Count(&stats.Leads)
	h.DB.Model(&models.Lead{}).Where("status <> ?", automation.LeadStatusNew).Count(&stats.HandedOff)

	var err error
	if stats.ByType, err = h.countBy("action_type"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if stats.ByIntent, err = h.countBy("intent"); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.Configs != nil {
		total := h.Configs.Global().Stats
		for _, g := range h.Configs.Groups() {
			if !g.UseGlobalConfig && g.CustomConfig != nil {
				total.Triggered += g.CustomConfig.Stats.Triggered
				total.Conversions += g.CustomConfig.Stats.Conversions
			}
		}
		stats.Triggered = total.Triggered
		stats.Conversions = total.Conversions
	}

	c.JSON(http.StatusOK, stats)
}

// GetSettings returns all system settings
func (h *AutomationHandler) GetSettings(c *gin.Context) {
	var settings []models.SystemSetting
	if err := h.DB.Find(&settings).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSetting creates or updates a system setting
func (h *AutomationHandler) UpdateSetting(c *gin.Context) {
	var req struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	setting := models.SystemSetting{Key: req.Key, Value: req.Value}
	err := h.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Setting updated successfully. Please restart server for some changes to take effect."})
}
