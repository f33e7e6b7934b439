package public

import (
	"github.com/rewardhub/internal/constants"
	"github.com/rewardhub/internal/http/response"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/service"
	"github.com/rewardhub/internal/taxonomy"

	"github.com/gin-gonic/gin"
)

// ProvisionRequest 发放请求
type ProvisionRequest struct {
	RecipientID     uint         `json:"recipient_id" binding:"required"`
	CampaignID      uint         `json:"campaign_id" binding:"required"`
	ConditionNumber int          `json:"condition_number"`
	BrandID         uint         `json:"brand_id" binding:"required"`
	Denomination    models.Money `json:"denomination" binding:"required"`
	CorrelationID   string       `json:"correlation_id"`
}

// ProvisionReward 发放一张奖励卡
func (h *Handler) ProvisionReward(c *gin.Context) {
	var req ProvisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid provision request", err)
		return
	}

	result, err := h.ProvisioningService.Provision(c.Request.Context(), service.ProvisionInput{
		RecipientID:     req.RecipientID,
		CampaignID:      req.CampaignID,
		ConditionNumber: req.ConditionNumber,
		BrandID:         req.BrandID,
		Denomination:    req.Denomination,
		CorrelationID:   req.CorrelationID,
	})
	if err != nil {
		respondProvisionError(c, err)
		return
	}

	requestLog(c).Infow("reward provisioned",
		"assignment_id", result.Assignment.ID,
		"recipient_id", req.RecipientID,
		"campaign_id", req.CampaignID,
		"source", result.Source,
		"correlation_id", result.CorrelationID,
	)
	response.Success(c, result)
}

// PreflightRequest 发放前准入预检请求
type PreflightRequest struct {
	CampaignID   uint         `json:"campaign_id" binding:"required"`
	BrandID      uint         `json:"brand_id" binding:"required"`
	Denomination models.Money `json:"denomination" binding:"required"`
}

// PreflightCheck 发放前的额度准入预检
// 两阶段设计：额度在发放前由调用方校验，发放流程本身不查额度。
func (h *Handler) PreflightCheck(c *gin.Context) {
	var req PreflightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid preflight request", err)
		return
	}

	quote, err := h.PricingService.ResolvePrice(req.BrandID, req.Denomination, constants.CardSourceCSV)
	if err != nil {
		respondProvisionError(c, err)
		return
	}
	if err := h.BillingService.CheckCredits(req.CampaignID, quote.ClientPrice); err != nil {
		respondProvisionError(c, err)
		return
	}
	response.Success(c, gin.H{
		"allowed":      true,
		"client_price": quote.ClientPrice,
	})
}

// RedeemRequest 核销请求
type RedeemRequest struct {
	CardCode    string `json:"card_code" binding:"required"`
	RecipientID uint   `json:"recipient_id" binding:"required"`
}

// RedeemCard 核销一张已交付的卡
func (h *Handler) RedeemCard(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid redeem request", err)
		return
	}

	card, err := h.DeliveryService.Redeem(req.CardCode, req.RecipientID)
	if err != nil {
		respondRedeemError(c, err)
		return
	}
	response.Success(c, gin.H{
		"card_id":   card.ID,
		"card_code": card.CardCode,
		"status":    card.Status,
	})
}

// ErrorCatalog 返回固定错误码集合
func (h *Handler) ErrorCatalog(c *gin.Context) {
	response.Success(c, taxonomy.All())
}
