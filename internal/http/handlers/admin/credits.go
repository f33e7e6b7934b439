package admin

import (
	"errors"
	"strconv"

	"github.com/rewardhub/internal/http/response"
	"github.com/rewardhub/internal/models"
	"github.com/rewardhub/internal/service"

	"github.com/gin-gonic/gin"
)

// GrantCreditsRequest 额度授予请求
type GrantCreditsRequest struct {
	EntityType string       `json:"entity_type" binding:"required"`
	EntityID   uint         `json:"entity_id" binding:"required"`
	Amount     models.Money `json:"amount" binding:"required"`
	Note       string       `json:"note"`
}

// GrantCredits 授予活动或客户额度
func (h *Handler) GrantCredits(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req GrantCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid grant request", err)
		return
	}

	grant, err := h.BillingService.GrantCredits(service.GrantCreditsInput{
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Amount:     req.Amount,
		Note:       req.Note,
		GrantedBy:  &adminID,
	})
	if err != nil {
		if errors.Is(err, service.ErrCreditGrantInvalid) {
			respondError(c, response.CodeBadRequest, "invalid grant input", nil)
			return
		}
		respondError(c, response.CodeInternal, "grant credits failed", err)
		return
	}

	requestLog(c).Infow("credits granted",
		"entity_type", grant.EntityType,
		"entity_id", grant.EntityID,
		"amount", grant.Amount,
		"admin_id", adminID,
	)
	response.Success(c, grant)
}

// GetCampaignCredits 查询账户额度概览
func (h *Handler) GetCampaignCredits(c *gin.Context) {
	entityID, err := strconv.ParseUint(c.Query("entity_id"), 10, 64)
	if err != nil || entityID == 0 {
		respondError(c, response.CodeBadRequest, "invalid entity_id", err)
		return
	}
	summary, err := h.BillingService.GetAvailableCredits(c.Query("entity_type"), uint(entityID))
	if err != nil {
		if errors.Is(err, service.ErrCreditGrantInvalid) {
			respondError(c, response.CodeBadRequest, "unsupported credit entity", nil)
			return
		}
		respondError(c, response.CodeInternal, "credit summary failed", err)
		return
	}
	response.Success(c, summary)
}

// GetCampaignLedger 分页查询活动计费流水
func (h *Handler) GetCampaignLedger(c *gin.Context) {
	campaignID, err := strconv.ParseUint(c.Query("campaign_id"), 10, 64)
	if err != nil || campaignID == 0 {
		respondError(c, response.CodeBadRequest, "invalid campaign_id", err)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	entries, total, err := h.BillingService.ListCampaignLedger(uint(campaignID), page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "list ledger failed", err)
		return
	}
	totalPage := (total + int64(pageSize) - 1) / int64(pageSize)
	response.SuccessWithPage(c, entries, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}
