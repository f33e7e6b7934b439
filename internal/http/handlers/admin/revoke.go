package admin

import (
	"errors"

	"github.com/rewardhub/internal/http/response"
	"github.com/rewardhub/internal/service"

	"github.com/gin-gonic/gin"
)

// RevokeRequest 撤销发放请求
type RevokeRequest struct {
	AssignmentID uint   `json:"assignment_id" binding:"required"`
	Reason       string `json:"reason" binding:"required"`
}

// RevokeAssignment 撤销一次发放并回冲计费
func (h *Handler) RevokeAssignment(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	var req RevokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid revoke request", err)
		return
	}

	result, err := h.RevocationService.Revoke(service.RevokeInput{
		AssignmentID: req.AssignmentID,
		RevokedBy:    adminID,
		Reason:       req.Reason,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrRevokeReasonTooShort):
			respondError(c, response.CodeBadRequest, "revoke reason too short", nil)
		case errors.Is(err, service.ErrAssignmentNotFound):
			respondClassifiedError(c, response.CodeNotFound, err)
		case errors.Is(err, service.ErrAlreadyRevoked):
			respondClassifiedError(c, response.CodeConflict, err)
		default:
			respondClassifiedError(c, response.CodeInternal, err)
		}
		return
	}

	requestLog(c).Infow("assignment revoked",
		"assignment_id", req.AssignmentID,
		"admin_id", adminID,
		"card_returned", result.CardReturned,
	)
	response.Success(c, result)
}
